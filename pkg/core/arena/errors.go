package arena

import (
	"fmt"
	"strings"

	"strategy_arena/pkg/models"
)

// StateError reports an operation attempted in the wrong lifecycle state.
// The arena's state is left unchanged when one is returned.
type StateError struct {
	Operation string
	Current   models.ArenaState
	Expected  []models.ArenaState
}

func (e *StateError) Error() string {
	expected := make([]string, len(e.Expected))
	for i, s := range e.Expected {
		expected[i] = string(s)
	}
	return fmt.Sprintf("cannot %s arena in state %q (expected one of: %s)",
		e.Operation, e.Current, strings.Join(expected, ", "))
}

// ConfigError reports an invalid arena parameter. Raised before any state
// transition happens.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid arena config: %s: %s", e.Field, e.Reason)
}
