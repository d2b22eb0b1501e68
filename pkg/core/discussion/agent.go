package discussion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"strategy_arena/pkg/core/agent"
	"strategy_arena/pkg/core/stream"
	"strategy_arena/pkg/core/utils"
	"strategy_arena/pkg/models"

	"github.com/google/uuid"
)

// Agent is one competing persona. A generate failure surfaces as an error
// and the agent is absent from that cycle's pool; critique degrades to a
// neutral default internally, so real agents only return critique errors for
// context cancellation.
type Agent interface {
	ID() string
	Role() models.AgentRole
	Name() string
	GenerateStrategy(ctx context.Context, symbols []string, marketContext, roundID string) (*models.ArenaStrategy, error)
	CritiqueStrategy(ctx context.Context, strategy *models.ArenaStrategy, marketContext, roundID string) (models.Critique, error)
	RefineStrategy(ctx context.Context, strategy *models.ArenaStrategy, critiques []models.Critique, roundID string) (*models.ArenaStrategy, error)
}

// strategyDraft is the structured shape agents emit for new and refined
// strategies.
type strategyDraft struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Logic       string               `json:"logic"`
	Rules       models.StrategyRules `json:"rules"`
}

// critiqueDraft is the structured shape agents emit for critiques.
type critiqueDraft struct {
	Strengths           []string `json:"strengths"`
	Weaknesses          []string `json:"weaknesses"`
	Suggestions         []string `json:"suggestions"`
	OverallScore        float64  `json:"overall_score"`
	RiskWarnings        []string `json:"risk_warnings"`
	SentimentBias       string   `json:"sentiment_bias"`
	StatisticalConcerns []string `json:"statistical_concerns"`
}

// BaseAgent carries the shared mechanics: prompt execution with streamed
// thinking events, structured-output parsing, and lineage bookkeeping.
type BaseAgent struct {
	config       models.AgentConfig
	manager      *agent.Manager
	publisher    stream.Publisher
	systemPrompt string
}

// NewAgent builds the concrete agent for a config. The role registry is a
// static switch; unknown roles are a configuration error.
func NewAgent(config models.AgentConfig, mgr *agent.Manager, publisher stream.Publisher) (Agent, error) {
	sysPrompt, ok := SystemPrompts[config.Role]
	if !ok {
		return nil, fmt.Errorf("unknown agent role %q", config.Role)
	}
	if config.Personality != "" {
		sysPrompt += "\n\nPersonality: " + config.Personality
	}
	if config.FocusArea != "" {
		sysPrompt += "\nFocus area: " + config.FocusArea
	}

	base := &BaseAgent{
		config:       config,
		manager:      mgr,
		publisher:    publisher,
		systemPrompt: sysPrompt,
	}

	switch config.Role {
	case models.RoleGenerator:
		return &GeneratorAgent{BaseAgent: base}, nil
	case models.RoleReviewer:
		return &ReviewerAgent{BaseAgent: base}, nil
	case models.RoleRisk:
		return &RiskAgent{BaseAgent: base}, nil
	case models.RoleSentiment:
		return &SentimentAgent{BaseAgent: base}, nil
	case models.RoleQuant:
		return &QuantAgent{BaseAgent: base}, nil
	default:
		return nil, fmt.Errorf("unknown agent role %q", config.Role)
	}
}

func (a *BaseAgent) ID() string             { return a.config.ID }
func (a *BaseAgent) Role() models.AgentRole { return a.config.Role }

func (a *BaseAgent) Name() string {
	switch a.config.Role {
	case models.RoleGenerator:
		return "Strategy Generator"
	case models.RoleReviewer:
		return "Strategy Reviewer"
	case models.RoleRisk:
		return "Risk Analyst"
	case models.RoleSentiment:
		return "Market Sentiment Analyst"
	case models.RoleQuant:
		return "Quant Researcher"
	default:
		return "Unknown Agent"
	}
}

// options builds the provider options from the agent config.
func (a *BaseAgent) options() map[string]interface{} {
	opts := map[string]interface{}{}
	if a.config.Model != "" {
		opts["model"] = a.config.Model
	}
	if a.config.Temperature > 0 {
		opts["temperature"] = a.config.Temperature
	}
	return opts
}

// agentType resolves the manager routing key: explicit provider override
// first, then the role name.
func (a *BaseAgent) agentType() string {
	if a.config.Provider != "" {
		return a.config.Provider
	}
	return string(a.config.Role)
}

// think runs the prompt with streaming, publishing buffered thinking events
// as chunks arrive, and returns the full response. Falls back to a blocking
// call when the provider cannot stream.
func (a *BaseAgent) think(ctx context.Context, prompt, roundID string) (string, error) {
	chunks, err := a.manager.ExecuteStream(ctx, a.agentType(), prompt, a.systemPrompt, a.options())
	if err != nil {
		return a.manager.ExecutePrompt(ctx, a.agentType(), prompt, a.systemPrompt, a.options())
	}

	var full strings.Builder
	buffer := stream.NewChunkBuffer(func(text string) {
		a.publisher.Publish(a.ID(), a.Role(), text, models.MessageThinking, roundID, nil)
	})
	for chunk := range chunks {
		full.WriteString(chunk)
		buffer.Write(chunk)
	}
	buffer.Flush()

	if full.Len() == 0 {
		return "", fmt.Errorf("empty response from provider")
	}
	return full.String(), nil
}

// GenerateStrategy asks the model for a new strategy. Parse or call failures
// return an error; the orchestration layer logs it and runs the cycle
// without this agent's contribution.
func (a *BaseAgent) GenerateStrategy(ctx context.Context, symbols []string, marketContext, roundID string) (*models.ArenaStrategy, error) {
	prompt := fmt.Sprintf("Design a new trading strategy for the instruments %s.", strings.Join(symbols, ", "))
	if marketContext != "" {
		prompt += "\n\nCurrent market context:\n" + marketContext
	}
	prompt += "\n" + strategySchemaHint

	response, err := a.think(ctx, prompt, roundID)
	if err != nil {
		return nil, fmt.Errorf("strategy generation failed for %s: %w", a.Name(), err)
	}

	var draft strategyDraft
	if err := utils.ParseLLMJSON(response, &draft); err != nil {
		return nil, fmt.Errorf("strategy output unparseable for %s: %w", a.Name(), err)
	}
	if draft.Name == "" {
		draft.Name = fmt.Sprintf("%s strategy %s", a.Name(), uuid.New().String()[:8])
	}

	s := &models.ArenaStrategy{
		ID:          uuid.New().String(),
		AgentID:     a.ID(),
		AgentRole:   a.Role(),
		Name:        draft.Name,
		Description: draft.Description,
		Logic:       utils.CleanMarkdown(draft.Logic),
		Rules:       draft.Rules,
		Symbols:     append([]string(nil), symbols...),
		Stage:       models.StageBacktest,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	if roundID != "" {
		s.DiscussionRounds = []string{roundID}
	}

	a.publisher.Publish(a.ID(), a.Role(),
		fmt.Sprintf("Proposed strategy: %s — %s", s.Name, s.Description),
		models.MessageConclusion, roundID,
		map[string]interface{}{"target_strategy_id": s.ID})

	return s, nil
}

// CritiqueStrategy reviews another agent's strategy. A model failure or
// unparseable output degrades to the documented neutral critique; it never
// aborts the surrounding round.
func (a *BaseAgent) CritiqueStrategy(ctx context.Context, strategy *models.ArenaStrategy, marketContext, roundID string) (models.Critique, error) {
	prompt := fmt.Sprintf("Critique the following trading strategy from your role's perspective.\n\nName: %s\nDescription: %s\nLogic:\n%s\nRules: entry=%v exit=%v sizing=%s stop_loss=%.3f take_profit=%.3f",
		strategy.Name, strategy.Description, strategy.Logic,
		strategy.Rules.EntryConditions, strategy.Rules.ExitConditions,
		strategy.Rules.PositionSizing, strategy.Rules.StopLoss, strategy.Rules.TakeProfit)
	if marketContext != "" {
		prompt += "\n\nCurrent market context:\n" + marketContext
	}
	prompt += "\n" + critiqueSchemaHint

	response, err := a.think(ctx, prompt, roundID)
	if err != nil {
		fmt.Printf("[AGENT] %s critique call failed, using neutral default: %v\n", a.Name(), err)
		return models.NeutralCritique(a.ID(), a.Role(), strategy.ID, roundID), nil
	}

	var draft critiqueDraft
	if err := utils.ParseLLMJSON(response, &draft); err != nil {
		fmt.Printf("[AGENT] %s critique output unparseable, using neutral default: %v\n", a.Name(), err)
		return models.NeutralCritique(a.ID(), a.Role(), strategy.ID, roundID), nil
	}

	critique := models.Critique{
		AgentID:             a.ID(),
		AgentRole:           a.Role(),
		TargetStrategyID:    strategy.ID,
		RoundID:             roundID,
		Strengths:           draft.Strengths,
		Weaknesses:          draft.Weaknesses,
		Suggestions:         draft.Suggestions,
		OverallScore:        clampScore(draft.OverallScore),
		RiskWarnings:        draft.RiskWarnings,
		SentimentBias:       draft.SentimentBias,
		StatisticalConcerns: draft.StatisticalConcerns,
	}

	a.publisher.Publish(a.ID(), a.Role(),
		fmt.Sprintf("Critique of %s: %d strengths, %d weaknesses, score %.0f",
			strategy.Name, len(critique.Strengths), len(critique.Weaknesses), critique.OverallScore),
		models.MessageArgument, roundID,
		map[string]interface{}{
			"target_strategy_id": strategy.ID,
			"critique":           critique,
		})

	return critique, nil
}

// RefineStrategy produces a new strategy value incorporating the critiques.
// The parent is referenced through the extended refinement history, never
// edited. A failure returns an error; the orchestrator substitutes the
// original.
func (a *BaseAgent) RefineStrategy(ctx context.Context, strategy *models.ArenaStrategy, critiques []models.Critique, roundID string) (*models.ArenaStrategy, error) {
	var feedback strings.Builder
	for _, c := range critiques {
		feedback.WriteString(fmt.Sprintf("From %s (score %.0f):\n", c.AgentRole, c.OverallScore))
		for _, w := range c.Weaknesses {
			feedback.WriteString("- weakness: " + w + "\n")
		}
		for _, s := range c.Suggestions {
			feedback.WriteString("- suggestion: " + s + "\n")
		}
		for _, r := range c.RiskWarnings {
			feedback.WriteString("- risk: " + r + "\n")
		}
	}

	prompt := fmt.Sprintf("Refine the following trading strategy using the critique feedback. Keep what works, fix what is criticized.\n\nName: %s\nDescription: %s\nLogic:\n%s\n\nFeedback:\n%s\n%s",
		strategy.Name, strategy.Description, strategy.Logic, feedback.String(), strategySchemaHint)

	response, err := a.think(ctx, prompt, roundID)
	if err != nil {
		return nil, fmt.Errorf("refinement failed for %s: %w", strategy.Name, err)
	}

	var draft strategyDraft
	if err := utils.ParseLLMJSON(response, &draft); err != nil {
		return nil, fmt.Errorf("refinement output unparseable for %s: %w", strategy.Name, err)
	}

	refined := strategy.Clone()
	refined.ID = uuid.New().String()
	refined.CreatedAt = time.Now()
	mergeDraft(refined, draft)
	refined.RefinementHistory = append(refined.RefinementHistory, models.RefinementRecord{
		Action:        models.ActionRefine,
		ParentID:      strategy.ID,
		RoundID:       roundID,
		Summary:       fmt.Sprintf("refined by %s from %d critiques", a.Name(), len(critiques)),
		CritiqueCount: len(critiques),
		Timestamp:     time.Now(),
	})
	refined.DiscussionRounds = append(refined.DiscussionRounds, roundID)

	a.publisher.Publish(a.ID(), a.Role(),
		fmt.Sprintf("Refined strategy %s into %s incorporating %d critiques", strategy.Name, refined.Name, len(critiques)),
		models.MessageConclusion, roundID,
		map[string]interface{}{"target_strategy_id": refined.ID})

	return refined, nil
}

// mergeDraft applies the populated fields of a refinement draft onto the
// cloned successor. Empty fields keep the parent's values, so a reply that
// omits the rules block cannot wipe the strategy's trading rules.
func mergeDraft(refined *models.ArenaStrategy, draft strategyDraft) {
	if draft.Name != "" {
		refined.Name = draft.Name
	}
	if draft.Description != "" {
		refined.Description = draft.Description
	}
	if draft.Logic != "" {
		refined.Logic = utils.CleanMarkdown(draft.Logic)
	}
	if !rulesEmpty(draft.Rules) {
		refined.Rules = draft.Rules
	}
}

func rulesEmpty(r models.StrategyRules) bool {
	return len(r.EntryConditions) == 0 && len(r.ExitConditions) == 0 &&
		r.PositionSizing == "" && r.StopLoss == 0 && r.TakeProfit == 0 &&
		len(r.Parameters) == 0
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
