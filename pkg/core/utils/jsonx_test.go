package utils

import "testing"

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, true},
		{"surrounded by prose", `Here you go: {"a": 1} hope it helps`, `{"a": 1}`, true},
		{"nested objects", `text {"a": {"b": {"c": 3}}} trailing`, `{"a": {"b": {"c": 3}}}`, true},
		{"brace inside string", `{"a": "closing } brace"}`, `{"a": "closing } brace"}`, true},
		{"escaped quote inside string", `{"a": "quote \" and } brace"}`, `{"a": "quote \" and } brace"}`, true},
		{"unbalanced", `{"a": 1`, "", false},
		{"no object", "plain text only", "", false},
	}

	for _, tc := range cases {
		got, ok := ExtractJSONObject(tc.in)
		if ok != tc.ok {
			t.Errorf("%s: expected ok=%v, got %v", tc.name, tc.ok, ok)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestParseLLMJSON(t *testing.T) {
	type payload struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	}

	var p payload
	err := ParseLLMJSON(`Sure! Here is the result: {"name": "breakout", "score": 72.5} Let me know.`, &p)
	if err != nil {
		t.Fatalf("ParseLLMJSON failed: %v", err)
	}
	if p.Name != "breakout" || p.Score != 72.5 {
		t.Errorf("Unexpected payload: %+v", p)
	}
}

func TestParseLLMJSONFencedFallback(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	// The leading unbalanced brace defeats the scanner; the fenced block
	// still parses.
	input := "{ broken\n```json\n{\"name\": \"fenced\"}\n```"
	var p payload
	if err := ParseLLMJSON(input, &p); err != nil {
		t.Fatalf("Expected fenced fallback to succeed: %v", err)
	}
	if p.Name != "fenced" {
		t.Errorf("Expected name 'fenced', got %q", p.Name)
	}
}

func TestParseLLMJSONNoObject(t *testing.T) {
	var p map[string]interface{}
	if err := ParseLLMJSON("I could not produce a strategy today.", &p); err == nil {
		t.Fatal("Expected error for response without JSON")
	}
}

func TestSmartParseLenientInputs(t *testing.T) {
	var out map[string]interface{}

	// Trailing comma should be recovered by the repair pass.
	if _, err := SmartParse(`{"a": 1,}`, &out); err != nil {
		t.Errorf("Expected repair pass to handle trailing comma: %v", err)
	}

	// Unquoted keys should be recovered by the hjson pass at the latest.
	out = nil
	if _, err := SmartParse("{a: 1}", &out); err != nil {
		t.Errorf("Expected lenient pass to handle unquoted key: %v", err)
	}
}
