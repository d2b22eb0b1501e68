package discussion

// The five competing personas. Shared mechanics live on BaseAgent; each
// variant is distinguished by its system prompt and the critique fields it
// populates (see critiqueSchemaHint).

// GeneratorAgent designs new strategies; it is also the preferred refiner
// for strategies whose author is no longer available.
type GeneratorAgent struct {
	*BaseAgent
}

// ReviewerAgent focuses on logical gaps and execution problems.
type ReviewerAgent struct {
	*BaseAgent
}

// RiskAgent populates the risk_warnings critique field.
type RiskAgent struct {
	*BaseAgent
}

// SentimentAgent judges strategies against news flow and crowding, filling
// the sentiment_bias field.
type SentimentAgent struct {
	*BaseAgent
}

// QuantAgent evaluates statistical soundness, filling statistical_concerns.
type QuantAgent struct {
	*BaseAgent
}
