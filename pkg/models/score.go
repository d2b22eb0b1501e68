package models

import "time"

// ScoreWeights configures the relative weight of each scoring dimension.
type ScoreWeights struct {
	Return       float64 `json:"return"`
	Risk         float64 `json:"risk"`
	Stability    float64 `json:"stability"`
	Adaptability float64 `json:"adaptability"`
}

// DefaultScoreWeights returns the standard 30/30/20/20 split.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Return: 0.30, Risk: 0.30, Stability: 0.20, Adaptability: 0.20}
}

func (w ScoreWeights) IsZero() bool {
	return w.Return == 0 && w.Risk == 0 && w.Stability == 0 && w.Adaptability == 0
}

// DimensionScore holds one dimension's 0-100 score, its weight, and the raw
// metric values that produced it, kept for auditability.
type DimensionScore struct {
	Score   float64            `json:"score"`
	Weight  float64            `json:"weight"`
	Metrics map[string]float64 `json:"metrics"`
}

// ComprehensiveScore is the weighted aggregate over the four dimensions.
type ComprehensiveScore struct {
	Return       DimensionScore `json:"return"`
	Risk         DimensionScore `json:"risk"`
	Stability    DimensionScore `json:"stability"`
	Adaptability DimensionScore `json:"adaptability"`
	TotalScore   float64        `json:"total_score"`
}

// StrategyEvaluation is one immutable scoring record, created once per
// strategy per evaluation cycle.
type StrategyEvaluation struct {
	StrategyID string             `json:"strategy_id"`
	ArenaID    string             `json:"arena_id"`
	Period     EvaluationPeriod   `json:"period"`
	Score      ComprehensiveScore `json:"score"`
	Rank       int                `json:"rank"`
	CreatedAt  time.Time          `json:"created_at"`
}
