// Package agent implements the fixed-stage decision pipeline that evaluates
// a proposed trade: plan, retrieve context, call tools, evaluate, decide and
// optionally execute.
package agent

import (
	"math"

	"github.com/tradeops/arbiter/configs"
	"github.com/tradeops/arbiter/internal/models"
	"github.com/tradeops/arbiter/internal/rag"
	"github.com/tradeops/arbiter/internal/tools"
)

// Score turns risk and context signals into a confidence score.
// Starting from the base, the risk-pass bonus is added or a per-violation
// penalty subtracted, then the mean relevance of retrieved hits contributes
// a weighted boost. The result is rounded to 4 decimals and clamped to [0, 1].
func Score(cfg configs.ScoringConfig, risk tools.CallResult, hits []rag.Hit) float64 {
	score := cfg.Base

	if risk.Bool("passed") {
		score += cfg.RiskPassBonus
	} else {
		score -= cfg.ViolationPenalty * float64(len(risk.Strings("violations")))
	}

	if len(hits) > 0 {
		var sum float64
		for _, h := range hits {
			sum += h.Score
		}
		score += cfg.ContextWeight * (sum / float64(len(hits)))
	}

	score = math.Round(score*10000) / 10000
	return math.Max(0.0, math.Min(1.0, score))
}

// Decide applies the decision policy. The threshold check dominates the risk
// outcome: a low-confidence trade is escalated to a human even when the risk
// check failed outright.
func Decide(cfg configs.ScoringConfig, score float64, riskPassed bool) string {
	if score < cfg.Threshold {
		return models.DecisionNeedsHuman
	}
	if riskPassed {
		return models.DecisionApprove
	}
	return models.DecisionDeny
}
