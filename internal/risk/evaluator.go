/**
 * @description
 * This package implements the risk evaluator: a pure, stateless scoring
 * function for prospective transfers. It is deterministic, keeps no state,
 * and has no side effects, so the same input always yields the same
 * assessment.
 *
 * Scoring starts at a base of 10 and rules add to it cumulatively; the final
 * score is clamped to [0,100]. Reasons are recorded in rule-evaluation order.
 */

package risk

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Decision is the outcome of a risk assessment.
type Decision string

const (
	DecisionAllow Decision = "ALLOW"
	DecisionFlag  Decision = "FLAG"
	DecisionBlock Decision = "BLOCK"
)

// Assessment is the result of scoring a prospective transfer. It is never
// persisted on its own; the orchestrator embeds score and reasons into the
// transaction row.
type Assessment struct {
	Decision Decision `json:"decision"`
	Score    int      `json:"score"`
	Reasons  []string `json:"reasons"`
}

// Input describes the transfer being scored. A zero Timestamp means the
// caller supplied no timestamp, in which case the time-of-day rule does not
// apply.
type Input struct {
	FromAccountID  string
	ToAccountID    string
	Amount         decimal.Decimal
	Currency       string
	Timestamp      time.Time
	IsNewRecipient bool
}

const (
	baseScore = 10

	highAmountThreshold     = 100000
	veryHighAmountThreshold = 500000
	newRecipientThreshold   = 50000

	flagThreshold  = 40
	blockThreshold = 70
)

// Evaluate scores a prospective transfer and produces a decision.
func Evaluate(in Input) Assessment {
	score := baseScore
	reasons := []string{}

	if in.Amount.GreaterThanOrEqual(decimal.NewFromInt(highAmountThreshold)) {
		score += 30
		reasons = append(reasons, "High amount over 100000")
	}
	if in.Amount.GreaterThanOrEqual(decimal.NewFromInt(veryHighAmountThreshold)) {
		score += 30
		reasons = append(reasons, "Very high amount over 500000")
	}

	if !in.Timestamp.IsZero() {
		hour := in.Timestamp.UTC().Hour()
		if hour < 6 || hour >= 23 {
			score += 20
			reasons = append(reasons, "Night-time transaction")
		}
	}

	if in.IsNewRecipient && in.Amount.GreaterThanOrEqual(decimal.NewFromInt(newRecipientThreshold)) {
		score += 20
		reasons = append(reasons, "Large transfer to new recipient")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	decision := DecisionAllow
	switch {
	case score >= blockThreshold:
		decision = DecisionBlock
	case score >= flagThreshold:
		decision = DecisionFlag
	}

	return Assessment{Decision: decision, Score: score, Reasons: reasons}
}

// Engine adapts the pure Evaluate function to the evaluator interface the
// orchestrator consumes, so an in-process engine and a remote fraud-service
// client are interchangeable.
type Engine struct{}

func (Engine) Evaluate(ctx context.Context, in Input) (Assessment, error) {
	return Evaluate(in), nil
}
