package risk

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func at(hour int) time.Time {
	return time.Date(2025, time.March, 14, hour, 30, 0, 0, time.UTC)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name         string
		amount       int64
		timestamp    time.Time
		newRecipient bool
		wantScore    int
		wantDecision Decision
		wantReasons  []string
	}{
		{
			name:         "base case stays at 10 and allows",
			amount:       50000,
			timestamp:    at(12),
			newRecipient: false,
			wantScore:    10,
			wantDecision: DecisionAllow,
			wantReasons:  []string{},
		},
		{
			name:         "high amount flags",
			amount:       150000,
			timestamp:    at(12),
			wantScore:    40,
			wantDecision: DecisionFlag,
			wantReasons:  []string{"High amount over 100000"},
		},
		{
			name:         "very high amount adds both amount rules",
			amount:       500000,
			timestamp:    at(12),
			wantScore:    70,
			wantDecision: DecisionBlock,
			wantReasons:  []string{"High amount over 100000", "Very high amount over 500000"},
		},
		{
			name:         "night-time transaction",
			amount:       1000,
			timestamp:    at(2),
			wantScore:    30,
			wantDecision: DecisionAllow,
			wantReasons:  []string{"Night-time transaction"},
		},
		{
			name:         "2300 counts as night",
			amount:       1000,
			timestamp:    at(23),
			wantScore:    30,
			wantDecision: DecisionAllow,
			wantReasons:  []string{"Night-time transaction"},
		},
		{
			name:         "0600 is daytime",
			amount:       1000,
			timestamp:    at(6),
			wantScore:    10,
			wantDecision: DecisionAllow,
			wantReasons:  []string{},
		},
		{
			name:         "new recipient with large amount",
			amount:       50000,
			timestamp:    at(12),
			newRecipient: true,
			wantScore:    30,
			wantDecision: DecisionAllow,
			wantReasons:  []string{"Large transfer to new recipient"},
		},
		{
			name:         "new recipient below threshold adds nothing",
			amount:       49999,
			timestamp:    at(12),
			newRecipient: true,
			wantScore:    10,
			wantDecision: DecisionAllow,
			wantReasons:  []string{},
		},
		{
			name:         "all rules clamp to 100 and block",
			amount:       600000,
			timestamp:    at(2),
			newRecipient: true,
			wantScore:    100,
			wantDecision: DecisionBlock,
			wantReasons: []string{
				"High amount over 100000",
				"Very high amount over 500000",
				"Night-time transaction",
				"Large transfer to new recipient",
			},
		},
		{
			name:         "zero timestamp skips the night rule",
			amount:       1000,
			timestamp:    time.Time{},
			wantScore:    10,
			wantDecision: DecisionAllow,
			wantReasons:  []string{},
		},
		{
			name:         "flag band upper bound",
			amount:       150000,
			timestamp:    at(1),
			wantScore:    60,
			wantDecision: DecisionFlag,
			wantReasons:  []string{"High amount over 100000", "Night-time transaction"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(Input{
				FromAccountID:  "acc-1",
				ToAccountID:    "acc-2",
				Amount:         decimal.NewFromInt(tt.amount),
				Currency:       "USD",
				Timestamp:      tt.timestamp,
				IsNewRecipient: tt.newRecipient,
			})
			if got.Score != tt.wantScore {
				t.Fatalf("expected score=%d, got %d", tt.wantScore, got.Score)
			}
			if got.Decision != tt.wantDecision {
				t.Fatalf("expected decision=%s, got %s", tt.wantDecision, got.Decision)
			}
			if !reflect.DeepEqual(got.Reasons, tt.wantReasons) {
				t.Fatalf("expected reasons=%v, got %v", tt.wantReasons, got.Reasons)
			}
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	in := Input{
		FromAccountID:  "acc-1",
		ToAccountID:    "acc-2",
		Amount:         decimal.NewFromInt(150000),
		Currency:       "USD",
		Timestamp:      at(3),
		IsNewRecipient: true,
	}
	first := Evaluate(in)
	for i := 0; i < 5; i++ {
		if got := Evaluate(in); !reflect.DeepEqual(got, first) {
			t.Fatalf("expected identical assessments, got %+v then %+v", first, got)
		}
	}
}
