package treasury

import (
	"math"
	"testing"
)

func TestDailyYield(t *testing.T) {
	// $1000 at 7.3% APY earns $0.20 per day.
	got := DailyYield(1000, 7.3)
	if math.Abs(got-0.2) > 1e-9 {
		t.Fatalf("DailyYield(1000, 7.3) = %v, want 0.2", got)
	}

	if DailyYield(0, 5) != 0 {
		t.Fatalf("zero principal must yield zero")
	}
}

func TestIsProfitable(t *testing.T) {
	// 100 USDC at 7.5%: daily yield ~0.0205 > 0.05 is false.
	if IsProfitable(100, 7.5, 0.05) {
		t.Fatalf("100 at 7.5%% should not beat $0.05 gas")
	}

	// 1000 USDC at 7.5%: daily yield ~0.2055 > 0.05.
	if !IsProfitable(1000, 7.5, 0.05) {
		t.Fatalf("1000 at 7.5%% should beat $0.05 gas")
	}

	// Breaking exactly even is not profitable.
	principal := 1000.0
	apy := 7.3
	gas := DailyYield(principal, apy)
	if IsProfitable(principal, apy, gas) {
		t.Fatalf("exact break-even must not count as profitable")
	}
}

func TestSentiment(t *testing.T) {
	if got := SentimentScore(6.0); got != 0.4 {
		t.Fatalf("SentimentScore(6.0) = %v, want 0.4", got)
	}
	if got := SentimentScore(6.01); got != 0.8 {
		t.Fatalf("SentimentScore(6.01) = %v, want 0.8", got)
	}
	if SentimentLabel(7.0) != "Optimistic" || SentimentLabel(4.0) != "Cautious" {
		t.Fatalf("unexpected sentiment labels")
	}
}
