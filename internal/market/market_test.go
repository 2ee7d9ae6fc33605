package market

import (
	"context"
	"math"
	"testing"
)

func TestMockProviderRange(t *testing.T) {
	provider, err := NewMockProvider(3.5, 8.5, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 200; i++ {
		quote, err := provider.GetYield(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if quote.APY < 3.5 || quote.APY > 8.5 {
			t.Fatalf("apy %v out of range", quote.APY)
		}
		if quote.Source != "MockMarket" {
			t.Fatalf("unexpected source: %q", quote.Source)
		}
		rounded := math.Round(quote.APY*100) / 100
		if rounded != quote.APY {
			t.Fatalf("apy %v not rounded to two decimals", quote.APY)
		}
	}
}

func TestMockProviderValidation(t *testing.T) {
	if _, err := NewMockProvider(8.0, 3.0, 1); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	if _, err := NewMockProvider(-1.0, 3.0, 1); err == nil {
		t.Fatalf("expected error for negative lower bound")
	}
}

func TestStaticProvider(t *testing.T) {
	provider := NewStaticProvider(4.5)
	quote, err := provider.GetYield(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.APY != 4.5 {
		t.Fatalf("unexpected apy: %v", quote.APY)
	}
	if quote.Source != "RealMarketStub" {
		t.Fatalf("unexpected source: %q", quote.Source)
	}
}
