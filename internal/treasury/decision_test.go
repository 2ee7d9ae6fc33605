package treasury

import (
	"errors"
	"strings"
	"testing"

	"DustMite-Agent/internal/llm"
)

func TestNormalizeDecisionValid(t *testing.T) {
	got := normalizeDecision(&llm.Decision{Action: "buy", Reason: "yield beats gas"}, nil)
	if got.Action != ActionBuy || got.Reason != "yield beats gas" {
		t.Fatalf("unexpected decision: %+v", got)
	}

	got = normalizeDecision(&llm.Decision{Action: " HOLD ", Reason: "thin margin"}, nil)
	if got.Action != ActionHold {
		t.Fatalf("unexpected action: %q", got.Action)
	}
}

func TestNormalizeDecisionError(t *testing.T) {
	got := normalizeDecision(nil, errors.New("model timeout"))
	if got.Action != ActionHold {
		t.Fatalf("error must normalize to HOLD, got %q", got.Action)
	}
	if !strings.Contains(got.Reason, "model timeout") {
		t.Fatalf("reason should carry the failure: %q", got.Reason)
	}
}

func TestNormalizeDecisionUnknownAction(t *testing.T) {
	got := normalizeDecision(&llm.Decision{Action: "YOLO", Reason: "all in"}, nil)
	if got.Action != ActionHold {
		t.Fatalf("unknown action must normalize to HOLD, got %q", got.Action)
	}
	if !strings.Contains(got.Reason, "YOLO") || !strings.Contains(got.Reason, "all in") {
		t.Fatalf("reason should preserve the original output: %q", got.Reason)
	}
}

func TestNormalizeDecisionNil(t *testing.T) {
	got := normalizeDecision(nil, nil)
	if got.Action != ActionHold {
		t.Fatalf("nil decision must normalize to HOLD, got %q", got.Action)
	}
}
