package events

import (
	"context"
	"encoding/json"
	"testing"
)

func TestMemoryPublisher(t *testing.T) {
	pub := NewMemoryPublisher()

	event := CycleEvent{
		CycleID:     "cycle-1",
		Timestamp:   1700000000,
		Action:      "BUY",
		Amount:      "100",
		Reason:      "yield beats gas",
		APYSnapshot: 7.5,
		TxHash:      "tx-1",
		Outcome:     "completed",
	}
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	published := pub.Events()
	if len(published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(published))
	}
	if published[0] != event {
		t.Fatalf("event mismatch: %+v", published[0])
	}
}

func TestEncodeOmitsEmptyTxHash(t *testing.T) {
	payload, err := Encode(CycleEvent{CycleID: "c", Action: "HOLD", Outcome: "completed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if _, ok := decoded["tx_hash"]; ok {
		t.Fatalf("tx_hash should be omitted when empty")
	}
	if decoded["action"] != "HOLD" {
		t.Fatalf("unexpected action: %v", decoded["action"])
	}
}
