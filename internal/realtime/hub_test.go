package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/yrdly/platform/internal/escrow"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testEvent(typ EventType, buyerID, sellerID, txID string) *Event {
	return &Event{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Data: EventData{
			TransactionID: txID,
			BuyerID:       buyerID,
			SellerID:      sellerID,
		},
	}
}

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	c := &Client{sub: Subscription{AllEvents: true}}

	if !h.shouldSend(c, testEvent(EventStatusChanged, "b", "s", "txn_1")) {
		t.Error("AllEvents subscription should receive everything")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()
	c := &Client{sub: Subscription{EventTypes: []EventType{EventDisputeOpened}}}

	if h.shouldSend(c, testEvent(EventStatusChanged, "b", "s", "txn_1")) {
		t.Error("status_changed should be filtered out")
	}
	if !h.shouldSend(c, testEvent(EventDisputeOpened, "b", "s", "txn_1")) {
		t.Error("dispute_opened should pass the filter")
	}
}

func TestShouldSend_UserFilter(t *testing.T) {
	h := testHub()
	c := &Client{sub: Subscription{UserIDs: []string{"usr_watched"}}}

	if h.shouldSend(c, testEvent(EventStatusChanged, "usr_other", "usr_else", "txn_1")) {
		t.Error("unrelated users should be filtered out")
	}
	if !h.shouldSend(c, testEvent(EventStatusChanged, "usr_watched", "usr_else", "txn_1")) {
		t.Error("watched buyer should pass the filter")
	}
	if !h.shouldSend(c, testEvent(EventStatusChanged, "usr_other", "usr_watched", "txn_1")) {
		t.Error("watched seller should pass the filter")
	}
}

func TestShouldSend_TransactionFilter(t *testing.T) {
	h := testHub()
	c := &Client{sub: Subscription{TransactionIDs: []string{"txn_1"}}}

	if !h.shouldSend(c, testEvent(EventStatusChanged, "b", "s", "txn_1")) {
		t.Error("watched transaction should pass the filter")
	}
	if h.shouldSend(c, testEvent(EventStatusChanged, "b", "s", "txn_2")) {
		t.Error("other transactions should be filtered out")
	}
}

func TestStatusChangedEventMapping(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	tx := &escrow.Transaction{
		ID:       "txn_1",
		ItemID:   "item_1",
		BuyerID:  "b",
		SellerID: "s",
		Status:   escrow.StatusDisputed,
		Amount:   10000,
	}
	h.StatusChanged(tx, escrow.StatusPaid)

	// Drain the broadcast through serialization to check the wire shape.
	event := testEvent(EventDisputeOpened, "b", "s", "txn_1")
	event.Data.PreviousStatus = escrow.StatusPaid
	raw := h.serialize(event)

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			TransactionID  string `json:"transactionId"`
			PreviousStatus string `json:"previousStatus"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if decoded.Type != "dispute_opened" {
		t.Errorf("expected dispute_opened, got %s", decoded.Type)
	}
	if decoded.Data.PreviousStatus != "paid" {
		t.Errorf("expected previous status paid, got %s", decoded.Data.PreviousStatus)
	}
}
