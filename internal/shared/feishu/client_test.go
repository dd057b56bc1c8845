package feishu

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBotClientSendCardSigned(t *testing.T) {
	var got BotMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.Write([]byte(`{"code":0,"msg":"success"}`))
	}))
	defer srv.Close()

	c := NewBotClient(srv.URL, "s3cret")
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	card := NewShipmentCard("Shipped", []ShipmentFact{{Label: "Order", Value: "SO-1"}}, "3 pallets")
	if err := c.SendCard(context.Background(), card); err != nil {
		t.Fatalf("SendCard: %v", err)
	}
	if got.MsgType != "interactive" || got.Card == nil {
		t.Fatalf("unexpected message %+v", got)
	}
	if got.Timestamp != "1700000000" || got.Sign != sign(1700000000, "s3cret") {
		t.Fatalf("signature missing: ts=%q sign=%q", got.Timestamp, got.Sign)
	}
	if !strings.Contains(got.Card.Elements[0].Fields[0].Text.Content, "SO-1") {
		t.Fatalf("card fields not rendered: %+v", got.Card.Elements)
	}
}

func TestBotClientErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":19021,"msg":"sign match fail"}`))
	}))
	defer srv.Close()

	if err := NewBotClient(srv.URL, "").SendText(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for non-zero code")
	}
}
