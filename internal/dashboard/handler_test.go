package dashboard

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// captureHub records broadcast messages.
type captureHub struct {
	mu   sync.Mutex
	msgs []Message
}

func (c *captureHub) Broadcast(msg Message) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
}

func TestHandlerEvents(t *testing.T) {
	hub := &captureHub{}
	handler := NewHandler(hub, zaptest.NewLogger(t))
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	handler.now = func() time.Time { return fixed }

	handler.OnFileAdded("team/a.log", "/logs/team/a.log")
	handler.OnContentUpdate("team/a.log", []byte("line1\n"), 6)
	handler.OnFileDeleted("team/a.log")

	if len(hub.msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(hub.msgs))
	}

	if hub.msgs[0].Type != MessageTypeLogNew {
		t.Errorf("message 0 type = %s, want %s", hub.msgs[0].Type, MessageTypeLogNew)
	}
	var added NewFileData
	if err := json.Unmarshal(hub.msgs[0].Data, &added); err != nil {
		t.Fatalf("Failed to unmarshal new file data: %v", err)
	}
	if added.Filename != "team/a.log" || added.Path != "/logs/team/a.log" || !added.Timestamp.Equal(fixed) {
		t.Errorf("unexpected new file data: %+v", added)
	}

	if hub.msgs[1].Type != MessageTypeLogUpdate {
		t.Errorf("message 1 type = %s, want %s", hub.msgs[1].Type, MessageTypeLogUpdate)
	}
	var update ContentUpdateData
	if err := json.Unmarshal(hub.msgs[1].Data, &update); err != nil {
		t.Fatalf("Failed to unmarshal update data: %v", err)
	}
	if update.Filename != "team/a.log" || update.Content != "line1\n" || update.Size != 6 {
		t.Errorf("unexpected update data: %+v", update)
	}

	if hub.msgs[2].Type != MessageTypeLogDelete {
		t.Errorf("message 2 type = %s, want %s", hub.msgs[2].Type, MessageTypeLogDelete)
	}
	var deleted DeleteData
	if err := json.Unmarshal(hub.msgs[2].Data, &deleted); err != nil {
		t.Fatalf("Failed to unmarshal delete data: %v", err)
	}
	if deleted.Filename != "team/a.log" {
		t.Errorf("unexpected delete data: %+v", deleted)
	}

	for i, msg := range hub.msgs {
		if !msg.Timestamp.Equal(fixed) {
			t.Errorf("message %d timestamp = %v, want %v", i, msg.Timestamp, fixed)
		}
	}
}

func TestHandlerThroughServer(t *testing.T) {
	server := newTestServer(t, nil)
	handler := NewHandler(server, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn)

	handler.OnFileAdded("a.log", "/logs/a.log")
	handler.OnContentUpdate("a.log", []byte("line1\n"), 6)

	if msg := readMessage(t, ctx, conn); msg.Type != MessageTypeLogNew {
		t.Errorf("Expected %s, got %s", MessageTypeLogNew, msg.Type)
	}
	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeLogUpdate {
		t.Fatalf("Expected %s, got %s", MessageTypeLogUpdate, msg.Type)
	}
	var update ContentUpdateData
	if err := json.Unmarshal(msg.Data, &update); err != nil {
		t.Fatalf("Failed to unmarshal update: %v", err)
	}
	if update.Content != "line1\n" {
		t.Errorf("content = %q, want %q", update.Content, "line1\n")
	}
}
