package dashboard

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/agentlogs/logmon/internal/daemon"
)

// Broadcaster publishes a message to every subscriber.
type Broadcaster interface {
	Broadcast(msg Message)
}

// Handler receives update pipeline results and formats them as hub messages.
// It bridges between the daemon and the WebSocket server.
type Handler struct {
	hub    Broadcaster
	logger *zap.Logger
	now    func() time.Time
}

var _ daemon.Listener = (*Handler)(nil)

// NewHandler creates a new event handler connected to a hub
func NewHandler(hub Broadcaster, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, logger: logger, now: time.Now}
}

// OnFileAdded handles a newly observed file
func (h *Handler) OnFileAdded(id, path string) {
	h.logger.Info("New log file detected", zap.String("id", id))
	ts := h.now()
	h.publish(MessageTypeLogNew, ts, NewFileData{
		Filename:  id,
		Path:      path,
		Timestamp: ts,
	})
}

// OnContentUpdate handles new content for a file
func (h *Handler) OnContentUpdate(id string, content []byte, size int64) {
	h.logger.Debug("Log file updated",
		zap.String("id", id),
		zap.Int("bytes", len(content)),
		zap.Int64("size", size),
	)
	ts := h.now()
	h.publish(MessageTypeLogUpdate, ts, ContentUpdateData{
		Filename:  id,
		Content:   string(content),
		Size:      size,
		Timestamp: ts,
	})
}

// OnFileDeleted handles a removed file
func (h *Handler) OnFileDeleted(id string) {
	h.logger.Info("Log file deleted", zap.String("id", id))
	ts := h.now()
	h.publish(MessageTypeLogDelete, ts, DeleteData{
		Filename:  id,
		Timestamp: ts,
	})
}

func (h *Handler) publish(typ MessageType, ts time.Time, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal payload", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	h.hub.Broadcast(Message{Type: typ, Timestamp: ts, Data: data})
}
