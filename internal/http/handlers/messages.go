package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

// Responder answers one inbound patient message.
type Responder interface {
	HandleMessage(ctx context.Context, text, callerContact string) string
}

// MessageRequest is the inbound message body.
type MessageRequest struct {
	Text string `json:"text"`
	From string `json:"from"`
}

// MessageResponse carries the concierge reply.
type MessageResponse struct {
	Reply string `json:"reply"`
}

// MessagesHandler adapts HTTP onto the concierge loop.
type MessagesHandler struct {
	responder Responder
	logger    *logging.Logger
}

func NewMessagesHandler(responder Responder, logger *logging.Logger) *MessagesHandler {
	if responder == nil {
		panic("handlers: responder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &MessagesHandler{responder: responder, logger: logger}
}

// Post handles POST /v1/messages.
func (h *MessagesHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}

	reply := h.responder.HandleMessage(r.Context(), req.Text, strings.TrimSpace(req.From))
	h.logger.Debug("message answered", "from_present", req.From != "", "reply_chars", len(reply))
	writeJSON(w, http.StatusOK, MessageResponse{Reply: reply})
}
