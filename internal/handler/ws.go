package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nihongolab/jlptmock/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cookie auth already gated this route; same-origin form posts drive
	// every mutation, so the socket only ever pushes timer state out.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type timerMessage struct {
	Event     string `json:"event"`
	Remaining int    `json:"remaining"`
	Display   string `json:"display"`
	Redirect  string `json:"redirect,omitempty"`
}

// handleExamSocket streams countdown updates for an active attempt and
// tells the client where to go once the attempt finishes.
func (h *Handler) handleExamSocket(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.sessionForRequest(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Readers are drained so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Done():
			msg := timerMessage{Event: "completed", Display: "0:00"}
			if sess.State() == session.StateCompleted {
				h.mu.Lock()
				id, recorded := h.results[token]
				h.mu.Unlock()
				if recorded {
					msg.Redirect = h.path(fmt.Sprintf("/results/%d", id))
				}
			}
			if msg.Redirect == "" {
				msg.Redirect = h.path("/")
			}
			if err := conn.WriteJSON(msg); err != nil {
				slog.Debug("websocket write failed", "error", err)
			}
			return
		case <-ticker.C:
			msg := timerMessage{
				Event:     "tick",
				Remaining: sess.RemainingSeconds(),
				Display:   sess.FormatRemaining(),
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
