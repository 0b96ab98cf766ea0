package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/rdelgatto/packmule/internal/modules/sweep"
)

const streamWriteWait = 10 * time.Second

// SweepHub fans sweep progress out to websocket subscribers. The sweep
// driver publishes through Broadcast; slow subscribers drop events rather
// than stall the sweep.
type SweepHub struct {
	mu   sync.RWMutex
	subs map[chan sweep.Progress]struct{}
}

// NewSweepHub creates an empty hub.
func NewSweepHub() *SweepHub {
	return &SweepHub{subs: make(map[chan sweep.Progress]struct{})}
}

// Subscribe registers a listener. The returned cancel must be called when
// the listener goes away.
func (h *SweepHub) Subscribe() (<-chan sweep.Progress, func()) {
	ch := make(chan sweep.Progress, 16)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers one progress event to every subscriber without
// blocking the caller.
func (h *SweepHub) Broadcast(p sweep.Progress) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// Subscribers returns the current listener count.
func (h *SweepHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// SweepStreamHandler upgrades GET /api/sweeps/stream to a websocket and
// forwards live sweep progress.
type SweepStreamHandler struct {
	hub *SweepHub
	log zerolog.Logger
}

// NewSweepStreamHandler creates the stream handler.
func NewSweepStreamHandler(hub *SweepHub, log zerolog.Logger) *SweepStreamHandler {
	return &SweepStreamHandler{
		hub: hub,
		log: log.With().Str("handler", "sweep_stream").Logger(),
	}
}

// ServeHTTP handles the websocket session for one subscriber.
func (h *SweepStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	events, cancel := h.hub.Subscribe()
	defer cancel()

	h.log.Debug().Int("subscribers", h.hub.Subscribers()).Msg("Sweep stream subscriber connected")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-events:
			data, err := json.Marshal(p)
			if err != nil {
				h.log.Error().Err(err).Msg("Failed to encode progress event")
				continue
			}
			if err := h.writeMessage(ctx, conn, data); err != nil {
				h.log.Debug().Err(err).Msg("Sweep stream subscriber disconnected")
				return
			}
		}
	}
}

func (h *SweepStreamHandler) writeMessage(ctx context.Context, conn *websocket.Conn, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteWait)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
