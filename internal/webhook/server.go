// Package webhook exposes the relay's inbound HTTP surface: the provider's
// webhook verification handshake and event deliveries. Deliveries are
// acknowledged immediately; the actual per-message work runs on the
// dispatch pool so a slow upstream call never stalls the next delivery.
package webhook

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"warelay/internal/dispatch"
	"warelay/internal/relay"
)

// Processor handles one normalized message to completion.
type Processor interface {
	Handle(ctx context.Context, msg relay.Message)
}

// Deduper reports whether a message id was already delivered. Forget
// releases a mark so a message that never made it onto the pool can be
// picked up from the provider's redelivery.
type Deduper interface {
	Seen(ctx context.Context, messageID string) bool
	Forget(ctx context.Context, messageID string)
}

// Enqueuer submits per-message work off the request path.
type Enqueuer interface {
	Enqueue(task dispatch.Task) bool
}

// Handler serves the webhook endpoints.
type Handler struct {
	verifyToken string
	processor   Processor
	dedup       Deduper
	pool        Enqueuer
}

// NewHandler creates a Handler.
func NewHandler(verifyToken string, processor Processor, dedup Deduper, pool Enqueuer) *Handler {
	return &Handler{
		verifyToken: verifyToken,
		processor:   processor,
		dedup:       dedup,
		pool:        pool,
	}
}

// NewRouter builds the chi router for the relay.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/webhook", h.Verify)
	r.Post("/webhook", h.Receive)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return r
}

// Verify answers the provider's webhook-ownership handshake. The challenge
// is echoed bit-exact on success; any mismatch gets a 403 that never
// includes the configured token.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	challenge := q.Get("hub.challenge")
	token := q.Get("hub.verify_token")

	if mode == "subscribe" && token == h.verifyToken {
		log.Println("[Webhook] verification succeeded")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}
	log.Println("[Webhook] verification failed: mode or token mismatch")
	http.Error(w, "verification failed", http.StatusForbidden)
}

// Receive accepts an event delivery. It always acknowledges with 200 once
// the body has been read — a non-2xx would make the provider redeliver the
// whole payload, replaying messages that may already be mid-flight.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("[Webhook] malformed delivery: %v", err)
		respond(w, "ignored")
		return
	}

	msgs := ExtractMessages(payload)
	if len(msgs) == 0 {
		respond(w, "ignored")
		return
	}

	queued := 0
	for _, msg := range msgs {
		if h.dedup.Seen(r.Context(), msg.ID) {
			log.Printf("[Webhook] duplicate delivery of %s skipped", msg.ID)
			continue
		}
		m := msg
		if h.pool.Enqueue(func(ctx context.Context) { h.processor.Handle(ctx, m) }) {
			queued++
			continue
		}
		// The message was marked but never queued. Release the mark so the
		// provider's redelivery is not swallowed as a duplicate.
		h.dedup.Forget(r.Context(), m.ID)
		log.Printf("[Webhook] message %s not queued, will accept redelivery", m.ID)
	}

	log.Printf("[Webhook] delivery: %d message(s), %d queued", len(msgs), queued)
	respond(w, "processed")
}

func respond(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
