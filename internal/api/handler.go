package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cafe-pos/internal/checkout"
	"cafe-pos/internal/display"
	"cafe-pos/internal/metrics"
	"cafe-pos/internal/middleware"
	"cafe-pos/internal/queue"
	"cafe-pos/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	queue    queue.Service
	checkout checkout.Service
	display  display.Service
	metrics  *metrics.Queue
	now      func() time.Time
}

func NewHandler(q queue.Service, c checkout.Service, d display.Service, m *metrics.Queue) *Handler {
	if m == nil {
		m = &metrics.Queue{}
	}
	return &Handler{
		queue:    q,
		checkout: c,
		display:  d,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register mounts every route on r. Routes that issue tickets, move them or
// rewrite estimates require a staff identity set by middleware.AuthMiddleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.health)

	r.Post("/checkout", h.postCheckout)
	r.Post("/suspended/{productID}/claim", h.claimSuspended)

	r.Route("/queues/{type}", func(r chi.Router) {
		r.With(middleware.RequireStaff).Post("/entries", h.enqueue)
		r.Get("/entries", h.listActive)
		r.With(middleware.RequireStaff).Post("/recompute", h.recompute)
		r.Get("/board", h.board)
	})

	r.Route("/queue-entries/{id}", func(r chi.Router) {
		r.Get("/", h.getEntry)
		r.With(middleware.RequireStaff).Post("/ready", h.markReady)
		r.With(middleware.RequireStaff).Post("/delivered", h.markDelivered)
	})
}

// entryView is a queue entry as shown to clients, with its live countdown.
type entryView struct {
	*queue.Entry
	Remaining int `json:"remaining_time"`
}

func (h *Handler) view(e *queue.Entry) entryView {
	return entryView{Entry: e, Remaining: e.RemainingTime(h.now())}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"metrics": h.metrics.Snapshot(),
	})
}

func (h *Handler) postCheckout(w http.ResponseWriter, r *http.Request) {
	var in checkout.Input
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.checkout.Checkout(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) claimSuspended(w http.ResponseWriter, r *http.Request) {
	productID, err := pathUUID(r, "productID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.checkout.ClaimSuspendedItem(r.Context(), productID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, res)
}

type enqueueRequest struct {
	OrderID uuid.UUID `json:"order_id"`
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	t, err := queue.ParsePreparationType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req enqueueRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.OrderID == uuid.Nil {
		writeError(w, r, fmt.Errorf("%w: order_id is required", errInvalidBody))
		return
	}

	entry, err := h.queue.Enqueue(r.Context(), req.OrderID, t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, h.view(entry))
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	t, err := queue.ParsePreparationType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.queue.ListActiveEntries(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, h.view(e))
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) recompute(w http.ResponseWriter, r *http.Request) {
	t, err := queue.ParsePreparationType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.queue.RecomputeEstimates(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (h *Handler) board(w http.ResponseWriter, r *http.Request) {
	t, err := queue.ParsePreparationType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	b, err := h.display.Board(r.Context(), t, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	h.entryAction(w, r, h.queue.GetEntry)
}

func (h *Handler) markReady(w http.ResponseWriter, r *http.Request) {
	h.entryAction(w, r, h.queue.MarkReady)
}

func (h *Handler) markDelivered(w http.ResponseWriter, r *http.Request) {
	h.entryAction(w, r, h.queue.MarkDelivered)
}

func (h *Handler) entryAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, id uuid.UUID) (*queue.Entry, error),
) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := action(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, h.view(entry))
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a uuid", errInvalidBody, name)
	}
	return id, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}
