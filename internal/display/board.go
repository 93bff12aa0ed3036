package display

import (
	"context"
	"time"

	"cafe-pos/internal/logger"
	"cafe-pos/internal/order"
	"cafe-pos/internal/product"
	"cafe-pos/internal/queue"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IndividualProduct is one unit of a prepared line item, as shown on a
// queue screen. It is never persisted.
type IndividualProduct struct {
	EntryID     uuid.UUID    `json:"entry_id"`
	OrderID     uuid.UUID    `json:"order_id"`
	QueueNumber int          `json:"queue_number"`
	ProductID   uuid.UUID    `json:"product_id"`
	ProductName string       `json:"product_name"`
	Unit        int          `json:"unit"`
	Status      queue.Status `json:"status"`
}

// ExpandIndividualProducts explodes the line items of o that belong to the
// queue of entry e into one card per unit of quantity.
func ExpandIndividualProducts(o *order.Order, e *queue.Entry, products map[uuid.UUID]*product.Product) []IndividualProduct {
	out := make([]IndividualProduct, 0)
	if o == nil || e == nil {
		return out
	}

	for _, it := range o.Items {
		p, ok := products[it.ProductID]
		if !ok || !p.RelevantFor(e.PreparationType) {
			continue
		}
		for unit := 1; unit <= it.Quantity; unit++ {
			out = append(out, IndividualProduct{
				EntryID:     e.ID,
				OrderID:     o.ID,
				QueueNumber: e.QueueNumber,
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				Unit:        unit,
				Status:      e.Status,
			})
		}
	}
	return out
}

type Card struct {
	Entry         *queue.Entry        `json:"entry"`
	RemainingTime int                 `json:"remaining_time"`
	Products      []IndividualProduct `json:"products"`
}

type Board struct {
	PreparationType queue.PreparationType `json:"preparation_type"`
	InProgress      []Card                `json:"in_progress"`
	Waiting         []Card                `json:"waiting"`
	Ready           []Card                `json:"ready"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

type Service interface {
	Board(ctx context.Context, t queue.PreparationType, now time.Time) (*Board, error)
}

type service struct {
	queue           queue.Service
	orders          order.Repository
	products        product.Repository
	maxSimultaneous int
}

func NewService(q queue.Service, orders order.Repository, products product.Repository, maxSimultaneous int) Service {
	if maxSimultaneous <= 0 {
		maxSimultaneous = queue.MaxSimultaneous
	}
	return &service{
		queue:           q,
		orders:          orders,
		products:        products,
		maxSimultaneous: maxSimultaneous,
	}
}

// Board splits the active window of t into the batch in progress (oldest
// pending entries up to kitchen capacity), the waiting line and the ready
// shelf.
func (s *service) Board(ctx context.Context, t queue.PreparationType, now time.Time) (*Board, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Board"),
		zap.String("preparation_type", string(t)),
	)

	entries, err := s.queue.ListActiveEntries(ctx, t)
	if err != nil {
		log.Error("failed to list active entries", zap.Error(err))
		return nil, err
	}

	orderIDs := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		orderIDs = append(orderIDs, e.OrderID)
	}

	orders, err := s.orders.ListOrdersByIDs(ctx, orderIDs)
	if err != nil {
		log.Error("failed to load orders", zap.Error(err))
		return nil, err
	}
	byOrder := make(map[uuid.UUID]*order.Order, len(orders))
	productIDs := make([]uuid.UUID, 0)
	for _, o := range orders {
		byOrder[o.ID] = o
		productIDs = append(productIDs, o.ProductIDs()...)
	}

	products, err := s.products.ListProductsByIDs(ctx, productIDs)
	if err != nil {
		log.Error("failed to load products", zap.Error(err))
		return nil, err
	}
	catalog := product.Index(products)

	b := &Board{
		PreparationType: t,
		InProgress:      []Card{},
		Waiting:         []Card{},
		Ready:           []Card{},
		GeneratedAt:     now,
	}

	for _, e := range entries {
		card := Card{
			Entry:         e,
			RemainingTime: e.RemainingTime(now),
			Products:      ExpandIndividualProducts(byOrder[e.OrderID], e, catalog),
		}

		switch {
		case e.Status == queue.StatusReady:
			b.Ready = append(b.Ready, card)
		case len(b.InProgress) < s.maxSimultaneous:
			b.InProgress = append(b.InProgress, card)
		default:
			b.Waiting = append(b.Waiting, card)
		}
	}

	log.Debug("board built",
		zap.Int("in_progress", len(b.InProgress)),
		zap.Int("waiting", len(b.Waiting)),
		zap.Int("ready", len(b.Ready)),
	)
	return b, nil
}
