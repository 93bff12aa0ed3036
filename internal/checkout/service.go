package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cafe-pos/internal/logger"
	"cafe-pos/internal/order"
	"cafe-pos/internal/product"
	"cafe-pos/internal/queue"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrUnknownProduct = errors.New("unknown product")

type LineInput struct {
	ProductID  uuid.UUID `json:"product_id"`
	Quantity   int       `json:"quantity"`
	ApplyTaxes bool      `json:"apply_taxes"`
}

type Input struct {
	Items         []LineInput         `json:"items"`
	PaymentMethod order.PaymentMethod `json:"payment_method"`
	CustomerID    *uuid.UUID          `json:"customer_id,omitempty"`
	RewardCardID  *uuid.UUID          `json:"reward_card_id,omitempty"`
}

// EnqueueFailure reports a preparation type whose ticket could not be
// issued. The order stays recorded.
type EnqueueFailure struct {
	PreparationType queue.PreparationType `json:"preparation_type"`
	Error           string                `json:"error"`
}

type Result struct {
	Order    *order.Order     `json:"order"`
	Entries  []*queue.Entry   `json:"entries"`
	Failures []EnqueueFailure `json:"failures,omitempty"`
}

type Service interface {
	Checkout(ctx context.Context, in Input) (*Result, error)
	ClaimSuspendedItem(ctx context.Context, productID uuid.UUID) (*Result, error)
}

type service struct {
	orders   order.Repository
	products product.Repository
	queue    queue.Service
	now      func() time.Time
}

func NewService(orders order.Repository, products product.Repository, q queue.Service) Service {
	return &service{
		orders:   orders,
		products: products,
		queue:    q,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Checkout records the order priced from the catalog, then issues one ticket
// per preparation type present among its items.
func (s *service) Checkout(ctx context.Context, in Input) (*Result, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Checkout"),
		zap.Int("lines", len(in.Items)),
	)
	log.Info("Checkout started")

	if len(in.Items) == 0 {
		return nil, order.ErrEmptyOrder
	}

	ids := make([]uuid.UUID, 0, len(in.Items))
	for _, line := range in.Items {
		ids = append(ids, line.ProductID)
	}

	products, err := s.products.ListProductsByIDs(ctx, ids)
	if err != nil {
		log.Error("failed to load products", zap.Error(err))
		return nil, err
	}
	catalog := product.Index(products)

	items := make([]order.OrderItem, 0, len(in.Items))
	for _, line := range in.Items {
		p, ok := catalog[line.ProductID]
		if !ok {
			log.Warn("Checkout validation failed: unknown product",
				zap.String("product_id", line.ProductID.String()))
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, line.ProductID)
		}
		items = append(items, order.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    line.Quantity,
			UnitPrice:   p.Price,
			ApplyTaxes:  line.ApplyTaxes,
		})
	}

	o, err := order.NewOrder(order.NewOrderInput{
		Items:         items,
		PaymentMethod: in.PaymentMethod,
		CustomerID:    in.CustomerID,
		RewardCardID:  in.RewardCardID,
	}, s.now())
	if err != nil {
		log.Warn("Checkout validation failed", zap.Error(err))
		return nil, err
	}

	if err := s.orders.InsertOrder(ctx, o); err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return nil, err
	}

	res := s.enqueueAll(ctx, o, catalog)

	log.Info("Checkout success",
		zap.String("order_id", o.ID.String()),
		zap.Float64("total", o.TotalAmount),
		zap.Int("tickets", len(res.Entries)),
		zap.Int("enqueue_failures", len(res.Failures)),
	)
	return res, nil
}

// ClaimSuspendedItem redeems one pay-it-forward unit of productID as a
// zero-total order and queues it when the product is prepared.
func (s *service) ClaimSuspendedItem(ctx context.Context, productID uuid.UUID) (*Result, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ClaimSuspendedItem"),
		zap.String("product_id", productID.String()),
	)
	log.Info("ClaimSuspendedItem started")

	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		log.Warn("failed to load product", zap.Error(err))
		return nil, err
	}

	o, err := order.NewOrder(order.NewOrderInput{
		Items: []order.OrderItem{{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    1,
		}},
		PaymentMethod: order.PaymentSuspended,
	}, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.orders.InsertOrder(ctx, o); err != nil {
		log.Error("failed to insert suspended order", zap.Error(err))
		return nil, err
	}

	res := s.enqueueAll(ctx, o, product.Index([]*product.Product{p}))

	log.Info("ClaimSuspendedItem success",
		zap.String("order_id", o.ID.String()),
		zap.Int("tickets", len(res.Entries)),
	)
	return res, nil
}

func (s *service) enqueueAll(ctx context.Context, o *order.Order, catalog map[uuid.UUID]*product.Product) *Result {
	res := &Result{Order: o, Entries: []*queue.Entry{}}

	for _, t := range queue.PreparationTypes {
		if !needsQueue(o, catalog, t) {
			continue
		}

		entry, err := s.queue.Enqueue(ctx, o.ID, t)
		if err != nil {
			logger.FromCtx(ctx).Warn("enqueue after order failed",
				zap.String("order_id", o.ID.String()),
				zap.String("preparation_type", string(t)),
				zap.Error(err),
			)
			res.Failures = append(res.Failures, EnqueueFailure{PreparationType: t, Error: err.Error()})
			continue
		}
		res.Entries = append(res.Entries, entry)
	}

	return res
}

func needsQueue(o *order.Order, catalog map[uuid.UUID]*product.Product, t queue.PreparationType) bool {
	for _, it := range o.Items {
		if p, ok := catalog[it.ProductID]; ok && p.RelevantFor(t) {
			return true
		}
	}
	return false
}
