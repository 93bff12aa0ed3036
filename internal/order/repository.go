package order

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"cafe-pos/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	InsertOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]*Order, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// InsertOrder writes the order and its items in one transaction.
func (r *repository) InsertOrder(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "InsertOrder"),
		zap.String("order_id", o.ID.String()),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin tx", zap.Error(err))
		return storeErr("begin insert order", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, total_amount, payment_method,
			customer_id, reward_card_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		o.ID,
		o.TotalAmount,
		o.PaymentMethod,
		uuid.NullUUID{UUID: deref(o.CustomerID), Valid: o.CustomerID != nil},
		uuid.NullUUID{UUID: deref(o.RewardCardID), Valid: o.RewardCardID != nil},
		o.CreatedAt,
	)
	if err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return storeErr("insert order", err)
	}

	for i, it := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				order_id, position, product_id, product_name,
				quantity, unit_price, apply_taxes
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			o.ID,
			i,
			it.ProductID,
			it.ProductName,
			it.Quantity,
			it.UnitPrice,
			it.ApplyTaxes,
		)
		if err != nil {
			log.Error("failed to insert order item", zap.Int("position", i), zap.Error(err))
			return storeErr("insert order item", err)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit order", zap.Error(err))
		return storeErr("commit order", err)
	}

	log.Info("order inserted", zap.Int("items", len(o.Items)))
	return nil
}

func (r *repository) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	orders, err := r.ListOrdersByIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return orders[0], nil
}

// ListOrdersByIDs loads the orders found among ids with their items, oldest
// first. Unknown ids are skipped.
func (r *repository) ListOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]*Order, error) {
	if len(ids) == 0 {
		return []*Order{}, nil
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListOrdersByIDs"),
	)

	args := make([]any, len(ids))
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	in := strings.Join(placeholders, ",")

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, total_amount, payment_method, customer_id, reward_card_id, created_at
		FROM orders
		WHERE id IN (`+in+`)
		ORDER BY created_at ASC
	`, args...)
	if err != nil {
		log.Error("failed to query orders", zap.Error(err))
		return nil, storeErr("list orders", err)
	}

	orders := make([]*Order, 0, len(ids))
	byID := make(map[uuid.UUID]*Order, len(ids))
	for rows.Next() {
		var (
			o          Order
			customerID uuid.NullUUID
			rewardID   uuid.NullUUID
		)
		if err := rows.Scan(&o.ID, &o.TotalAmount, &o.PaymentMethod, &customerID, &rewardID, &o.CreatedAt); err != nil {
			rows.Close()
			log.Error("failed to scan order", zap.Error(err))
			return nil, storeErr("scan order", err)
		}
		if customerID.Valid {
			o.CustomerID = &customerID.UUID
		}
		if rewardID.Valid {
			o.RewardCardID = &rewardID.UUID
		}
		o.Items = []OrderItem{}
		orders = append(orders, &o)
		byID[o.ID] = &o
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, storeErr("iterate orders", err)
	}
	rows.Close()

	if len(orders) == 0 {
		return orders, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, product_name, quantity, unit_price, apply_taxes
		FROM order_items
		WHERE order_id IN (`+in+`)
		ORDER BY order_id, position ASC
	`, args...)
	if err != nil {
		log.Error("failed to query order items", zap.Error(err))
		return nil, storeErr("list order items", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			orderID uuid.UUID
			it      OrderItem
		)
		if err := itemRows.Scan(&orderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.ApplyTaxes); err != nil {
			log.Error("failed to scan order item", zap.Error(err))
			return nil, storeErr("scan order item", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, storeErr("iterate order items", err)
	}

	log.Debug("orders loaded", zap.Int("requested", len(ids)), zap.Int("found", len(orders)))
	return orders, nil
}

func deref(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
