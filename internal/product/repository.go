package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cafe-pos/internal/logger"
	"cafe-pos/internal/queue"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrStoreUnavailable = errors.New("product catalog unavailable")
)

type Repository interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]*Product, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const productColumns = `id, name, price, requires_preparation, preparation_type`

func scanProduct(row interface{ Scan(dest ...any) error }) (*Product, error) {
	var (
		p        Product
		prepType sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.RequiresPreparation, &prepType); err != nil {
		return nil, err
	}
	if prepType.Valid {
		t := queue.PreparationType(prepType.String)
		p.PreparationType = &t
	}
	return &p, nil
}

func (r *repository) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get product",
			zap.String("product_id", id.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("get product: %w: %w", ErrStoreUnavailable, err)
	}
	return p, nil
}

// ListProductsByIDs returns the products found among ids. Unknown ids are
// skipped, duplicates are collapsed.
func (r *repository) ListProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]*Product, error) {
	if len(ids) == 0 {
		return []*Product{}, nil
	}

	log := logger.FromCtx(ctx).With(
		zap.String("method", "ListProductsByIDs"),
		zap.Int("ids", len(ids)),
	)

	seen := make(map[uuid.UUID]struct{}, len(ids))
	args := make([]any, 0, len(ids))
	placeholders := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` +
		strings.Join(placeholders, ",") + `) ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query products", zap.Error(err))
		return nil, fmt.Errorf("list products: %w: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	products := make([]*Product, 0, len(args))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			log.Error("failed to scan product", zap.Error(err))
			return nil, fmt.Errorf("scan product: %w: %w", ErrStoreUnavailable, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w: %w", ErrStoreUnavailable, err)
	}

	log.Debug("products loaded", zap.Int("found", len(products)))
	return products, nil
}
