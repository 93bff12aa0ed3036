package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cafe-pos/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tx is the unit of work in which a ticket number is issued. The sequence
// row for the preparation type stays locked until the transaction ends.
type Tx interface {
	LockLastNumber(ctx context.Context, t PreparationType) (*int, error)
	SaveLastNumber(ctx context.Context, t PreparationType, number int) error
	NumberInUse(ctx context.Context, t PreparationType, number int) (bool, error)
	CountActiveUnits(ctx context.Context, t PreparationType) (int, error)
	InsertEntry(ctx context.Context, e *Entry) error
}

type Repository interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	CountOrderUnits(ctx context.Context, orderID uuid.UUID, t PreparationType) (int, error)
	GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error)
	ListEntries(ctx context.Context, t PreparationType, statuses []Status) ([]*Entry, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*Entry, error)
	UpdateEstimatedTime(ctx context.Context, id uuid.UUID, seconds int) error
}

const entryColumns = `id, order_id, queue_number, preparation_type, estimated_time, status, created_at, ready_at, delivered_at`

// activeUnitsQuery counts product units, not entries: every unit of quantity
// on a relevant line item of an active entry's order counts once.
const activeUnitsQuery = `
	SELECT COALESCE(SUM(oi.quantity), 0)
	FROM queue_entries q
	JOIN order_items oi ON oi.order_id = q.order_id
	JOIN products p ON p.id = oi.product_id
	WHERE q.preparation_type = $1
	  AND q.status IN ('pending', 'ready')
	  AND p.requires_preparation
	  AND p.preparation_type = $1
`

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e           Entry
		readyAt     sql.NullTime
		deliveredAt sql.NullTime
	)

	err := row.Scan(
		&e.ID,
		&e.OrderID,
		&e.QueueNumber,
		&e.PreparationType,
		&e.EstimatedTime,
		&e.Status,
		&e.CreatedAt,
		&readyAt,
		&deliveredAt,
	)
	if err != nil {
		return nil, err
	}

	if readyAt.Valid {
		t := readyAt.Time
		e.ReadyAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		e.DeliveredAt = &t
	}

	return &e, nil
}

// storeErr classifies a driver error as a retryable assignment conflict or
// a generic store failure.
func storeErr(op string, err error) error {
	if isConflict(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrQueueNumberConflict, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func (r *repository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return storeErr("begin enqueue tx", err)
	}
	defer tx.Rollback()

	if err := fn(&txRepository{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit enqueue tx", err)
	}
	return nil
}

func (r *repository) CountOrderUnits(
	ctx context.Context,
	orderID uuid.UUID,
	t PreparationType,
) (int, error) {

	query := `
		SELECT
			EXISTS (SELECT 1 FROM orders WHERE id = $1),
			COALESCE((
				SELECT SUM(oi.quantity)
				FROM order_items oi
				JOIN products p ON p.id = oi.product_id
				WHERE oi.order_id = $1
				  AND p.requires_preparation
				  AND p.preparation_type = $2
			), 0)
	`

	var (
		exists bool
		units  int
	)
	if err := r.db.QueryRowContext(ctx, query, orderID, t).Scan(&exists, &units); err != nil {
		return 0, storeErr("count order units", err)
	}
	if !exists {
		return 0, ErrOrderNotFound
	}

	return units, nil
}

func (r *repository) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM queue_entries WHERE id = $1`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, storeErr("get queue entry", err)
	}

	return e, nil
}

func (r *repository) ListEntries(
	ctx context.Context,
	t PreparationType,
	statuses []Status,
) ([]*Entry, error) {

	log := logger.FromCtx(ctx).With(
		zap.String("method", "ListEntries"),
		zap.String("preparation_type", string(t)),
	)

	args := []any{t}
	where := []string{"preparation_type = $1"}

	if len(statuses) > 0 {
		placeholders := make([]string, 0, len(statuses))
		for _, s := range statuses {
			args = append(args, s)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ",")+")")
	}

	query := `SELECT ` + entryColumns + ` FROM queue_entries WHERE ` +
		strings.Join(where, " AND ") +
		` ORDER BY created_at ASC, queue_number ASC`

	log.Debug("executing list entries query",
		zap.String("query", query),
		zap.Any("args", args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query queue entries", zap.Error(err))
		return nil, storeErr("list queue entries", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			log.Error("failed to scan queue entry", zap.Error(err))
			return nil, storeErr("scan queue entry", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		log.Error("rows iteration error", zap.Error(err))
		return nil, storeErr("iterate queue entries", err)
	}

	return entries, nil
}

// UpdateStatus moves an entry from one status to the next in a single
// conditional update and stamps the matching transition column.
func (r *repository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to Status,
	at time.Time,
) (*Entry, error) {

	var column string
	switch to {
	case StatusReady:
		column = "ready_at"
	case StatusDelivered:
		column = "delivered_at"
	default:
		return nil, ErrInvalidTransition
	}

	query := fmt.Sprintf(`
		UPDATE queue_entries
		SET status = $1, %s = $2
		WHERE id = $3 AND status = $4
		RETURNING %s
	`, column, entryColumns)

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, to, at, id, from))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, storeErr("update queue entry status", err)
	}

	// Nothing matched: either the entry is gone or it is in another status.
	var current Status
	err = r.db.QueryRowContext(ctx, `SELECT status FROM queue_entries WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, storeErr("get queue entry status", err)
	}

	return nil, fmt.Errorf("%w: entry is %s, expected %s", ErrInvalidTransition, current, from)
}

func (r *repository) UpdateEstimatedTime(ctx context.Context, id uuid.UUID, seconds int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET estimated_time = $1
		WHERE id = $2
	`, seconds, id)
	if err != nil {
		return storeErr("update estimated time", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return storeErr("update estimated time", err)
	}
	if rowsAffected == 0 {
		return ErrEntryNotFound
	}

	return nil
}

type txRepository struct {
	tx *sql.Tx
}

func (r *txRepository) LockLastNumber(ctx context.Context, t PreparationType) (*int, error) {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO queue_sequences (preparation_type, last_number)
		VALUES ($1, NULL)
		ON CONFLICT (preparation_type) DO NOTHING
	`, t)
	if err != nil {
		return nil, storeErr("ensure queue sequence", err)
	}

	var last sql.NullInt64
	err = r.tx.QueryRowContext(ctx, `
		SELECT last_number
		FROM queue_sequences
		WHERE preparation_type = $1
		FOR UPDATE
	`, t).Scan(&last)
	if err != nil {
		return nil, storeErr("lock queue sequence", err)
	}

	if !last.Valid {
		return nil, nil
	}
	n := int(last.Int64)
	return &n, nil
}

func (r *txRepository) SaveLastNumber(ctx context.Context, t PreparationType, number int) error {
	_, err := r.tx.ExecContext(ctx, `
		UPDATE queue_sequences
		SET last_number = $1, updated_at = NOW()
		WHERE preparation_type = $2
	`, number, t)
	if err != nil {
		return storeErr("save queue sequence", err)
	}
	return nil
}

func (r *txRepository) NumberInUse(ctx context.Context, t PreparationType, number int) (bool, error) {
	var inUse bool
	err := r.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM queue_entries
			WHERE preparation_type = $1
			  AND queue_number = $2
			  AND status IN ('pending', 'ready')
		)
	`, t, number).Scan(&inUse)
	if err != nil {
		return false, storeErr("check queue number", err)
	}
	return inUse, nil
}

func (r *txRepository) CountActiveUnits(ctx context.Context, t PreparationType) (int, error) {
	var units int
	if err := r.tx.QueryRowContext(ctx, activeUnitsQuery, t).Scan(&units); err != nil {
		return 0, storeErr("count active units", err)
	}
	return units, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, e *Entry) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO queue_entries (
			id, order_id, queue_number, preparation_type,
			estimated_time, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		e.ID,
		e.OrderID,
		e.QueueNumber,
		e.PreparationType,
		e.EstimatedTime,
		e.Status,
		e.CreatedAt,
	)
	if err != nil {
		return storeErr("insert queue entry", err)
	}
	return nil
}
