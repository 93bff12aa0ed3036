package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Fakes & Mocks ---

// fakeRepository is an in-memory Repository with the same ordering and
// conditional-update semantics as the SQL one.
type fakeRepository struct {
	mu         sync.Mutex
	entries    map[uuid.UUID]*Entry
	orderUnits map[uuid.UUID]map[PreparationType]int
	last       map[PreparationType]*int

	txConflicts int
	listErr     error
	updateCalls int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		entries:    make(map[uuid.UUID]*Entry),
		orderUnits: make(map[uuid.UUID]map[PreparationType]int),
		last:       make(map[PreparationType]*int),
	}
}

func (r *fakeRepository) addOrder(t PreparationType, units int) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	r.orderUnits[id] = map[PreparationType]int{t: units}
	return id
}

func (r *fakeRepository) setLast(t PreparationType, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[t] = &n
}

func (r *fakeRepository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.txConflicts > 0 {
		r.txConflicts--
		return storeErr("insert queue entry", &pq.Error{Code: pq.ErrorCode(PgUniqueViolation)})
	}

	tx := &fakeTx{repo: r}
	if err := fn(tx); err != nil {
		return err
	}

	// commit
	for _, e := range tx.inserted {
		cp := *e
		r.entries[e.ID] = &cp
	}
	for t, n := range tx.saved {
		n := n
		r.last[t] = &n
	}
	return nil
}

func (r *fakeRepository) CountOrderUnits(ctx context.Context, orderID uuid.UUID, t PreparationType) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	units, ok := r.orderUnits[orderID]
	if !ok {
		return 0, ErrOrderNotFound
	}
	return units[t], nil
}

func (r *fakeRepository) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeRepository) ListEntries(ctx context.Context, t PreparationType, statuses []Status) ([]*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listErr != nil {
		return nil, r.listErr
	}

	out := make([]*Entry, 0)
	for _, e := range r.entries {
		if e.PreparationType != t {
			continue
		}
		for _, s := range statuses {
			if e.Status == s {
				cp := *e
				out = append(out, &cp)
				break
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].QueueNumber < out[j].QueueNumber
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *fakeRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	if e.Status != from {
		return nil, fmt.Errorf("%w: entry is %s, expected %s", ErrInvalidTransition, e.Status, from)
	}

	e.Status = to
	switch to {
	case StatusReady:
		e.ReadyAt = &at
	case StatusDelivered:
		e.DeliveredAt = &at
	}

	cp := *e
	return &cp, nil
}

func (r *fakeRepository) UpdateEstimatedTime(ctx context.Context, id uuid.UUID, seconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	e.EstimatedTime = seconds
	r.updateCalls++
	return nil
}

func (r *fakeRepository) byNumber(t PreparationType, number int) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.PreparationType == t && e.QueueNumber == number && e.Active() {
			cp := *e
			return &cp
		}
	}
	return nil
}

type fakeTx struct {
	repo     *fakeRepository
	inserted []*Entry
	saved    map[PreparationType]int
}

func (tx *fakeTx) LockLastNumber(ctx context.Context, t PreparationType) (*int, error) {
	return tx.repo.last[t], nil
}

func (tx *fakeTx) SaveLastNumber(ctx context.Context, t PreparationType, number int) error {
	if tx.saved == nil {
		tx.saved = make(map[PreparationType]int)
	}
	tx.saved[t] = number
	return nil
}

func (tx *fakeTx) CountActiveUnits(ctx context.Context, t PreparationType) (int, error) {
	units := 0
	for _, e := range tx.repo.entries {
		if e.PreparationType == t && e.Active() {
			units += tx.repo.orderUnits[e.OrderID][t]
		}
	}
	return units, nil
}

func (tx *fakeTx) NumberInUse(ctx context.Context, t PreparationType, number int) (bool, error) {
	for _, e := range tx.repo.entries {
		if e.PreparationType == t && e.QueueNumber == number && e.Active() {
			return true, nil
		}
	}
	return false, nil
}

// InsertEntry enforces the partial unique index on active (type, number).
func (tx *fakeTx) InsertEntry(ctx context.Context, e *Entry) error {
	held, _ := tx.NumberInUse(ctx, e.PreparationType, e.QueueNumber)
	for _, p := range tx.inserted {
		if p.PreparationType == e.PreparationType && p.QueueNumber == e.QueueNumber {
			held = true
		}
	}
	if held && e.Active() {
		return storeErr("insert queue entry", &pq.Error{Code: pq.ErrorCode(PgUniqueViolation)})
	}

	tx.inserted = append(tx.inserted, e)
	return nil
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) QueueChanged(ctx context.Context, e Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// steppingClock advances one second on every call so created_at order is strict.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newTestService(repo *fakeRepository, opts ...Option) Service {
	return NewService(repo, append([]Option{WithClock(steppingClock())}, opts...)...)
}

func enqueueN(t *testing.T, svc Service, repo *fakeRepository, prep PreparationType, n int) []*Entry {
	t.Helper()

	out := make([]*Entry, 0, n)
	for i := 0; i < n; i++ {
		e, err := svc.Enqueue(context.Background(), repo.addOrder(prep, 1), prep)
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

// --- Tests ---

func TestService_Enqueue_FirstBatchOfPizzas(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	entries := enqueueN(t, svc, repo, PreparationPizza, 4)

	for i, e := range entries {
		assert.Equal(t, i, e.QueueNumber)
		assert.Equal(t, 780, e.EstimatedTime)
		assert.Equal(t, StatusPending, e.Status)
		assert.Nil(t, e.ReadyAt)
		assert.Nil(t, e.DeliveredAt)
	}

	t.Run("FifthPizzaWaitsOneBatch", func(t *testing.T) {
		fifth := enqueueN(t, svc, repo, PreparationPizza, 1)[0]
		assert.Equal(t, 4, fifth.QueueNumber)
		assert.Equal(t, 1560, fifth.EstimatedTime)
	})
}

func TestService_DeliverFirstPizza_RecomputesWaitingEntries(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	svc := newTestService(repo)

	entries := enqueueN(t, svc, repo, PreparationPizza, 5)
	require.Equal(t, 1560, entries[4].EstimatedTime)

	ready, err := svc.MarkReady(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, ready.Status)
	require.NotNil(t, ready.ReadyAt)

	delivered, err := svc.MarkDelivered(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)
	assert.NotNil(t, delivered.ReadyAt)

	updated, err := svc.RecomputeEstimates(ctx, PreparationPizza)
	require.NoError(t, err)
	assert.Equal(t, 0, updated, "transition already triggered the recompute")

	for n := 1; n <= 4; n++ {
		e := repo.byNumber(PreparationPizza, n)
		require.NotNil(t, e)
		assert.Equal(t, 780, e.EstimatedTime, "queue number %d", n)
	}
}

func TestService_RecomputeEstimates_FIFO(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	svc := newTestService(repo)

	entries := enqueueN(t, svc, repo, PreparationSandwich, 5)
	assert.Equal(t, 540, entries[4].EstimatedTime)

	// Readying the oldest frees a pending slot: only pending entries hold FIFO positions.
	_, err := svc.MarkReady(ctx, entries[0].ID)
	require.NoError(t, err)

	fifth, err := svc.GetEntry(ctx, entries[4].ID)
	require.NoError(t, err)
	assert.Equal(t, 270, fifth.EstimatedTime)

	_, err = svc.MarkDelivered(ctx, entries[0].ID)
	require.NoError(t, err)

	pending, err := repo.ListEntries(ctx, PreparationSandwich, []Status{StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 4)
	for _, e := range pending {
		assert.Equal(t, 270, e.EstimatedTime)
	}
}

func TestService_RecomputeEstimates_OnlyWritesChangedValues(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	svc := newTestService(repo)

	enqueueN(t, svc, repo, PreparationSandwich, 9)

	updated, err := svc.RecomputeEstimates(ctx, PreparationSandwich)
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
	assert.Equal(t, 0, repo.updateCalls)

	pending, err := repo.ListEntries(ctx, PreparationSandwich, []Status{StatusPending})
	require.NoError(t, err)

	expected := []int{270, 270, 270, 270, 540, 540, 540, 540, 810}
	for i, e := range pending {
		assert.Equal(t, expected[i], e.EstimatedTime, "position %d", i)
	}
}

func TestService_Enqueue_CountsProductUnits(t *testing.T) {
	ctx := context.Background()

	t.Run("BelowCapacity", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		_, err := svc.Enqueue(ctx, repo.addOrder(PreparationSandwich, 3), PreparationSandwich)
		require.NoError(t, err)

		e, err := svc.Enqueue(ctx, repo.addOrder(PreparationSandwich, 1), PreparationSandwich)
		require.NoError(t, err)
		assert.Equal(t, 270, e.EstimatedTime)
	})

	t.Run("OneOrderFillsTheBatch", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		_, err := svc.Enqueue(ctx, repo.addOrder(PreparationSandwich, 4), PreparationSandwich)
		require.NoError(t, err)

		e, err := svc.Enqueue(ctx, repo.addOrder(PreparationSandwich, 1), PreparationSandwich)
		require.NoError(t, err)
		assert.Equal(t, 1, e.QueueNumber)
		assert.Equal(t, 540, e.EstimatedTime)
	})

	t.Run("EightActiveUnits", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		_, err := svc.Enqueue(ctx, repo.addOrder(PreparationPizza, 5), PreparationPizza)
		require.NoError(t, err)
		_, err = svc.Enqueue(ctx, repo.addOrder(PreparationPizza, 3), PreparationPizza)
		require.NoError(t, err)

		e, err := svc.Enqueue(ctx, repo.addOrder(PreparationPizza, 1), PreparationPizza)
		require.NoError(t, err)
		assert.Equal(t, 780*3, e.EstimatedTime)
	})

	t.Run("ReadyEntriesStillCount", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		entries := enqueueN(t, svc, repo, PreparationSandwich, 4)
		_, err := svc.MarkReady(ctx, entries[0].ID)
		require.NoError(t, err)

		e := enqueueN(t, svc, repo, PreparationSandwich, 1)[0]
		assert.Equal(t, 540, e.EstimatedTime)
	})

	t.Run("TypesAreIndependent", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		enqueueN(t, svc, repo, PreparationPizza, 6)
		e := enqueueN(t, svc, repo, PreparationSandwich, 1)[0]
		assert.Equal(t, 0, e.QueueNumber)
		assert.Equal(t, 270, e.EstimatedTime)
	})
}

func TestService_Enqueue_QueueNumbers(t *testing.T) {
	ctx := context.Background()

	t.Run("WrapsAfter999", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)
		repo.setLast(PreparationSandwich, 998)

		e999, err := svc.Enqueue(ctx, repo.addOrder(PreparationSandwich, 1), PreparationSandwich)
		require.NoError(t, err)
		assert.Equal(t, 999, e999.QueueNumber)

		next, err := svc.Enqueue(ctx, repo.addOrder(PreparationSandwich, 1), PreparationSandwich)
		require.NoError(t, err)
		assert.Equal(t, 0, next.QueueNumber)
	})

	t.Run("DistinctUntilThousandIssued", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		seen := make(map[int]bool)
		for i := 0; i < 1000; i++ {
			e, err := svc.Enqueue(ctx, repo.addOrder(PreparationPizza, 1), PreparationPizza)
			require.NoError(t, err)
			require.False(t, seen[e.QueueNumber], "duplicate number %d", e.QueueNumber)
			seen[e.QueueNumber] = true
		}
		assert.Len(t, seen, 1000)

		_, err := svc.Enqueue(ctx, repo.addOrder(PreparationPizza, 1), PreparationPizza)
		assert.ErrorIs(t, err, ErrQueueFull)

		_, err = svc.MarkReady(ctx, repo.byNumber(PreparationPizza, 7).ID)
		require.NoError(t, err)
		_, err = svc.MarkDelivered(ctx, repo.byNumber(PreparationPizza, 7).ID)
		require.NoError(t, err)

		freed, err := svc.Enqueue(ctx, repo.addOrder(PreparationPizza, 1), PreparationPizza)
		require.NoError(t, err)
		assert.Equal(t, 7, freed.QueueNumber)
	})

	t.Run("WrapSkipsNumbersStillActive", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		stale, err := svc.Enqueue(ctx, repo.addOrder(PreparationSandwich, 1), PreparationSandwich)
		require.NoError(t, err)
		require.Equal(t, 0, stale.QueueNumber)

		repo.setLast(PreparationSandwich, MaxQueueNumber)

		next, err := svc.Enqueue(ctx, repo.addOrder(PreparationSandwich, 1), PreparationSandwich)
		require.NoError(t, err)
		assert.Equal(t, 1, next.QueueNumber)

		after, err := svc.Enqueue(ctx, repo.addOrder(PreparationSandwich, 1), PreparationSandwich)
		require.NoError(t, err)
		assert.Equal(t, 2, after.QueueNumber)

		got, err := svc.GetEntry(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, got.Status)
	})

	t.Run("WrapReusesDeliveredNumber", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		first, err := svc.Enqueue(ctx, repo.addOrder(PreparationPizza, 1), PreparationPizza)
		require.NoError(t, err)
		require.Equal(t, 0, first.QueueNumber)
		_, err = svc.MarkReady(ctx, first.ID)
		require.NoError(t, err)
		_, err = svc.MarkDelivered(ctx, first.ID)
		require.NoError(t, err)

		repo.setLast(PreparationPizza, MaxQueueNumber)
		wrapped, err := svc.Enqueue(ctx, repo.addOrder(PreparationPizza, 1), PreparationPizza)
		require.NoError(t, err)
		assert.Equal(t, 0, wrapped.QueueNumber)
	})

	t.Run("NumbersKeepIncreasingAfterDelivery", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		entries := enqueueN(t, svc, repo, PreparationPizza, 3)
		_, err := svc.MarkReady(ctx, entries[2].ID)
		require.NoError(t, err)
		_, err = svc.MarkDelivered(ctx, entries[2].ID)
		require.NoError(t, err)

		e := enqueueN(t, svc, repo, PreparationPizza, 1)[0]
		assert.Equal(t, 3, e.QueueNumber)
	})

	t.Run("ConcurrentEnqueuesGetDistinctNumbers", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		orders := make([]uuid.UUID, 50)
		for i := range orders {
			orders[i] = repo.addOrder(PreparationSandwich, 1)
		}

		var wg sync.WaitGroup
		results := make(chan int, len(orders))
		for _, id := range orders {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				e, err := svc.Enqueue(ctx, id, PreparationSandwich)
				if assert.NoError(t, err) {
					results <- e.QueueNumber
				}
			}(id)
		}
		wg.Wait()
		close(results)

		seen := make(map[int]bool)
		for n := range results {
			assert.False(t, seen[n], "duplicate number %d", n)
			seen[n] = true
		}
		assert.Len(t, seen, len(orders))
	})
}

func TestService_Enqueue_Validation(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	svc := newTestService(repo)

	t.Run("InvalidType", func(t *testing.T) {
		_, err := svc.Enqueue(ctx, uuid.New(), PreparationType("salad"))
		assert.ErrorIs(t, err, ErrInvalidPreparationType)
	})

	t.Run("UnknownOrder", func(t *testing.T) {
		_, err := svc.Enqueue(ctx, uuid.New(), PreparationPizza)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("NothingToPrepare", func(t *testing.T) {
		orderID := repo.addOrder(PreparationSandwich, 2)
		_, err := svc.Enqueue(ctx, orderID, PreparationPizza)
		assert.ErrorIs(t, err, ErrNothingToPrepare)
	})
}

func TestService_Enqueue_RetriesConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("SucceedsAfterRetry", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)
		repo.txConflicts = 2

		e, err := svc.Enqueue(ctx, repo.addOrder(PreparationPizza, 1), PreparationPizza)
		require.NoError(t, err)
		assert.Equal(t, 0, e.QueueNumber)
	})

	t.Run("GivesUp", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)
		repo.txConflicts = enqueueAttempts

		_, err := svc.Enqueue(ctx, repo.addOrder(PreparationPizza, 1), PreparationPizza)
		assert.ErrorIs(t, err, ErrQueueNumberConflict)

		active, err := svc.ListActiveEntries(ctx, PreparationPizza)
		require.NoError(t, err)
		assert.Empty(t, active)
	})
}

func TestService_Transitions(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	svc := newTestService(repo)

	entries := enqueueN(t, svc, repo, PreparationSandwich, 2)

	t.Run("NotFound", func(t *testing.T) {
		_, err := svc.MarkReady(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrEntryNotFound)

		_, err = svc.MarkDelivered(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrEntryNotFound)
	})

	t.Run("CannotDeliverPending", func(t *testing.T) {
		_, err := svc.MarkDelivered(ctx, entries[0].ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		e, err := svc.GetEntry(ctx, entries[0].ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, e.Status)
		assert.Nil(t, e.DeliveredAt)
	})

	t.Run("CannotReadyTwice", func(t *testing.T) {
		_, err := svc.MarkReady(ctx, entries[1].ID)
		require.NoError(t, err)

		_, err = svc.MarkReady(ctx, entries[1].ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("DeliveredIsFinal", func(t *testing.T) {
		_, err := svc.MarkDelivered(ctx, entries[1].ID)
		require.NoError(t, err)

		_, err = svc.MarkReady(ctx, entries[1].ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		_, err = svc.MarkDelivered(ctx, entries[1].ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("ActiveListExcludesDelivered", func(t *testing.T) {
		active, err := svc.ListActiveEntries(ctx, PreparationSandwich)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, entries[0].ID, active[0].ID)
	})

	t.Run("RecomputeFailureDoesNotUndoTransition", func(t *testing.T) {
		e := enqueueN(t, svc, repo, PreparationSandwich, 1)[0]
		repo.listErr = fmt.Errorf("list: %w", ErrStoreUnavailable)
		defer func() { repo.listErr = nil }()

		ready, err := svc.MarkReady(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusReady, ready.Status)
	})
}

func TestService_ListActiveEntries(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	svc := newTestService(repo)

	entries := enqueueN(t, svc, repo, PreparationPizza, 3)
	_, err := svc.MarkReady(ctx, entries[1].ID)
	require.NoError(t, err)

	active, err := svc.ListActiveEntries(ctx, PreparationPizza)
	require.NoError(t, err)
	require.Len(t, active, 3)
	for i := range entries {
		assert.Equal(t, entries[i].ID, active[i].ID)
	}

	t.Run("StoreError", func(t *testing.T) {
		repo.listErr = errors.New("connection refused")
		defer func() { repo.listErr = nil }()

		_, err := svc.ListActiveEntries(ctx, PreparationPizza)
		assert.Error(t, err)
	})

	t.Run("InvalidType", func(t *testing.T) {
		_, err := svc.ListActiveEntries(ctx, PreparationType(""))
		assert.ErrorIs(t, err, ErrInvalidPreparationType)
	})
}

func TestService_PublishesEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("Enqueue", func(t *testing.T) {
		repo := newFakeRepository()
		notifier := new(MockNotifier)
		svc := newTestService(repo, WithNotifier(notifier))

		notifier.On("QueueChanged", ctx, mock.MatchedBy(func(e Event) bool {
			return e.Type == EventEnqueued &&
				e.PreparationType == PreparationPizza &&
				e.QueueNumber != nil && *e.QueueNumber == 0
		})).Return(nil).Once()

		_, err := svc.Enqueue(ctx, repo.addOrder(PreparationPizza, 1), PreparationPizza)
		require.NoError(t, err)
		notifier.AssertExpectations(t)
	})

	t.Run("NotifierErrorIsIgnored", func(t *testing.T) {
		repo := newFakeRepository()
		notifier := new(MockNotifier)
		svc := newTestService(repo, WithNotifier(notifier))

		notifier.On("QueueChanged", ctx, mock.Anything).Return(errors.New("broker down"))

		e, err := svc.Enqueue(ctx, repo.addOrder(PreparationPizza, 1), PreparationPizza)
		require.NoError(t, err)

		_, err = svc.MarkReady(ctx, e.ID)
		require.NoError(t, err)
		notifier.AssertNumberOfCalls(t, "QueueChanged", 2)
	})

	t.Run("RecomputeWithChanges", func(t *testing.T) {
		repo := newFakeRepository()
		notifier := new(MockNotifier)
		svc := newTestService(repo, WithNotifier(notifier))
		notifier.On("QueueChanged", ctx, mock.Anything).Return(nil)

		entries := enqueueN(t, svc, repo, PreparationSandwich, 5)
		_, err := svc.MarkReady(ctx, entries[0].ID)
		require.NoError(t, err)

		notifier.AssertCalled(t, "QueueChanged", ctx, mock.MatchedBy(func(e Event) bool {
			return e.Type == EventRecomputed && e.Updated == 1 && e.EntryID == nil
		}))
	})
}
