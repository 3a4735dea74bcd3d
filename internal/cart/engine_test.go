package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/coordinator/journal"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/session"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
)

// fakeStore is an in-memory server of record.
type fakeStore struct {
	mu     sync.Mutex
	lines  []domain.CartLine
	nextID int
	calls  map[string]int
	fail   map[string]error

	// AddToCart for blockProduct waits on release after signalling started.
	blockProduct string
	started      chan struct{}
	release      chan struct{}

	// CartDetails waits on detailsRelease when set.
	detailsStarted chan struct{}
	detailsRelease chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{calls: make(map[string]int), fail: make(map[string]error)}
}

func (s *fakeStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *fakeStore) enter(ctx context.Context, op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	if sess, ok := session.FromContext(ctx); !ok || !sess.Authenticated() {
		return fmt.Errorf("%s: missing session", op)
	}
	if err, ok := s.fail[op]; ok {
		delete(s.fail, op)
		return err
	}
	return nil
}

func (s *fakeStore) CartDetails(ctx context.Context) ([]domain.CartLine, error) {
	if err := s.enter(ctx, "details"); err != nil {
		return nil, err
	}
	if s.detailsRelease != nil {
		s.detailsStarted <- struct{}{}
		<-s.detailsRelease
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out, nil
}

func (s *fakeStore) AddToCart(ctx context.Context, productID string, qty int, unitPrice decimal.Decimal) (domain.CartLine, error) {
	if err := s.enter(ctx, "add"); err != nil {
		return domain.CartLine{}, err
	}
	if s.release != nil && productID == s.blockProduct {
		s.started <- struct{}{}
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines[i].Quantity += qty
			return s.lines[i], nil
		}
	}
	s.nextID++
	l := domain.CartLine{LineID: fmt.Sprintf("line-%d", s.nextID), ProductID: productID, Quantity: qty, UnitPrice: unitPrice}
	s.lines = append(s.lines, l)
	return l, nil
}

func (s *fakeStore) SetQuantity(ctx context.Context, productID string, qty int) (domain.CartLine, error) {
	if err := s.enter(ctx, "set"); err != nil {
		return domain.CartLine{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines[i].Quantity = qty
			return s.lines[i], nil
		}
	}
	return domain.CartLine{}, domain.ErrNotFound
}

func (s *fakeStore) RemoveLine(ctx context.Context, productID string) error {
	if err := s.enter(ctx, "remove"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeStore) ClearCart(ctx context.Context) error {
	if err := s.enter(ctx, "clear"); err != nil {
		return err
	}
	s.mu.Lock()
	s.lines = nil
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) seed(lines ...domain.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, lines...)
	s.nextID += len(lines)
}

type memJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (m *memJournal) Save(_ context.Context, e *journal.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

var alice = session.Session{UserID: "u-1", Token: "tok-1"}

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newTestEngine(t *testing.T, store *fakeStore, opts ...Option) (*Engine, *clockwork.FakeClock, *session.Holder) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	holder := session.NewHolder(alice)
	base := []Option{WithClock(clock), WithPollInterval(0)}
	e := NewEngine(store, holder, append(base, opts...)...)
	t.Cleanup(e.Close)
	return e, clock, holder
}

func TestAddIsOptimisticThenReconciled(t *testing.T) {
	store := newFakeStore()
	store.blockProduct = "5"
	store.started = make(chan struct{})
	store.release = make(chan struct{})
	e, clock, _ := newTestEngine(t, store)

	done := make(chan error, 1)
	go func() { done <- e.AddItem(context.Background(), "5", 2, price(100)) }()

	<-store.started
	lines := e.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "5", lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, lines[0].Optimistic())
	assert.Equal(t, OptimisticPending, e.State())

	close(store.release)
	require.NoError(t, <-done)
	assert.Equal(t, 0, store.count("details"))

	clock.Advance(DefaultResyncDelay)
	require.Eventually(t, func() bool { return store.count("details") == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return e.State() == Idle }, time.Second, 5*time.Millisecond)

	lines = e.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "line-1", lines[0].LineID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, e.Total().Equal(price(200)))
}

func TestSecondAddDroppedWhileInFlight(t *testing.T) {
	store := newFakeStore()
	store.blockProduct = "5"
	store.started = make(chan struct{})
	store.release = make(chan struct{})
	e, _, _ := newTestEngine(t, store)

	done := make(chan error, 1)
	go func() { done <- e.AddItem(context.Background(), "5", 1, price(10)) }()
	<-store.started

	err := e.AddItem(context.Background(), "5", 1, price(10))
	assert.ErrorIs(t, err, ErrAddInFlight)
	err = e.AddItem(context.Background(), "6", 1, price(10))
	assert.ErrorIs(t, err, ErrAddInFlight, "the default gate is global")

	close(store.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, store.count("add"))
	assert.Equal(t, 1, e.ItemCount())
}

func TestPerProductGateAllowsOtherProducts(t *testing.T) {
	store := newFakeStore()
	store.blockProduct = "5"
	store.started = make(chan struct{})
	store.release = make(chan struct{})
	e, _, _ := newTestEngine(t, store, WithPerProductGate(true))

	done := make(chan error, 1)
	go func() { done <- e.AddItem(context.Background(), "5", 1, price(10)) }()
	<-store.started

	assert.ErrorIs(t, e.AddItem(context.Background(), "5", 1, price(10)), ErrAddInFlight)
	require.NoError(t, e.AddItem(context.Background(), "6", 3, price(10)))

	close(store.release)
	require.NoError(t, <-done)
	assert.Equal(t, 2, store.count("add"))
	assert.Equal(t, 4, e.ItemCount())
}

func TestFailedAddRollsBack(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.CartLine{LineID: "line-1", ProductID: "1", Quantity: 1, UnitPrice: price(50)})
	store.fail["add"] = errors.New("connection refused")
	jr := &memJournal{}
	e, _, _ := newTestEngine(t, store, WithJournal(jr))
	require.NoError(t, e.Load(context.Background()))

	err := e.AddItem(context.Background(), "9", 1, price(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)

	lines := e.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "1", lines[0].ProductID)
	assert.Equal(t, 2, store.count("details"))
	assert.Equal(t, Idle, e.State())

	require.NotEmpty(t, jr.entries)
	assert.Equal(t, journal.StatusFailed, jr.entries[len(jr.entries)-1].Status)
}

func TestRepeatedAddsKeepOneLine(t *testing.T) {
	store := newFakeStore()
	e, clock, _ := newTestEngine(t, store)
	ctx := context.Background()

	require.NoError(t, e.AddItem(ctx, "5", 2, price(100)))
	require.NoError(t, e.AddItem(ctx, "5", 3, price(100)))

	lines := e.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)

	clock.Advance(DefaultResyncDelay)
	require.Eventually(t, func() bool { return e.State() == Idle }, time.Second, 5*time.Millisecond)

	lines = e.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, "line-1", lines[0].LineID)
}

func TestZeroQuantityRoutesToConfirmation(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.CartLine{LineID: "line-1", ProductID: "5", Quantity: 2, UnitPrice: price(100)})
	e, _, _ := newTestEngine(t, store)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx))

	pending, err := e.UpdateQuantity(ctx, "5", 0)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "cart.remove", pending.Action)

	pending.Decline()
	assert.Equal(t, 2, e.Lines()[0].Quantity)
	assert.Zero(t, store.count("remove"))
	assert.Zero(t, store.count("set"))

	pending, err = e.UpdateQuantity(ctx, "5", 0)
	require.NoError(t, err)
	require.NoError(t, pending.Confirm(ctx))

	assert.Equal(t, 1, store.count("remove"))
	assert.Empty(t, e.Lines())
}

func TestNegativeQuantityRejected(t *testing.T) {
	store := newFakeStore()
	e, _, _ := newTestEngine(t, store)

	_, err := e.UpdateQuantity(context.Background(), "5", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.ErrorIs(t, e.AddItem(context.Background(), "5", 0, price(1)), domain.ErrInvalidQuantity)
	assert.Zero(t, store.count("set"))
	assert.Zero(t, store.count("add"))
}

func TestIncrementDecrement(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.CartLine{LineID: "line-1", ProductID: "5", Quantity: 1, UnitPrice: price(10)})
	e, _, _ := newTestEngine(t, store)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx))

	pending, err := e.Increment(ctx, "5")
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.Equal(t, 2, e.Lines()[0].Quantity)

	pending, err = e.Decrement(ctx, "5")
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.Equal(t, 1, e.Lines()[0].Quantity)

	pending, err = e.Decrement(ctx, "5")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, 1, e.Lines()[0].Quantity)

	_, err = e.Increment(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetQuantityFailureResyncs(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.CartLine{LineID: "line-1", ProductID: "5", Quantity: 1, UnitPrice: price(10)})
	store.fail["set"] = errors.New("502 bad gateway")
	e, _, _ := newTestEngine(t, store)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx))

	_, err := e.UpdateQuantity(ctx, "5", 4)
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.Equal(t, 2, store.count("details"))
	assert.Equal(t, 1, e.Lines()[0].Quantity)
}

func TestClearRequiresConfirmation(t *testing.T) {
	store := newFakeStore()
	store.seed(
		domain.CartLine{LineID: "line-1", ProductID: "1", Quantity: 1, UnitPrice: price(10)},
		domain.CartLine{LineID: "line-2", ProductID: "2", Quantity: 2, UnitPrice: price(20)},
	)
	e, _, _ := newTestEngine(t, store)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx))

	pending := e.RequestClear()
	assert.Len(t, e.Lines(), 2)
	assert.Zero(t, store.count("clear"))

	require.NoError(t, pending.Confirm(ctx))
	assert.Empty(t, e.Lines())
	assert.True(t, e.Total().IsZero())
}

func TestLoadWithoutSessionEmptiesCart(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.CartLine{LineID: "line-1", ProductID: "1", Quantity: 1, UnitPrice: price(10)})
	e, _, holder := newTestEngine(t, store)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx))
	require.Len(t, e.Lines(), 1)

	holder.Logout()
	require.NoError(t, e.Load(ctx))

	assert.Empty(t, e.Lines())
	assert.Equal(t, 1, store.count("details"))
	assert.ErrorIs(t, e.AddItem(ctx, "1", 1, price(10)), domain.ErrUnauthenticated)
}

func TestLoadReplacesWithRemoteTruth(t *testing.T) {
	store := newFakeStore()
	e, _, _ := newTestEngine(t, store)
	ctx := context.Background()

	require.NoError(t, e.AddItem(ctx, "1", 1, price(10)))
	store.seed(domain.CartLine{LineID: "line-9", ProductID: "7", Quantity: 4, UnitPrice: price(3)})

	require.NoError(t, e.Load(ctx))

	store.mu.Lock()
	want := append([]domain.CartLine(nil), store.lines...)
	store.mu.Unlock()
	assert.Equal(t, want, e.Lines())
	for _, l := range e.Lines() {
		assert.False(t, l.Optimistic())
	}
}

func TestLoadFailureKeepsLines(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.CartLine{LineID: "line-1", ProductID: "1", Quantity: 1, UnitPrice: price(10)})
	e, _, _ := newTestEngine(t, store)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx))

	store.fail["details"] = errors.New("timeout")
	err := e.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.Len(t, e.Lines(), 1)
}

func TestPollingRefreshes(t *testing.T) {
	store := newFakeStore()
	clock := clockwork.NewFakeClock()
	e := NewEngine(store, session.Fixed(alice), WithClock(clock), WithPollInterval(DefaultPollInterval))
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, e.Start(ctx))
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Empty(t, e.Lines())

	store.seed(domain.CartLine{LineID: "line-1", ProductID: "3", Quantity: 2, UnitPrice: price(7)})
	clock.Advance(DefaultPollInterval)

	require.Eventually(t, func() bool { return len(e.Lines()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, store.count("details"))
}

func TestNoMutationAfterClose(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.CartLine{LineID: "line-1", ProductID: "1", Quantity: 1, UnitPrice: price(10)})
	store.detailsStarted = make(chan struct{})
	store.detailsRelease = make(chan struct{})
	e, _, _ := newTestEngine(t, store)

	done := make(chan error, 1)
	go func() { done <- e.Load(context.Background()) }()
	<-store.detailsStarted

	e.Close()
	close(store.detailsRelease)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Empty(t, e.Lines())
	assert.ErrorIs(t, e.AddItem(context.Background(), "1", 1, price(10)), ErrClosed)
	assert.Zero(t, store.count("add"))
}

func TestCloseStopsPendingResync(t *testing.T) {
	store := newFakeStore()
	e, clock, _ := newTestEngine(t, store)

	require.NoError(t, e.AddItem(context.Background(), "1", 1, price(10)))
	e.Close()
	clock.Advance(time.Minute)

	// give a stray callback the chance to run
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, store.count("details"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "optimistic_pending", OptimisticPending.String())
	assert.Equal(t, "reconciling", Reconciling.String())
}
