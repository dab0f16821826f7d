package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dronefood-storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop()               { f.once.Do(func() { close(f.stopped) }) }

type fakeTickers struct {
	mu   sync.Mutex
	list []*fakeTicker
}

func (f *fakeTickers) New(time.Duration) Ticker {
	ft := &fakeTicker{c: make(chan time.Time), stopped: make(chan struct{})}
	f.mu.Lock()
	f.list = append(f.list, ft)
	f.mu.Unlock()
	return ft
}

func (f *fakeTickers) nth(t *testing.T, n int) *fakeTicker {
	t.Helper()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.list) >= n
	}, time.Second, time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list[n-1]
}

func (ft *fakeTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case ft.c <- time.Now():
	case <-time.After(time.Second):
		t.Fatalf("simulation did not accept tick")
	}
}

type fakeOrders struct {
	mu         sync.Mutex
	order      domain.OrderDetail
	err        error
	confirmErr error
	confirmed  int
	lastToken  string

	confirmEntered chan struct{}
	confirmRelease chan struct{}
}

func (f *fakeOrders) GetOrder(_ context.Context, token, _ string) (domain.OrderDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastToken = token
	return f.order, f.err
}

func (f *fakeOrders) ConfirmReceived(_ context.Context, _, _ string) error {
	if f.confirmRelease != nil {
		close(f.confirmEntered)
		<-f.confirmRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmed++
	return nil
}

type fakeRoutes struct {
	plans map[domain.LatLng]domain.RoutePlan
	err   error
	block chan struct{}
}

func (f *fakeRoutes) Route(ctx context.Context, _, destination domain.LatLng) (domain.RoutePlan, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return domain.RoutePlan{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.RoutePlan{}, f.err
	}
	return f.plans[destination], nil
}

type staticIdentity struct{ id *domain.Identity }

func (s staticIdentity) CurrentIdentity() *domain.Identity { return s.id }
func (s staticIdentity) Loading() bool                     { return false }

var (
	pickup  = domain.LatLng{Lat: 10.0, Lng: 106.0}
	dropoff = domain.LatLng{Lat: 10.4, Lng: 106.4}
	detour  = domain.LatLng{Lat: 11.0, Lng: 107.0}
)

func f64(v float64) *float64 { return &v }

func shippingOrder(status domain.OrderStatus) domain.OrderDetail {
	return domain.OrderDetail{
		ID:     "o-1",
		Status: status,
		DeliveryTask: domain.DeliveryTask{
			PickupLat: f64(pickup.Lat), PickupLng: f64(pickup.Lng),
			DropoffLat: f64(dropoff.Lat), DropoffLng: f64(dropoff.Lng),
		},
	}
}

func linePlan(from, to domain.LatLng, n int, dist, secs float64) domain.RoutePlan {
	coords := make([]domain.LatLng, n)
	for i := range coords {
		f := float64(i) / float64(n-1)
		coords[i] = domain.LatLng{Lat: from.Lat + (to.Lat-from.Lat)*f, Lng: from.Lng + (to.Lng-from.Lng)*f}
	}
	return domain.RoutePlan{Coordinates: coords, TotalDistanceMeters: dist, TotalTimeSeconds: secs}
}

type harness struct {
	tracker *Tracker
	orders  *fakeOrders
	routes  *fakeRoutes
	tickers *fakeTickers
}

func newHarness(t *testing.T, status domain.OrderStatus, n int) *harness {
	t.Helper()
	h := &harness{
		orders: &fakeOrders{order: shippingOrder(status)},
		routes: &fakeRoutes{plans: map[domain.LatLng]domain.RoutePlan{
			dropoff: linePlan(pickup, dropoff, n, 1000, 400),
			detour:  linePlan(pickup, detour, n, 5000, 900),
		}},
		tickers: &fakeTickers{},
	}
	h.tracker = New(h.orders, h.routes, staticIdentity{id: &domain.Identity{UID: "u1", Token: "tok"}},
		Options{Tick: time.Millisecond, FetchTimeout: time.Second, NewTicker: h.tickers.New}, nil)
	t.Cleanup(h.tracker.Close)
	return h
}

func waitPhase(t *testing.T, tr *Tracker, phase domain.Phase) domain.TrackingState {
	t.Helper()
	require.Eventually(t, func() bool { return tr.Snapshot().Phase == phase }, time.Second, time.Millisecond,
		"phase never became %s", phase)
	return tr.Snapshot()
}

func TestSimulationRunsToArrival(t *testing.T) {
	for _, n := range []int{2, 5, 17} {
		h := newHarness(t, domain.OrderShipping, n)
		require.NoError(t, h.tracker.Start(context.Background(), "o-1"))

		st := h.tracker.Snapshot()
		require.Equal(t, domain.PhaseTracking, st.Phase)
		assert.Equal(t, pickup, *st.CurrentPosition)
		assert.Equal(t, 1000.0, *st.RemainingDistanceMeters)
		assert.Equal(t, "tok", h.orders.lastToken)

		ft := h.tickers.nth(t, 1)
		for s := 0; s <= n; s++ {
			ft.tick(t)
		}
		st = waitPhase(t, h.tracker, domain.PhaseArrived)
		assert.True(t, st.Arrived)
		assert.Equal(t, 0.0, *st.RemainingDistanceMeters)
		assert.Equal(t, 0.0, *st.RemainingTimeSeconds)
		assert.Equal(t, dropoff, *st.CurrentPosition)
		assert.True(t, st.CanConfirm)
		<-ft.stopped
	}
}

func TestSimulationStepsByIndex(t *testing.T) {
	h := newHarness(t, domain.OrderShipping, 4)
	require.NoError(t, h.tracker.Start(context.Background(), "o-1"))
	ft := h.tickers.nth(t, 1)
	plan := h.routes.plans[dropoff]

	// Sending step s+1 guarantees step s has been applied.
	ft.tick(t) // s=0
	ft.tick(t) // s=1
	ft.tick(t) // s=2
	require.Eventually(t, func() bool {
		st := h.tracker.Snapshot()
		return *st.CurrentPosition == plan.Coordinates[2]
	}, time.Second, time.Millisecond)

	st := h.tracker.Snapshot()
	assert.InDelta(t, 1000*(1-2.0/4.0), *st.RemainingDistanceMeters, 1e-9)
	assert.InDelta(t, 400*(1-2.0/4.0), *st.RemainingTimeSeconds, 1e-9)
	assert.False(t, st.CanConfirm)
}

func TestUpdateEndpointsCancelsOldSimulation(t *testing.T) {
	h := newHarness(t, domain.OrderShipping, 5)
	require.NoError(t, h.tracker.Start(context.Background(), "o-1"))
	old := h.tickers.nth(t, 1)
	old.tick(t)
	old.tick(t)

	require.NoError(t, h.tracker.UpdateEndpoints(context.Background(), pickup, detour))
	select {
	case <-old.stopped:
	case <-time.After(time.Second):
		t.Fatalf("old ticker not stopped")
	}

	st := h.tracker.Snapshot()
	require.Equal(t, domain.PhaseTracking, st.Phase)
	assert.Equal(t, detour, *st.Destination)
	assert.Equal(t, 5000.0, *st.RemainingDistanceMeters)

	select {
	case old.c <- time.Now():
		t.Fatalf("stale simulation accepted a tick")
	case <-time.After(20 * time.Millisecond):
	}

	fresh := h.tickers.nth(t, 2)
	for i := 0; i <= 5; i++ {
		fresh.tick(t)
	}
	st = waitPhase(t, h.tracker, domain.PhaseArrived)
	assert.Equal(t, detour, *st.CurrentPosition)
}

func TestUpdateEndpointsSameIsNoop(t *testing.T) {
	h := newHarness(t, domain.OrderShipping, 3)
	require.NoError(t, h.tracker.Start(context.Background(), "o-1"))
	require.NoError(t, h.tracker.UpdateEndpoints(context.Background(), pickup, dropoff))

	h.tickers.mu.Lock()
	n := len(h.tickers.list)
	h.tickers.mu.Unlock()
	assert.Equal(t, 1, n)
}

func TestNonShippingStaysIdle(t *testing.T) {
	h := newHarness(t, domain.OrderCooking, 3)
	require.NoError(t, h.tracker.Start(context.Background(), "o-1"))

	st := h.tracker.Snapshot()
	assert.Equal(t, domain.PhaseIdle, st.Phase)
	assert.Equal(t, 1000.0, *st.RemainingDistanceMeters)
	assert.Nil(t, st.CurrentPosition)
	assert.False(t, st.CanConfirm)
	assert.Empty(t, h.tickers.list)
}

func TestDeliveredOrderPinsToDestination(t *testing.T) {
	h := newHarness(t, domain.OrderDelivered, 3)
	require.NoError(t, h.tracker.Start(context.Background(), "o-1"))

	st := h.tracker.Snapshot()
	assert.Equal(t, domain.PhaseArrived, st.Phase)
	assert.Equal(t, dropoff, *st.CurrentPosition)
	assert.Equal(t, 0.0, *st.RemainingTimeSeconds)
	assert.False(t, st.CanConfirm)
}

func TestLoadFailures(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		h := newHarness(t, domain.OrderShipping, 3)
		h.orders.err = errors.New("connection refused")
		err := h.tracker.Start(context.Background(), "o-1")
		require.Error(t, err)
		st := h.tracker.Snapshot()
		assert.Equal(t, domain.PhaseFailed, st.Phase)
		assert.Contains(t, st.Error, "connection refused")
	})
	t.Run("missing coordinates", func(t *testing.T) {
		h := newHarness(t, domain.OrderShipping, 3)
		h.orders.order.DeliveryTask.DropoffLng = nil
		err := h.tracker.Start(context.Background(), "o-1")
		assert.ErrorIs(t, err, domain.ErrMissingCoordinates)
		assert.Equal(t, domain.PhaseFailed, h.tracker.Snapshot().Phase)
	})
	t.Run("empty route", func(t *testing.T) {
		h := newHarness(t, domain.OrderShipping, 3)
		h.routes.plans = nil
		err := h.tracker.Start(context.Background(), "o-1")
		assert.ErrorIs(t, err, domain.ErrEmptyRoute)
		assert.Equal(t, domain.PhaseFailed, h.tracker.Snapshot().Phase)
	})
	t.Run("route timeout", func(t *testing.T) {
		h := newHarness(t, domain.OrderShipping, 3)
		h.routes.block = make(chan struct{})
		h.tracker.opts.FetchTimeout = 10 * time.Millisecond
		err := h.tracker.Start(context.Background(), "o-1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		st := h.tracker.Snapshot()
		assert.Equal(t, domain.PhaseFailed, st.Phase)
		assert.Contains(t, st.Error, "timed out")
	})
	t.Run("guest", func(t *testing.T) {
		tr := New(&fakeOrders{}, &fakeRoutes{}, staticIdentity{}, Options{}, nil)
		defer tr.Close()
		assert.ErrorIs(t, tr.Start(context.Background(), "o-1"), domain.ErrUnauthenticated)
	})
}

func TestConfirmReceipt(t *testing.T) {
	h := newHarness(t, domain.OrderShipping, 2)
	require.NoError(t, h.tracker.Start(context.Background(), "o-1"))
	assert.ErrorIs(t, h.tracker.ConfirmReceipt(context.Background()), domain.ErrNotConfirmable)

	ft := h.tickers.nth(t, 1)
	for i := 0; i <= 2; i++ {
		ft.tick(t)
	}
	waitPhase(t, h.tracker, domain.PhaseArrived)

	h.orders.confirmErr = errors.New("503")
	require.Error(t, h.tracker.ConfirmReceipt(context.Background()))
	st := h.tracker.Snapshot()
	assert.Equal(t, domain.PhaseArrived, st.Phase)
	assert.NotEmpty(t, st.Error)

	h.orders.mu.Lock()
	h.orders.confirmErr = nil
	h.orders.mu.Unlock()
	require.NoError(t, h.tracker.ConfirmReceipt(context.Background()))
	st = h.tracker.Snapshot()
	assert.Equal(t, domain.PhaseConfirmed, st.Phase)
	assert.Empty(t, st.Error)
	assert.Equal(t, 1, h.orders.confirmed)
}

func TestConfirmReceiptAfterEndpointChangeKeepsNewRoute(t *testing.T) {
	h := newHarness(t, domain.OrderShipping, 2)
	require.NoError(t, h.tracker.Start(context.Background(), "o-1"))
	ft := h.tickers.nth(t, 1)
	for i := 0; i <= 2; i++ {
		ft.tick(t)
	}
	waitPhase(t, h.tracker, domain.PhaseArrived)

	h.orders.confirmEntered = make(chan struct{})
	h.orders.confirmRelease = make(chan struct{})
	result := make(chan error, 1)
	go func() { result <- h.tracker.ConfirmReceipt(context.Background()) }()
	<-h.orders.confirmEntered

	require.NoError(t, h.tracker.UpdateEndpoints(context.Background(), pickup, detour))
	close(h.orders.confirmRelease)

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatalf("confirm did not return")
	}
	st := h.tracker.Snapshot()
	assert.Equal(t, domain.PhaseTracking, st.Phase)
	assert.Equal(t, detour, *st.Destination)
	assert.Equal(t, 5000.0, *st.RemainingDistanceMeters)
}

func TestSubscribeDeliversLatest(t *testing.T) {
	h := newHarness(t, domain.OrderShipping, 3)
	ch, cancel := h.tracker.Subscribe()
	first := <-ch
	assert.Equal(t, domain.PhaseLoadingOrder, first.Phase)

	require.NoError(t, h.tracker.Start(context.Background(), "o-1"))
	latest := <-ch
	assert.Equal(t, domain.PhaseTracking, latest.Phase)

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestCloseStopsSimulation(t *testing.T) {
	h := newHarness(t, domain.OrderShipping, 10)
	require.NoError(t, h.tracker.Start(context.Background(), "o-1"))
	ft := h.tickers.nth(t, 1)
	ft.tick(t)
	ch, _ := h.tracker.Subscribe()

	h.tracker.Close()
	<-ft.stopped
	for range ch {
	}
	assert.ErrorIs(t, h.tracker.Start(context.Background(), "o-1"), ErrClosed)
}

func TestSampleStep(t *testing.T) {
	plan := linePlan(pickup, dropoff, 4, 800, 80)
	s := sampleStep(plan, dropoff, 1)
	assert.Equal(t, plan.Coordinates[1], s.position)
	assert.InDelta(t, 600, s.remainingDistance, 1e-9)
	assert.InDelta(t, 60, s.remainingTime, 1e-9)
	assert.False(t, s.arrived)

	s = sampleStep(plan, dropoff, 4)
	assert.True(t, s.arrived)
	assert.Equal(t, dropoff, s.position)
	assert.Zero(t, s.remainingDistance)
}
