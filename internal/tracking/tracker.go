package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dronefood-storefront/internal/domain"
	"dronefood-storefront/internal/service/identity"
	"go.uber.org/zap"
)

// OrderSource loads orders and records receipt.
type OrderSource interface {
	GetOrder(ctx context.Context, token, orderID string) (domain.OrderDetail, error)
	ConfirmReceived(ctx context.Context, token, orderID string) error
}

// RouteSource computes a road route.
type RouteSource interface {
	Route(ctx context.Context, origin, destination domain.LatLng) (domain.RoutePlan, error)
}

type Options struct {
	Tick             time.Duration
	ConfirmProximity float64
	FetchTimeout     time.Duration
	NewTicker        TickerFunc
}

func (o Options) withDefaults() Options {
	if o.Tick <= 0 {
		o.Tick = 200 * time.Millisecond
	}
	if o.ConfirmProximity <= 0 {
		o.ConfirmProximity = 80
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 60 * time.Second
	}
	if o.NewTicker == nil {
		o.NewTicker = NewRealTicker
	}
	return o
}

// Tracker drives the live tracking view of a single order.
type Tracker struct {
	orders OrderSource
	routes RouteSource
	ident  identity.Provider
	opts   Options
	logger *zap.Logger

	life   context.Context
	end    context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	state  domain.TrackingState
	plan   *domain.RoutePlan
	gen    uint64
	cancel context.CancelFunc
	subs   map[int]chan domain.TrackingState
	nextID int
	closed bool
}

func New(orders OrderSource, routes RouteSource, ident identity.Provider, opts Options, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	life, end := context.WithCancel(context.Background())
	return &Tracker{
		orders: orders,
		routes: routes,
		ident:  ident,
		opts:   opts.withDefaults(),
		logger: logger.Named("tracking"),
		life:   life,
		end:    end,
		state:  domain.TrackingState{Phase: domain.PhaseLoadingOrder},
		subs:   make(map[int]chan domain.TrackingState),
	}
}

// Start loads orderID, requests the route between its pickup and dropoff and, when
// the order is shipping, starts the simulation. Failures leave the tracker FAILED
// and are also returned.
func (t *Tracker) Start(ctx context.Context, orderID string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	gen := t.renewLocked()
	t.plan = nil
	t.state = domain.TrackingState{Phase: domain.PhaseLoadingOrder}
	t.broadcastLocked()
	t.mu.Unlock()

	order, err := t.loadOrder(ctx, orderID)
	if err != nil {
		t.fail(gen, orderID, fmt.Errorf("load order: %w", err))
		return err
	}
	origin, _ := order.DeliveryTask.Pickup()
	destination, _ := order.DeliveryTask.Dropoff()

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return ErrSuperseded
	}
	t.state.Order = &order
	t.state.Origin = ptr(origin)
	t.state.Destination = ptr(destination)
	t.state.Phase = domain.PhaseAwaitingRoute
	t.broadcastLocked()
	t.mu.Unlock()

	return t.computeRoute(ctx, origin, destination)
}

// UpdateEndpoints replaces the route endpoints. The running simulation and any
// in-flight route request are cancelled before the new route is requested.
func (t *Tracker) UpdateEndpoints(ctx context.Context, origin, destination domain.LatLng) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.state.Order == nil {
		t.mu.Unlock()
		return errors.New("order not loaded")
	}
	if t.state.Origin != nil && t.state.Destination != nil &&
		*t.state.Origin == origin && *t.state.Destination == destination {
		t.mu.Unlock()
		return nil
	}
	t.state.Origin = ptr(origin)
	t.state.Destination = ptr(destination)
	t.mu.Unlock()
	return t.computeRoute(ctx, origin, destination)
}

func (t *Tracker) loadOrder(ctx context.Context, orderID string) (domain.OrderDetail, error) {
	id := t.ident.CurrentIdentity()
	if id == nil {
		return domain.OrderDetail{}, domain.ErrUnauthenticated
	}
	fetchCtx, cancel := t.fetchContext(ctx, t.life)
	defer cancel()

	order, err := t.orders.GetOrder(fetchCtx, id.Token, orderID)
	if err != nil {
		return domain.OrderDetail{}, err
	}
	if _, ok := order.DeliveryTask.Pickup(); !ok {
		return domain.OrderDetail{}, domain.ErrMissingCoordinates
	}
	if _, ok := order.DeliveryTask.Dropoff(); !ok {
		return domain.OrderDetail{}, domain.ErrMissingCoordinates
	}
	return order, nil
}

func (t *Tracker) computeRoute(ctx context.Context, origin, destination domain.LatLng) error {
	t.mu.Lock()
	gen := t.renewLocked()
	run := t.runContextLocked()
	t.plan = nil
	t.state.Phase = domain.PhaseAwaitingRoute
	t.state.CurrentPosition = nil
	t.state.RemainingDistanceMeters = nil
	t.state.RemainingTimeSeconds = nil
	t.state.Arrived = false
	t.state.CanConfirm = false
	t.state.Error = ""
	orderID := t.state.Order.ID
	t.broadcastLocked()
	t.mu.Unlock()

	fetchCtx, cancel := t.fetchContext(ctx, run)
	plan, err := t.routes.Route(fetchCtx, origin, destination)
	cancel()
	if err == nil && plan.Len() == 0 {
		err = domain.ErrEmptyRoute
	}
	if err != nil {
		if run.Err() != nil {
			return ErrSuperseded
		}
		t.fail(gen, orderID, fmt.Errorf("compute route: %w", err))
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return ErrSuperseded
	}
	t.plan = &plan
	t.state.RemainingDistanceMeters = ptr(plan.TotalDistanceMeters)
	t.state.RemainingTimeSeconds = ptr(plan.TotalTimeSeconds)

	switch t.state.Order.Status {
	case domain.OrderShipping:
		t.state.Phase = domain.PhaseTracking
		t.state.CurrentPosition = ptr(origin)
		t.refreshConfirmLocked()
		ticker := t.opts.NewTicker(t.opts.Tick)
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			simulate(run, ticker, plan, destination, func(s stepSample) bool {
				return t.applyStep(gen, s)
			})
		}()
	case domain.OrderDelivered:
		t.pinArrivedLocked()
	default:
		t.state.Phase = domain.PhaseIdle
	}
	t.logger.Debug("route ready",
		zap.String("order_id", orderID),
		zap.Int("points", plan.Len()),
		zap.Float64("distance_m", plan.TotalDistanceMeters),
		zap.String("phase", string(t.state.Phase)))
	t.broadcastLocked()
	return nil
}

func (t *Tracker) applyStep(gen uint64, s stepSample) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || t.state.Phase != domain.PhaseTracking {
		return false
	}
	if s.arrived {
		t.pinArrivedLocked()
	} else {
		t.state.CurrentPosition = ptr(s.position)
		t.state.RemainingDistanceMeters = ptr(s.remainingDistance)
		t.state.RemainingTimeSeconds = ptr(s.remainingTime)
		t.refreshConfirmLocked()
	}
	t.broadcastLocked()
	return true
}

func (t *Tracker) pinArrivedLocked() {
	t.state.Phase = domain.PhaseArrived
	t.state.CurrentPosition = t.state.Destination
	t.state.RemainingDistanceMeters = ptr(0.0)
	t.state.RemainingTimeSeconds = ptr(0.0)
	t.state.Arrived = true
	t.refreshConfirmLocked()
}

func (t *Tracker) refreshConfirmLocked() {
	t.state.CanConfirm = confirmable(t.state, t.opts.ConfirmProximity)
}

func confirmable(s domain.TrackingState, proximity float64) bool {
	if s.Phase != domain.PhaseTracking && s.Phase != domain.PhaseArrived {
		return false
	}
	if s.Order == nil || s.Order.Status != domain.OrderShipping {
		return false
	}
	return s.RemainingDistanceMeters != nil && *s.RemainingDistanceMeters < proximity
}

// ConfirmReceipt tells the order API the customer has the order. It is only
// accepted once the marker is within the proximity threshold. A failed post keeps
// the current phase so the call can be retried.
func (t *Tracker) ConfirmReceipt(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if !confirmable(t.state, t.opts.ConfirmProximity) {
		t.mu.Unlock()
		return domain.ErrNotConfirmable
	}
	orderID := t.state.Order.ID
	gen := t.gen
	t.mu.Unlock()

	id := t.ident.CurrentIdentity()
	if id == nil {
		return domain.ErrUnauthenticated
	}
	fetchCtx, cancel := t.fetchContext(ctx, t.life)
	defer cancel()
	if err := t.orders.ConfirmReceived(fetchCtx, id.Token, orderID); err != nil {
		t.logger.Warn("confirm receipt failed", zap.String("order_id", orderID), zap.Error(err))
		t.mu.Lock()
		if gen == t.gen {
			t.state.Error = "could not confirm receipt: " + err.Error()
			t.broadcastLocked()
		}
		t.mu.Unlock()
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		t.logger.Info("receipt confirmed after the route changed", zap.String("order_id", orderID))
		return ErrSuperseded
	}
	t.renewLocked()
	t.state.Phase = domain.PhaseConfirmed
	t.state.CanConfirm = false
	t.state.Error = ""
	t.broadcastLocked()
	t.logger.Info("receipt confirmed", zap.String("order_id", orderID))
	return nil
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() domain.TrackingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Subscribe returns a channel that always holds the latest state. Intermediate
// states are dropped for slow readers. The channel is closed by the returned
// cancel func or by Close.
func (t *Tracker) Subscribe() (<-chan domain.TrackingState, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan domain.TrackingState, 1)
	if t.closed {
		close(ch)
		return ch, func() {}
	}
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	ch <- t.state
	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if c, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(c)
		}
	}
}

// Close cancels outstanding work and waits for the simulation to stop.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.renewLocked()
	t.end()
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Tracker) broadcastLocked() {
	for _, ch := range t.subs {
		select {
		case <-ch:
		default:
		}
		ch <- t.state
	}
}

func (t *Tracker) fail(gen uint64, orderID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	t.renewLocked()
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "timed out waiting for the delivery service"
	}
	t.state.Phase = domain.PhaseFailed
	t.state.CanConfirm = false
	t.state.Error = msg
	t.logger.Warn("tracking failed", zap.String("order_id", orderID), zap.Error(err))
	t.broadcastLocked()
}

// renewLocked supersedes the current run. Anything holding the previous
// generation stops updating state.
func (t *Tracker) renewLocked() uint64 {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
	return t.gen
}

func (t *Tracker) runContextLocked() context.Context {
	run, cancel := context.WithCancel(t.life)
	t.cancel = cancel
	return run
}

// fetchContext bounds an upstream call by the fetch timeout, by parent and by the
// caller's ctx.
func (t *Tracker) fetchContext(ctx, parent context.Context) (context.Context, context.CancelFunc) {
	fetchCtx, cancel := context.WithTimeout(parent, t.opts.FetchTimeout)
	stop := context.AfterFunc(ctx, cancel)
	return fetchCtx, func() {
		stop()
		cancel()
	}
}

var (
	ErrClosed = errors.New("tracker closed")
	// ErrSuperseded is returned by a Start or UpdateEndpoints call overtaken by a
	// later one. The tracker state reflects the later call.
	ErrSuperseded = errors.New("superseded by a newer request")
)

func ptr[T any](v T) *T {
	return &v
}

// Route returns the plan being followed, or nil before one has been received.
func (t *Tracker) Route() *domain.RoutePlan {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.plan == nil {
		return nil
	}
	cp := *t.plan
	return &cp
}
