package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"dronefood-storefront/internal/domain"
	"dronefood-storefront/internal/service/identity"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// ErrIdentityLoading is returned when the cart is used before the session's identity
// has resolved for the first time.
var ErrIdentityLoading = errors.New("identity still loading")

// Store is the owner-keyed persistence the manager reads and writes carts through.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// AddResult reports what AddItem did. Conflict means the cart was left untouched
// and the caller must ask the user through ResolveConflict.
type AddResult struct {
	Conflict bool
	Pending  *domain.Product
}

// Manager owns the cart of one browser session.
type Manager struct {
	store    Store
	ident    identity.Provider
	logger   *zap.Logger
	debounce time.Duration

	mu        sync.Mutex
	ownerKey  string
	loaded    bool
	cart      domain.Cart
	pending   *domain.Product
	mergedFor string
	dirty     bool
	timer     *time.Timer
	closed    bool
}

// NewManager returns a manager writing through store. A non-positive debounce
// writes every mutation immediately.
func NewManager(store Store, ident identity.Provider, debounce time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		ident:    ident,
		logger:   logger.Named("cart"),
		debounce: debounce,
		cart:     domain.Cart{},
	}
}

// Sync reconciles the cart with the current identity: it loads the owner's cart on
// first use, merges the guest cart on login and resets on logout. Nothing happens
// while identity is still loading.
func (m *Manager) Sync(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncLocked(ctx)
}

func (m *Manager) syncLocked(ctx context.Context) error {
	if m.closed {
		return errors.New("cart manager closed")
	}
	if m.ident.Loading() {
		if !m.loaded {
			return ErrIdentityLoading
		}
		return nil
	}
	id := m.ident.CurrentIdentity()
	next := OwnerKey(id)
	if m.loaded && next == m.ownerKey {
		return nil
	}

	prev := m.ownerKey
	wasLoaded := m.loaded
	if wasLoaded {
		if err := m.flushLocked(ctx); err != nil {
			m.logger.Warn("flush before owner change failed", zap.String("owner_key", prev), zap.Error(err))
		}
	}
	m.pending = nil
	m.dirty = false

	switch {
	case next == GuestKey && wasLoaded && prev != GuestKey:
		m.logoutLocked(ctx, prev)
	case next != GuestKey && m.mergedFor != next:
		m.loginLocked(ctx, next)
	default:
		m.cart = m.load(ctx, next)
	}
	m.ownerKey = next
	m.loaded = true
	m.logger.Debug("owner changed", zap.String("from", prev), zap.String("owner_key", next), zap.Int("lines", len(m.cart)))
	return nil
}

func (m *Manager) logoutLocked(ctx context.Context, prev string) {
	m.cart = domain.Cart{}
	m.mergedFor = ""
	if err := m.store.Delete(ctx, GuestKey); err != nil {
		m.logger.Warn("clear guest cart failed", zap.String("owner_key", prev), zap.Error(err))
	}
}

func (m *Manager) loginLocked(ctx context.Context, userKey string) {
	user := m.load(ctx, userKey)
	guest := m.load(ctx, GuestKey)
	m.mergedFor = userKey
	if len(guest) == 0 {
		m.cart = user
		return
	}
	if len(user) > 0 && user.RestaurantID() != guest.RestaurantID() {
		m.logger.Warn("guest cart from another restaurant replaced user cart",
			zap.String("owner_key", userKey),
			zap.String("user_restaurant", user.RestaurantID()),
			zap.String("guest_restaurant", guest.RestaurantID()),
			zap.Int("dropped_lines", len(user)))
	}
	m.cart = mergeGuest(user, guest)
	if err := m.write(ctx, userKey, m.cart); err != nil {
		m.logger.Error("persist merged cart failed", zap.String("owner_key", userKey), zap.Error(err))
		m.dirty = true
		return
	}
	if err := m.store.Delete(ctx, GuestKey); err != nil {
		m.logger.Warn("delete guest cart after merge failed", zap.String("owner_key", userKey), zap.Error(err))
	}
	m.logger.Info("guest cart merged", zap.String("owner_key", userKey), zap.Int("guest_lines", len(guest)), zap.Int("lines", len(m.cart)))
}

// load reads key. Missing or malformed entries yield an empty cart.
func (m *Manager) load(ctx context.Context, key string) domain.Cart {
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			m.logger.Warn("load cart failed", zap.String("owner_key", key), zap.Error(err))
		}
		return domain.Cart{}
	}
	var c domain.Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		m.logger.Warn("stored cart malformed", zap.String("owner_key", key), zap.Error(err))
		return domain.Cart{}
	}
	if c == nil {
		c = domain.Cart{}
	}
	return c
}

func (m *Manager) write(ctx context.Context, key string, c domain.Cart) error {
	if c == nil {
		c = domain.Cart{}
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return m.store.Put(ctx, key, string(raw))
}

// AddItem adds one unit of p. A product from another restaurant than the cart's is
// parked as pending and the cart is left as is.
func (m *Manager) AddItem(ctx context.Context, p domain.Product) (AddResult, error) {
	if err := p.Validate(); err != nil {
		return AddResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.syncLocked(ctx); err != nil {
		return AddResult{}, err
	}

	if len(m.cart) > 0 && m.cart.RestaurantID() != p.RestaurantID {
		pending := p
		m.pending = &pending
		cp := pending
		return AddResult{Conflict: true, Pending: &cp}, nil
	}
	if i := m.cart.Index(p.ID); i >= 0 {
		m.cart[i].Quantity++
	} else {
		m.cart = append(m.cart, domain.LineFromProduct(p))
	}
	m.scheduleLocked(ctx)
	return AddResult{}, nil
}

// ResolveConflict settles a pending cross-restaurant add. Confirming replaces the
// cart with the pending product and persists right away. Without a pending product
// it does nothing.
func (m *Manager) ResolveConflict(ctx context.Context, confirm bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.syncLocked(ctx); err != nil {
		return err
	}
	if m.pending == nil {
		return nil
	}
	p := *m.pending
	m.pending = nil
	if !confirm {
		return nil
	}
	m.cart = domain.Cart{domain.LineFromProduct(p)}
	m.dirty = true
	return m.flushLocked(ctx)
}

// SetQuantity replaces the quantity of itemID. Quantities below one are ignored;
// removal goes through RemoveItem.
func (m *Manager) SetQuantity(ctx context.Context, itemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.syncLocked(ctx); err != nil {
		return err
	}
	if quantity <= 0 {
		return nil
	}
	i := m.cart.Index(itemID)
	if i < 0 {
		return domain.ErrNotFound
	}
	if m.cart[i].Quantity == quantity {
		return nil
	}
	m.cart[i].Quantity = quantity
	m.scheduleLocked(ctx)
	return nil
}

func (m *Manager) RemoveItem(ctx context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.syncLocked(ctx); err != nil {
		return err
	}
	i := m.cart.Index(itemID)
	if i < 0 {
		return nil
	}
	m.cart = append(m.cart[:i:i], m.cart[i+1:]...)
	m.scheduleLocked(ctx)
	return nil
}

// Clear empties the cart, typically after checkout created the order.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.syncLocked(ctx); err != nil {
		return err
	}
	m.cart = domain.Cart{}
	m.pending = nil
	m.scheduleLocked(ctx)
	return nil
}

func (m *Manager) Items() domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Clone()
}

func (m *Manager) Total() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Total()
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Count()
}

func (m *Manager) RestaurantID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.RestaurantID()
}

// Pending returns the product awaiting a conflict decision, if any.
func (m *Manager) Pending() *domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil
	}
	cp := *m.pending
	return &cp
}

// OwnerKey reports the key the visible cart is stored under.
func (m *Manager) OwnerKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownerKey
}

// Flush writes an unsaved cart now.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked(ctx)
}

// Close flushes and stops the manager. Later calls to mutating methods fail.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	err := m.flushLocked(ctx)
	m.closed = true
	return err
}

func (m *Manager) scheduleLocked(ctx context.Context) {
	m.dirty = true
	if m.debounce <= 0 {
		if err := m.flushLocked(ctx); err != nil {
			m.logger.Warn("save cart failed", zap.String("owner_key", m.ownerKey), zap.Error(err))
		}
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, m.flushFromTimer)
}

func (m *Manager) flushFromTimer() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if err := m.flushLocked(ctx); err != nil {
		m.logger.Warn("save cart failed", zap.String("owner_key", m.ownerKey), zap.Error(err))
	}
}

func (m *Manager) flushLocked(ctx context.Context) error {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if !m.dirty || !m.loaded {
		return nil
	}
	if err := m.write(ctx, m.ownerKey, m.cart); err != nil {
		return fmt.Errorf("save cart %s: %w", m.ownerKey, err)
	}
	m.dirty = false
	return nil
}
