package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"dronefood-storefront/internal/domain"
	"dronefood-storefront/internal/repository/cartstore"
	cartsvc "dronefood-storefront/internal/service/cart"
	"dronefood-storefront/internal/service/identity"
	"dronefood-storefront/internal/tracking"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sessionCookie  = "sid"
	sessionMaxAge  = 30 * 24 * 60 * 60
	sessionIdleTTL = 30 * time.Minute
	sessionCtxKey  = "storefront.session"
)

// browserSession is the server-side state of one browser: who is signed in and
// the cart they see.
type browserSession struct {
	id       string
	identity *identity.Session
	cart     *cartsvc.Manager

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *browserSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *browserSession) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

type sessionRegistry struct {
	store    cartstore.Repository
	debounce time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*browserSession
	trackers map[*tracking.Tracker]struct{}
	closed   bool
}

func newSessionRegistry(store cartstore.Repository, debounce time.Duration, logger *zap.Logger) *sessionRegistry {
	return &sessionRegistry{
		store:    store,
		debounce: debounce,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*browserSession),
		trackers: make(map[*tracking.Tracker]struct{}),
	}
}

// track registers a live tracker so closeAll can stop it. It reports false once
// the registry is shutting down.
func (r *sessionRegistry) track(tr *tracking.Tracker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.trackers[tr] = struct{}{}
	return true
}

func (r *sessionRegistry) untrack(tr *tracking.Tracker) {
	r.mu.Lock()
	delete(r.trackers, tr)
	r.mu.Unlock()
}

func (r *sessionRegistry) get(id string) *browserSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		ident := identity.NewSession()
		s = &browserSession{
			id:       id,
			identity: ident,
			cart:     cartsvc.NewManager(cartstore.NewScoped(r.store, id), ident, r.debounce, r.logger.With(zap.String("session_id", id))),
		}
		r.sessions[id] = s
	}
	s.touch(r.now())
	return s
}

// reap closes sessions idle for longer than ttl. Their carts stay in the store
// and are reloaded when the browser returns.
func (r *sessionRegistry) reap(ctx context.Context, ttl time.Duration) int {
	now := r.now()
	r.mu.Lock()
	var idle []*browserSession
	for id, s := range r.sessions {
		if s.idleSince(now) > ttl {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	for _, s := range idle {
		if err := s.cart.Close(ctx); err != nil {
			r.logger.Warn("flush idle cart failed", zap.String("session_id", s.id), zap.Error(err))
		}
	}
	return len(idle)
}

func (r *sessionRegistry) reapLoop(ctx context.Context, ttl time.Duration) {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.reap(ctx, ttl); n > 0 {
				r.logger.Debug("reaped idle sessions", zap.Int("count", n))
			}
		}
	}
}

// closeAll stops every tracking socket and flushes every cart.
func (r *sessionRegistry) closeAll(ctx context.Context) {
	r.mu.Lock()
	r.closed = true
	all := r.sessions
	r.sessions = make(map[string]*browserSession)
	trackers := r.trackers
	r.trackers = make(map[*tracking.Tracker]struct{})
	r.mu.Unlock()
	for tr := range trackers {
		tr.Close()
	}
	for _, s := range all {
		if err := s.cart.Close(ctx); err != nil {
			r.logger.Warn("flush cart on shutdown failed", zap.String("session_id", s.id), zap.Error(err))
		}
	}
}

// sessionMiddleware attaches the browser session, creating the sid cookie when
// missing, and resolves the bearer token into the session identity. A request
// without a token signs a previously authenticated session out.
func sessionMiddleware(sessions *sessionRegistry, verifier tokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(sessionCookie)
		if err != nil || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, sid, sessionMaxAge, "/", "", false, true)
		}
		sess := sessions.get(sid)
		c.Set(sessionCtxKey, sess)

		token := bearerToken(c)
		if token == "" {
			sess.identity.SetIdentity(nil)
		} else {
			sess.identity.BeginLoading()
			id, err := verifier.Verify(token)
			switch {
			case errors.Is(err, domain.ErrBanned):
				uid := ""
				if id != nil {
					uid = id.UID
				}
				logger.Warn("banned account signed out", zap.String("session_id", sid), zap.String("uid", uid))
				sess.identity.Clear()
				syncCart(c, sess, logger)
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
				return
			case err != nil:
				sess.identity.Clear()
				syncCart(c, sess, logger)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			sess.identity.SetIdentity(id)
		}

		syncCart(c, sess, logger)
		c.Next()
	}
}

func syncCart(c *gin.Context, sess *browserSession, logger *zap.Logger) {
	if err := sess.cart.Sync(c.Request.Context()); err != nil {
		logger.Warn("cart sync failed", zap.String("session_id", sess.id), zap.Error(err))
	}
}

// bearerToken reads the Authorization header, falling back to the access_token
// query parameter for WebSocket upgrades.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		const prefix = "bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
		return ""
	}
	return strings.TrimSpace(c.Query("access_token"))
}

func sessionFrom(c *gin.Context) *browserSession {
	v, ok := c.Get(sessionCtxKey)
	if !ok {
		return nil
	}
	s, _ := v.(*browserSession)
	return s
}

func requireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)
		if sess == nil || sess.identity.CurrentIdentity() == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthenticated.Error()})
			return
		}
		c.Next()
	}
}
