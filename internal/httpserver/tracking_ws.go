package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"dronefood-storefront/internal/domain"
	"dronefood-storefront/internal/tracking"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingInterval   = (wsPongWait * 9) / 10
	wsMaxMessageSize = 4096
)

type wsInbound struct {
	Type string `json:"type"`
}

type wsOutbound struct {
	Type    string             `json:"type"`
	State   *trackingStateView `json:"state,omitempty"`
	Route   *domain.RoutePlan  `json:"route,omitempty"`
	Message string             `json:"message,omitempty"`
}

// trackingStateView adds the display strings the map overlay shows.
type trackingStateView struct {
	domain.TrackingState
	RemainingTimeText     string `json:"remainingTimeText"`
	RemainingDistanceText string `json:"remainingDistanceText"`
}

func viewOf(s domain.TrackingState) *trackingStateView {
	v := &trackingStateView{TrackingState: s}
	if s.RemainingTimeSeconds != nil {
		v.RemainingTimeText = tracking.FormatRemainingTime(*s.RemainingTimeSeconds)
	}
	if s.RemainingDistanceMeters != nil {
		v.RemainingDistanceText = tracking.FormatRemainingDistance(*s.RemainingDistanceMeters)
	}
	return v
}

func newUpgrader(origins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// trackingSocketHandler streams the tracking state of :id. Each connection owns
// its tracker, which is closed when the socket goes away.
func trackingSocketHandler(deps Deps, sessions *sessionRegistry, logger *zap.Logger) gin.HandlerFunc {
	upgrader := newUpgrader(deps.CORSOrigins)
	return func(c *gin.Context) {
		orderID := c.Param("id")
		sess := sessionFrom(c)
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.String("order_id", orderID), zap.Error(err))
			return
		}
		log := logger.With(zap.String("order_id", orderID), zap.String("session_id", sess.id))
		tr := tracking.New(deps.Orders, deps.Routes, sess.identity, deps.Tracking, log)
		if !sessions.track(tr) {
			tr.Close()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(wsWriteWait))
			_ = conn.Close()
			return
		}
		defer sessions.untrack(tr)
		serveTracking(conn, tr, orderID, log)
	}
}

func serveTracking(conn *websocket.Conn, tr *tracking.Tracker, orderID string, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer tr.Close()

	replies := make(chan wsOutbound, 4)
	states, unsubscribe := tr.Subscribe()
	defer unsubscribe()

	go func() {
		if err := tr.Start(ctx, orderID); err != nil && !errors.Is(err, tracking.ErrSuperseded) && !errors.Is(err, tracking.ErrClosed) {
			log.Info("tracking did not start", zap.Error(err))
			return
		}
		if plan := tr.Route(); plan != nil {
			select {
			case replies <- wsOutbound{Type: "route", Route: plan}:
			case <-ctx.Done():
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		readTrackingCommands(ctx, conn, tr, replies, log)
	}()

	writeTracking(conn, states, replies, done, log)
	cancel()
	_ = conn.Close()
	<-done
}

func readTrackingCommands(ctx context.Context, conn *websocket.Conn, tr *tracking.Tracker, replies chan<- wsOutbound, log *zap.Logger) {
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		var msg wsInbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			send(ctx, replies, wsOutbound{Type: "error", Message: "invalid message"})
			continue
		}
		switch msg.Type {
		case "confirm_receipt":
			if err := tr.ConfirmReceipt(ctx); err != nil {
				send(ctx, replies, wsOutbound{Type: "error", Message: err.Error()})
				continue
			}
			send(ctx, replies, wsOutbound{Type: "confirmed"})
		default:
			send(ctx, replies, wsOutbound{Type: "error", Message: "unknown message type " + msg.Type})
		}
	}
}

func send(ctx context.Context, replies chan<- wsOutbound, msg wsOutbound) {
	select {
	case replies <- msg:
	case <-ctx.Done():
	}
}

// writeTracking is the only goroutine writing to conn.
func writeTracking(conn *websocket.Conn, states <-chan domain.TrackingState, replies <-chan wsOutbound, done <-chan struct{}, log *zap.Logger) {
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		var out wsOutbound
		select {
		case <-done:
			return
		case st, ok := <-states:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
				return
			}
			out = wsOutbound{Type: "tracking", State: viewOf(st)}
		case out = <-replies:
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(out); err != nil {
			log.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}
