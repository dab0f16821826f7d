package httpserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dronefood-storefront/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func dialTracking(t *testing.T, env *testEnv, token string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/orders/o-1/tracking/ws?access_token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(wsOutbound) bool) wsOutbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var out wsOutbound
		require.NoError(t, conn.ReadJSON(&out))
		if match(out) {
			return out
		}
	}
}

func TestTrackingSocketStreamsAndConfirms(t *testing.T) {
	env := newTestEnv(t)
	env.orders.order = domain.OrderDetail{
		ID:     "o-1",
		Status: domain.OrderShipping,
		DeliveryTask: domain.DeliveryTask{
			PickupLat: f64(10), PickupLng: f64(106),
			DropoffLat: f64(10.01), DropoffLng: f64(106.01),
		},
	}
	env.routes.plan = domain.RoutePlan{
		Coordinates:         []domain.LatLng{{Lat: 10, Lng: 106}, {Lat: 10.005, Lng: 106.005}, {Lat: 10.01, Lng: 106.01}},
		TotalDistanceMeters: 1500,
		TotalTimeSeconds:    125,
	}
	conn := dialTracking(t, env, "tok-u1")

	arrived := readUntil(t, conn, func(m wsOutbound) bool {
		return m.Type == "tracking" && m.State.Phase == domain.PhaseArrived
	})
	assert.Equal(t, "0 km", arrived.State.RemainingDistanceText)
	assert.Equal(t, "arrived", arrived.State.RemainingTimeText)
	assert.True(t, arrived.State.CanConfirm)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "confirm_receipt"}))
	var gotReply, gotState bool
	readUntil(t, conn, func(m wsOutbound) bool {
		switch {
		case m.Type == "confirmed":
			gotReply = true
		case m.Type == "tracking" && m.State.Phase == domain.PhaseConfirmed:
			gotState = true
		}
		return gotReply && gotState
	})
	assert.Equal(t, 1, env.orders.confirmCount())
}

func TestTrackingSocketReportsFailure(t *testing.T) {
	env := newTestEnv(t)
	env.orders.order = domain.OrderDetail{ID: "o-1", Status: domain.OrderShipping}
	conn := dialTracking(t, env, "tok-u1")

	readUntil(t, conn, func(m wsOutbound) bool {
		return m.Type == "tracking" && m.State.Phase == domain.PhaseFailed
	})

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "confirm_receipt"}))
	msg := readUntil(t, conn, func(m wsOutbound) bool { return m.Type == "error" })
	assert.Contains(t, msg.Message, "cannot be confirmed")
}

func TestShutdownClosesTrackingSockets(t *testing.T) {
	env := newTestEnv(t)
	env.orders.order = domain.OrderDetail{
		ID:     "o-1",
		Status: domain.OrderDelivered,
		DeliveryTask: domain.DeliveryTask{
			PickupLat: f64(10), PickupLng: f64(106),
			DropoffLat: f64(10.01), DropoffLng: f64(106.01),
		},
	}
	env.routes.plan = domain.RoutePlan{
		Coordinates:         []domain.LatLng{{Lat: 10, Lng: 106}, {Lat: 10.01, Lng: 106.01}},
		TotalDistanceMeters: 1500,
		TotalTimeSeconds:    125,
	}
	conn := dialTracking(t, env, "tok-u1")
	readUntil(t, conn, func(m wsOutbound) bool {
		return m.Type == "tracking" && m.State.Phase == domain.PhaseArrived
	})
	require.Eventually(t, func() bool {
		env.sessions.mu.Lock()
		defer env.sessions.mu.Unlock()
		return len(env.sessions.trackers) == 1
	}, time.Second, time.Millisecond)

	env.sessions.closeAll(context.Background())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var err error
	for err == nil {
		var out wsOutbound
		err = conn.ReadJSON(&out)
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)

	late := dialTracking(t, env, "tok-u1")
	require.NoError(t, late.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected read error: %v", err)
}
