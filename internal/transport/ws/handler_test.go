package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordertrack/ordertrack/internal/broadcast"
	"github.com/ordertrack/ordertrack/internal/order"
	"github.com/ordertrack/ordertrack/internal/service"
	"github.com/ordertrack/ordertrack/internal/status"
	"github.com/ordertrack/ordertrack/internal/store"
)

type wsFixture struct {
	svc      service.OrderService
	registry *broadcast.Registry
	server   *httptest.Server
}

func newWsFixture(t *testing.T) *wsFixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	registry := broadcast.NewRegistry()
	dispatcher := broadcast.NewDispatcher(registry, logger)
	svc := service.NewService(
		store.NewMemStore(status.NewEngine(false), false),
		dispatcher,
		nil,
		logger,
	)

	router := chi.NewRouter()
	NewHandler(svc, registry, dispatcher, 32, time.Second, logger).RegisterRoutes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &wsFixture{svc: svc, registry: registry, server: server}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) broadcast.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var env broadcast.Envelope
	require.NoError(t, json.Unmarshal(payload, &env))
	return env
}

func waitForSubscribers(t *testing.T, registry *broadcast.Registry, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return registry.Len() == want
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_Subscribe_SeedsEmptySnapshot(t *testing.T) {
	// given
	f := newWsFixture(t)

	// when
	conn := f.dial(t)
	env := readEnvelope(t, conn)

	// then: the first frame is always the initial-orders seed
	assert.Equal(t, broadcast.EventInitialOrders, env.Type)
	require.NotNil(t, env.Orders)
	assert.Empty(t, *env.Orders)
}

func Test_Subscribe_SeedsExistingOrders(t *testing.T) {
	// given
	f := newWsFixture(t)
	created, err := f.svc.Create(context.Background(), service.OrderCreateDto{
		Owner: "u1",
		Items: []service.ItemCreateDto{{ProductRef: "p1", Name: "Coffee", Quantity: 2, UnitPrice: 1000}},
	})
	require.NoError(t, err)

	// when: a late subscriber connects
	conn := f.dial(t)
	env := readEnvelope(t, conn)

	// then: it sees current state, not a replay of past events
	assert.Equal(t, broadcast.EventInitialOrders, env.Type)
	require.NotNil(t, env.Orders)
	require.Len(t, *env.Orders, 1)
	assert.Equal(t, created.ID, (*env.Orders)[0].ID)
	assert.Equal(t, int64(2000), (*env.Orders)[0].Total)
}

func Test_Subscribe_ReceivesEvents(t *testing.T) {
	// given
	f := newWsFixture(t)
	conn := f.dial(t)
	seed := readEnvelope(t, conn)
	require.Equal(t, broadcast.EventInitialOrders, seed.Type)
	waitForSubscribers(t, f.registry, 1)

	// when: the order lifecycle runs
	created, err := f.svc.Create(context.Background(), service.OrderCreateDto{Owner: "u1"})
	require.NoError(t, err)
	_, err = f.svc.AddItem(context.Background(), created.ID, service.ItemCreateDto{ProductRef: "p1", Name: "Coffee", Quantity: 1, UnitPrice: 500})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(context.Background(), created.ID, "shipped")
	require.NoError(t, err)

	// then: events arrive in commit order
	env := readEnvelope(t, conn)
	assert.Equal(t, broadcast.EventOrderCreated, env.Type)
	require.NotNil(t, env.Order)
	assert.Equal(t, created.ID, env.Order.ID)

	env = readEnvelope(t, conn)
	assert.Equal(t, broadcast.EventOrderUpdated, env.Type)
	assert.Equal(t, int64(500), env.Order.Total)

	env = readEnvelope(t, conn)
	assert.Equal(t, broadcast.EventStatusUpdated, env.Type)
	assert.Equal(t, order.StatusShipped, env.Order.Status)
}

func Test_Subscribe_MultipleSubscribers(t *testing.T) {
	// given
	f := newWsFixture(t)
	first := f.dial(t)
	second := f.dial(t)
	readEnvelope(t, first)
	readEnvelope(t, second)
	waitForSubscribers(t, f.registry, 2)

	// when
	created, err := f.svc.Create(context.Background(), service.OrderCreateDto{Owner: "u1"})
	require.NoError(t, err)

	// then: both connections receive the event
	for _, conn := range []*websocket.Conn{first, second} {
		env := readEnvelope(t, conn)
		assert.Equal(t, broadcast.EventOrderCreated, env.Type)
		assert.Equal(t, created.ID, env.Order.ID)
	}
}

func Test_Subscribe_DisconnectPrunesRegistry(t *testing.T) {
	// given
	f := newWsFixture(t)
	conn := f.dial(t)
	readEnvelope(t, conn)
	waitForSubscribers(t, f.registry, 1)

	// when
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	// then: the handle is unregistered once the transport signals closure
	waitForSubscribers(t, f.registry, 0)

	// subsequent mutations still succeed with no subscribers left
	_, err := f.svc.Create(context.Background(), service.OrderCreateDto{Owner: "u1"})
	assert.NoError(t, err)
}

func Test_Subscriber_SendAfterClose(t *testing.T) {
	// given: a subscriber handle detached from any real connection
	sub := newSubscriber("s1", nil, 1, time.Second, slog.New(slog.DiscardHandler))

	// when
	sub.Close()
	sub.Close()

	// then
	assert.ErrorIs(t, sub.Send([]byte("{}")), errSubscriberClosed)
}

func Test_Subscriber_SendBufferFull(t *testing.T) {
	// given: a buffer of one with no writer draining it
	sub := newSubscriber("s1", nil, 1, time.Second, slog.New(slog.DiscardHandler))

	// when / then
	require.NoError(t, sub.Send([]byte("{}")))
	assert.ErrorIs(t, sub.Send([]byte("{}")), errSendBufferFull)
}
