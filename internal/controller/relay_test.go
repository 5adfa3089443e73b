package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"collectivewatch/internal/controller/informer"
	"collectivewatch/internal/model"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionTopics(t *testing.T) {
	topics := CollectionTopics()
	assert.Len(t, topics, len(model.ResourceTypes)+len(model.DigestTypes))
	assert.Equal(t, model.Topic("host"), topics[0])
	assert.Equal(t, model.Topic("alerts"), topics[len(topics)-1])
}

func TestRelay_OfferDropsWhenFull(t *testing.T) {
	r := newRelay("test", 1, testLogger(t))
	assert.True(t, r.offer(RelayMessage{Topic: "server"}))
	assert.False(t, r.offer(RelayMessage{Topic: "server"}))
}

func TestRelay_AttachDetach(t *testing.T) {
	bus := informer.NewBus(testLogger(t))
	r := newRelay("test", 8, testLogger(t))
	require.NoError(t, r.attach(bus, []model.Topic{"server", "cluster/C1"}))
	assert.Equal(t, 1, bus.SubscriberCount("server"))

	bus.Publish(model.ChangeEvent{Type: model.TypeCluster, ID: "C1", Removed: []string{"S1"}}, "cluster/C1")
	msg := <-r.queue
	assert.Equal(t, model.Topic("cluster/C1"), msg.Topic)
	assert.Equal(t, []string{"S1"}, msg.Event.Removed)

	r.detach()
	assert.Equal(t, 0, bus.SubscriberCount("server"))
	assert.Equal(t, 0, bus.SubscriberCount("cluster/C1"))
}

func TestWebsocketRelay_Serve(t *testing.T) {
	bus := informer.NewBus(testLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			served <- err
			return
		}
		defer conn.Close()
		served <- NewWebsocketRelay(conn, 8, nopLogger()).Serve(ctx, bus, []model.Topic{"server"})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return bus.SubscriberCount("server") == 1 }, time.Second, 5*time.Millisecond)
	bus.Publish(model.ChangeEvent{Type: model.TypeServer, Cycle: 4, Added: []string{"S9"}}, "server")

	var msg RelayMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, model.Topic("server"), msg.Topic)
	assert.Equal(t, uint64(4), msg.Event.Cycle)
	assert.Equal(t, []string{"S9"}, msg.Event.Added)

	// 服务端关闭时发送 close 帧并退订
	cancel()
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
	assert.NoError(t, <-served)
	assert.Equal(t, 0, bus.SubscriberCount("server"))
}

func TestWebsocketRelay_ClientClose(t *testing.T) {
	bus := informer.NewBus(testLogger(t))
	served := make(chan error, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			served <- err
			return
		}
		defer conn.Close()
		served <- NewWebsocketRelay(conn, 8, nopLogger()).Serve(context.Background(), bus, nil)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return bus.SubscriberCount("alerts") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not notice client close")
	}
	assert.Equal(t, 0, bus.SubscriberCount("alerts"))
}
