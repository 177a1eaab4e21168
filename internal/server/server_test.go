package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/worachat-d/go-sos-center/internal/stats"
	"github.com/worachat-d/go-sos-center/internal/testutil"
)

// newTestNotificationServer creates a NotificationServer for testing purposes
func newTestNotificationServer(t *testing.T, su *stats.MockStatsUpdater) *NotificationServer {
	su.On("RegisterMetric", mock.Anything).Times(3)

	logger := testutil.TestLogger(t)
	ns, err := NewNotificationServer(logger, su)
	if err != nil {
		t.Fatalf("failed to create test NotificationServer: %v", err)
	}
	return ns
}

func newTestClient(ns *NotificationServer) *Client {
	return &Client{
		ns:     ns,
		log:    ns.log,
		connId: "test-conn",
		send:   make(chan *ServerMessage, 4),
		stop:   make(chan struct{}),
	}
}

func TestNewNotificationServer(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Times(3)

	logger := testutil.TestLogger(t)
	ns, err := NewNotificationServer(logger, su)
	assert.NoError(t, err, "expected no error creating NotificationServer")
	assert.NotNil(t, ns, "expected NotificationServer to be non-nil")
	assert.Equal(t, logger, ns.log, "expected logger to be set")
	assert.NotNil(t, ns.clients, "expected clients map to be initialized")
	assert.NotNil(t, ns.admins, "expected admins map to be initialized")
	assert.NotNil(t, ns.eventSubs, "expected eventSubs map to be initialized")
	assert.NotNil(t, ns.joinChan, "expected joinChan to be initialized")
	assert.NotNil(t, ns.leaveChan, "expected leaveChan to be initialized")
	assert.NotNil(t, ns.publishChan, "expected publishChan to be initialized")
	assert.NotNil(t, ns.stop, "expected stop channel to be initialized")
}

func TestNotificationServerShutdown(t *testing.T) {
	t.Run("successful shutdown", func(t *testing.T) {
		ns := newTestNotificationServer(t, &stats.MockStatsUpdater{})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		go func() {
			select {
			case req := <-ns.stop:
				assert.NotNil(t, req.done, "expected done channel in stop request")
				close(req.done)
			case <-time.After(100 * time.Millisecond):
				t.Error("expected signal on stop chan")
			}
		}()

		err := ns.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		ns := newTestNotificationServer(t, &stats.MockStatsUpdater{})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		go func() {
			select {
			case <-ns.stop:
				// do not close req.done to simulate a hang
			case <-time.After(100 * time.Millisecond):
				t.Error("expected signal on stop chan")
			}
		}()

		err := ns.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded, "expected context deadline exceeded error, got %v", err)
	})
}

func TestNotificationServerShutdown_Integration(t *testing.T) {
	ns := newTestNotificationServer(t, &stats.MockStatsUpdater{})
	go ns.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := ns.Shutdown(ctx)
	assert.NoError(t, err, "expected successful shutdown without error")
}

func TestNotificationServer_handleJoin(t *testing.T) {
	t.Run("join admin scope", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.NumAdminSubscribers).Once()
		defer su.AssertExpectations(t)

		ns := newTestNotificationServer(t, su)
		client := newTestClient(ns)

		ns.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			JoinAdmins:  &JoinAdmins{},
			client:      client,
		})

		assert.Contains(t, ns.admins, client, "expected client in admin scope")

		select {
		case msg := <-client.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 1, msg.Id, "expected response ID to match join message ID")
			assert.Equal(t, 200, msg.Response.ResponseCode, "expected response code to be 200")
		default:
			t.Error("expected acknowledgement to be queued to client")
		}
	})

	t.Run("duplicate admin join counted once", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.NumAdminSubscribers).Once()
		defer su.AssertExpectations(t)

		ns := newTestNotificationServer(t, su)
		client := newTestClient(ns)

		for i := 1; i <= 2; i++ {
			ns.handleJoin(&ClientMessage{
				BaseMessage: BaseMessage{Id: i, Timestamp: Now()},
				JoinAdmins:  &JoinAdmins{},
				client:      client,
			})
		}

		assert.Len(t, ns.admins, 1, "expected a single admin scope entry")
		assert.Len(t, client.send, 2, "expected both joins to be acknowledged")
	})

	t.Run("join event scope", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.NumEventSubscriptions).Once()
		defer su.AssertExpectations(t)

		ns := newTestNotificationServer(t, su)
		client := newTestClient(ns)

		ns.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			JoinEvent:   &JoinEvent{SosId: "testsos01"},
			client:      client,
		})

		assert.Contains(t, ns.eventSubs["testsos01"], client, "expected client subscribed to event scope")
		assert.NotContains(t, ns.admins, client, "expected client not in admin scope")

		select {
		case msg := <-client.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 200, msg.Response.ResponseCode, "expected response code to be 200")
		default:
			t.Error("expected acknowledgement to be queued to client")
		}
	})

	t.Run("join event scope without id rejected", func(t *testing.T) {
		ns := newTestNotificationServer(t, &stats.MockStatsUpdater{})
		client := newTestClient(ns)

		ns.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			JoinEvent:   &JoinEvent{},
			client:      client,
		})

		assert.Empty(t, ns.eventSubs, "expected no event subscriptions")

		select {
		case msg := <-client.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 400, msg.Response.ResponseCode, "expected response code to be 400")
		default:
			t.Error("expected error message to be queued")
		}
	})

	t.Run("join without payload rejected", func(t *testing.T) {
		ns := newTestNotificationServer(t, &stats.MockStatsUpdater{})
		client := newTestClient(ns)

		ns.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			client:      client,
		})

		select {
		case msg := <-client.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 400, msg.Response.ResponseCode, "expected response code to be 400")
		default:
			t.Error("expected error message to be queued")
		}
	})
}

func TestNotificationServer_handleLeave(t *testing.T) {
	t.Run("leave admin scope", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.NumAdminSubscribers).Once()
		su.On("Decr", stats.NumAdminSubscribers).Once()
		defer su.AssertExpectations(t)

		ns := newTestNotificationServer(t, su)
		client := newTestClient(ns)

		ns.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			JoinAdmins:  &JoinAdmins{},
			client:      client,
		})
		ns.handleLeave(&ClientMessage{
			BaseMessage: BaseMessage{Id: 2, Timestamp: Now()},
			Leave:       &Leave{},
			client:      client,
		})

		assert.NotContains(t, ns.admins, client, "expected client removed from admin scope")
		assert.Len(t, client.send, 2, "expected join and leave to be acknowledged")
	})

	t.Run("leave event scope drops empty scope", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.NumEventSubscriptions).Once()
		su.On("Decr", stats.NumEventSubscriptions).Once()
		defer su.AssertExpectations(t)

		ns := newTestNotificationServer(t, su)
		client := newTestClient(ns)

		ns.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			JoinEvent:   &JoinEvent{SosId: "testsos01"},
			client:      client,
		})
		ns.handleLeave(&ClientMessage{
			BaseMessage: BaseMessage{Id: 2, Timestamp: Now()},
			Leave:       &Leave{SosId: "testsos01"},
			client:      client,
		})

		assert.NotContains(t, ns.eventSubs, "testsos01", "expected empty event scope to be dropped")
	})

	t.Run("leave without subscription still acknowledged", func(t *testing.T) {
		ns := newTestNotificationServer(t, &stats.MockStatsUpdater{})
		client := newTestClient(ns)

		ns.handleLeave(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Leave:       &Leave{SosId: "unknown"},
			client:      client,
		})

		select {
		case msg := <-client.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 200, msg.Response.ResponseCode, "expected response code to be 200")
		default:
			t.Error("expected acknowledgement to be queued to client")
		}
	})
}

func TestNotificationServer_fanout(t *testing.T) {
	t.Run("admin scope reaches only admins", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.NumAdminSubscribers).Once()
		su.On("Incr", stats.NumEventSubscriptions).Once()
		defer su.AssertExpectations(t)

		ns := newTestNotificationServer(t, su)
		admin := newTestClient(ns)
		station := newTestClient(ns)

		ns.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			JoinAdmins:  &JoinAdmins{},
			client:      admin,
		})
		ns.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			JoinEvent:   &JoinEvent{SosId: "testsos01"},
			client:      station,
		})
		// drain the join acknowledgements
		<-admin.send
		<-station.send

		msg := &ServerMessage{
			BaseMessage:  BaseMessage{Timestamp: Now()},
			Notification: &Notification{New: &NewEvent{SosId: "testsos01"}},
		}
		ns.fanout(&publishReq{msg: msg})

		select {
		case got := <-admin.send:
			assert.Equal(t, msg, got, "expected notification to reach admin")
		default:
			t.Error("expected notification to be queued to admin")
		}

		select {
		case <-station.send:
			t.Error("expected admin broadcast to skip event subscribers")
		default:
		}
	})

	t.Run("event scope reaches only its subscribers", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.NumAdminSubscribers).Once()
		su.On("Incr", stats.NumEventSubscriptions).Twice()
		defer su.AssertExpectations(t)

		ns := newTestNotificationServer(t, su)
		admin := newTestClient(ns)
		station := newTestClient(ns)
		otherStation := newTestClient(ns)

		ns.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			JoinAdmins:  &JoinAdmins{},
			client:      admin,
		})
		ns.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			JoinEvent:   &JoinEvent{SosId: "testsos01"},
			client:      station,
		})
		ns.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			JoinEvent:   &JoinEvent{SosId: "othersos"},
			client:      otherStation,
		})
		<-admin.send
		<-station.send
		<-otherStation.send

		msg := &ServerMessage{
			BaseMessage:  BaseMessage{Timestamp: Now()},
			Notification: &Notification{Ended: &EndedEvent{SosId: "testsos01"}},
		}
		ns.fanout(&publishReq{sosId: "testsos01", msg: msg})

		select {
		case got := <-station.send:
			assert.Equal(t, msg, got, "expected notification to reach event subscriber")
		default:
			t.Error("expected notification to be queued to event subscriber")
		}

		assert.Len(t, admin.send, 0, "expected event notification to skip admins")
		assert.Len(t, otherStation.send, 0, "expected event notification to skip other scopes")
	})
}

func TestNotificationServer_publish(t *testing.T) {
	t.Run("queues admin broadcast", func(t *testing.T) {
		ns := newTestNotificationServer(t, &stats.MockStatsUpdater{})

		ns.PublishToAdmins(&Notification{New: &NewEvent{SosId: "testsos01"}})

		select {
		case req := <-ns.publishChan:
			assert.Empty(t, req.sosId, "expected admin scope publish")
			assert.NotNil(t, req.msg.Notification.New, "expected new notification")
		default:
			t.Error("expected publish request to be queued")
		}
	})

	t.Run("queues event scope publish", func(t *testing.T) {
		ns := newTestNotificationServer(t, &stats.MockStatsUpdater{})

		ns.PublishToEventSubscribers("testsos01", &Notification{Ended: &EndedEvent{SosId: "testsos01"}})

		select {
		case req := <-ns.publishChan:
			assert.Equal(t, "testsos01", req.sosId, "expected event scope publish")
			assert.NotNil(t, req.msg.Notification.Ended, "expected ended notification")
		default:
			t.Error("expected publish request to be queued")
		}
	})

	t.Run("drops when publish channel is full", func(t *testing.T) {
		ns := newTestNotificationServer(t, &stats.MockStatsUpdater{})
		ns.publishChan = make(chan *publishReq) // unbuffered to simulate a full channel

		// must not block
		ns.PublishToAdmins(&Notification{New: &NewEvent{SosId: "testsos01"}})
	})
}

func TestNotificationServer_dropSubscriptions(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", stats.NumAdminSubscribers).Once()
	su.On("Incr", stats.NumEventSubscriptions).Once()
	su.On("Decr", stats.NumAdminSubscribers).Once()
	su.On("Decr", stats.NumEventSubscriptions).Once()
	defer su.AssertExpectations(t)

	ns := newTestNotificationServer(t, su)
	client := newTestClient(ns)

	ns.handleJoin(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
		JoinAdmins:  &JoinAdmins{},
		client:      client,
	})
	ns.handleJoin(&ClientMessage{
		BaseMessage: BaseMessage{Id: 2, Timestamp: Now()},
		JoinEvent:   &JoinEvent{SosId: "testsos01"},
		client:      client,
	})

	ns.dropSubscriptions(client)

	assert.NotContains(t, ns.admins, client, "expected client removed from admin scope")
	assert.Empty(t, ns.eventSubs, "expected all event subscriptions to be dropped")
}

func TestNotificationServer_addClient_removeClient(t *testing.T) {
	ns := newTestNotificationServer(t, &stats.MockStatsUpdater{})
	client := newTestClient(ns)

	ns.addClient(client)
	assert.Len(t, ns.clients, 1, "expected 1 client after adding")
	assert.Contains(t, ns.clients, client, "expected client to be added to clients map")

	ns.removeClient(client)
	assert.Len(t, ns.clients, 0, "expected 0 clients after removing")
}

func TestNotificationServer_Integration(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	ns := newTestNotificationServer(t, su)
	go ns.Run()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, ns.Shutdown(ctx), "expected clean shutdown")
	}()

	admin := newTestClient(ns)
	ns.joinChan <- &ClientMessage{
		BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
		JoinAdmins:  &JoinAdmins{},
		client:      admin,
	}

	select {
	case msg := <-admin.send:
		assert.Equal(t, 200, msg.Response.ResponseCode, "expected join acknowledgement")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for join acknowledgement")
	}

	ns.PublishToAdmins(&Notification{New: &NewEvent{SosId: "testsos01"}})

	select {
	case msg := <-admin.send:
		assert.NotNil(t, msg.Notification, "expected notification message")
		assert.NotNil(t, msg.Notification.New, "expected new notification")
		assert.Equal(t, "testsos01", msg.Notification.New.SosId, "expected matching sos id")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notification")
	}
}
