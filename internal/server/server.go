package server

import (
	"context"
	"log"
	"sync"

	"github.com/worachat-d/go-sos-center/internal/stats"
)

// Notifier is the fanout contract the coordinator publishes through.
// Publishes are fire-and-forget: a slow or missing subscriber never
// blocks or fails the transition that produced the notification.
type Notifier interface {
	PublishToAdmins(n *Notification)
	PublishToEventSubscribers(sosId string, n *Notification)
}

type publishReq struct {
	// sosId selects the event scope; empty means the admin broadcast scope.
	sosId string
	msg   *ServerMessage
}

type stopReq struct {
	done chan struct{}
}

// NotificationServer is the realtime hub. A single Run goroutine owns the
// subscriber maps, so scope membership never needs locking.
type NotificationServer struct {
	log            *log.Logger
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	admins         map[*Client]struct{}
	eventSubs      map[string]map[*Client]struct{}
	joinChan       chan *ClientMessage
	leaveChan      chan *ClientMessage
	publishChan    chan *publishReq
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	stop           chan stopReq
}

func NewNotificationServer(logger *log.Logger, st stats.StatsProvider) (*NotificationServer, error) {
	ns := &NotificationServer{
		log:            logger,
		stats:          st,
		clients:        make(map[*Client]struct{}),
		admins:         make(map[*Client]struct{}),
		eventSubs:      make(map[string]map[*Client]struct{}),
		joinChan:       make(chan *ClientMessage, 256),
		leaveChan:      make(chan *ClientMessage, 256),
		publishChan:    make(chan *publishReq, 256),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		stop:           make(chan stopReq),
	}

	st.RegisterMetric(stats.NumConnections)
	st.RegisterMetric(stats.NumAdminSubscribers)
	st.RegisterMetric(stats.NumEventSubscriptions)

	return ns, nil
}

func (ns *NotificationServer) Run() {
	for {
		select {
		case joinMsg := <-ns.joinChan:
			ns.handleJoin(joinMsg)
		case leaveMsg := <-ns.leaveChan:
			ns.handleLeave(leaveMsg)
		case req := <-ns.publishChan:
			ns.fanout(req)
		case client := <-ns.RegisterChan:
			ns.log.Printf("adding connection %q", client.connId)
			ns.addClient(client)
			ns.stats.Incr(stats.NumConnections)
		case client := <-ns.deRegisterChan:
			ns.log.Printf("removing connection %q", client.connId)
			ns.dropSubscriptions(client)
			ns.removeClient(client)
			ns.stats.Decr(stats.NumConnections)
		case req := <-ns.stop:
			ns.log.Println("shutting down notification server")
			ns.clientsLock.Lock()
			for c := range ns.clients {
				c.stopClient()
			}
			ns.clientsLock.Unlock()

			close(req.done)
			return
		}
	}
}

// PublishToAdmins queues a notification for every connected admin console.
func (ns *NotificationServer) PublishToAdmins(n *Notification) {
	ns.publish(&publishReq{
		msg: &ServerMessage{
			BaseMessage:  BaseMessage{Timestamp: Now()},
			Notification: n,
		},
	})
}

// PublishToEventSubscribers queues a notification for subscribers of one
// SOS event, typically the originating station's session.
func (ns *NotificationServer) PublishToEventSubscribers(sosId string, n *Notification) {
	ns.publish(&publishReq{
		sosId: sosId,
		msg: &ServerMessage{
			BaseMessage:  BaseMessage{Timestamp: Now()},
			Notification: n,
		},
	})
}

func (ns *NotificationServer) publish(req *publishReq) {
	select {
	case ns.publishChan <- req:
	default:
		// Delivery is best-effort: late subscribers reconcile via list.
		ns.log.Printf("publish channel full, dropping notification for scope %q", req.sosId)
	}
}

func (ns *NotificationServer) handleJoin(msg *ClientMessage) {
	c := msg.client
	switch {
	case msg.JoinAdmins != nil:
		if _, ok := ns.admins[c]; !ok {
			ns.admins[c] = struct{}{}
			ns.stats.Incr(stats.NumAdminSubscribers)
		}
		c.queueMessage(NoErrOK(msg.Id, nil))
	case msg.JoinEvent != nil:
		id := msg.JoinEvent.SosId
		if id == "" {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			return
		}

		if ns.eventSubs[id] == nil {
			ns.eventSubs[id] = make(map[*Client]struct{})
		}
		if _, ok := ns.eventSubs[id][c]; !ok {
			ns.eventSubs[id][c] = struct{}{}
			ns.stats.Incr(stats.NumEventSubscriptions)
		}
		c.queueMessage(NoErrOK(msg.Id, nil))
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (ns *NotificationServer) handleLeave(msg *ClientMessage) {
	c := msg.client
	if msg.Leave.SosId == "" {
		if _, ok := ns.admins[c]; ok {
			delete(ns.admins, c)
			ns.stats.Decr(stats.NumAdminSubscribers)
		}
	} else {
		ns.removeEventSub(msg.Leave.SosId, c)
	}

	c.queueMessage(NoErrOK(msg.Id, nil))
}

func (ns *NotificationServer) fanout(req *publishReq) {
	if req.sosId == "" {
		for c := range ns.admins {
			c.queueMessage(req.msg)
		}
		return
	}

	for c := range ns.eventSubs[req.sosId] {
		c.queueMessage(req.msg)
	}
}

func (ns *NotificationServer) dropSubscriptions(c *Client) {
	if _, ok := ns.admins[c]; ok {
		delete(ns.admins, c)
		ns.stats.Decr(stats.NumAdminSubscribers)
	}

	for id, subs := range ns.eventSubs {
		if _, ok := subs[c]; ok {
			ns.removeEventSub(id, c)
		}
	}
}

func (ns *NotificationServer) removeEventSub(id string, c *Client) {
	subs, ok := ns.eventSubs[id]
	if !ok {
		return
	}

	if _, ok := subs[c]; ok {
		delete(subs, c)
		ns.stats.Decr(stats.NumEventSubscriptions)
	}

	if len(subs) == 0 {
		delete(ns.eventSubs, id)
	}
}

func (ns *NotificationServer) addClient(c *Client) {
	ns.clientsLock.Lock()
	defer ns.clientsLock.Unlock()
	ns.clients[c] = struct{}{}
}

func (ns *NotificationServer) removeClient(c *Client) {
	ns.clientsLock.Lock()
	defer ns.clientsLock.Unlock()
	delete(ns.clients, c)
}

func (ns *NotificationServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case ns.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
