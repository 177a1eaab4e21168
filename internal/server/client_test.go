package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/worachat-d/go-sos-center/internal/stats"
)

func TestNewClient(t *testing.T) {
	ns := newTestNotificationServer(t, &stats.MockStatsUpdater{})

	client := NewClient("station-ST001", nil, ns, ns.log)
	assert.NotNil(t, client, "expected client to be non-nil")
	assert.Equal(t, "station-ST001", client.identity, "expected identity to be set")
	assert.NotEmpty(t, client.connId, "expected a connection id to be assigned")
	assert.NotNil(t, client.send, "expected send channel to be initialized")
	assert.NotNil(t, client.stop, "expected stop channel to be initialized")

	other := NewClient("station-ST002", nil, ns, ns.log)
	assert.NotEqual(t, client.connId, other.connId, "expected unique connection ids")
}

func TestClient_queueMessage(t *testing.T) {
	ns := newTestNotificationServer(t, &stats.MockStatsUpdater{})

	client := newTestClient(ns)
	client.send = make(chan *ServerMessage, 1)

	assert.True(t, client.queueMessage(NoErrOK(1, nil)), "expected message to be queued")
	assert.False(t, client.queueMessage(NoErrOK(2, nil)), "expected message to be dropped when send channel is full")
	assert.Len(t, client.send, 1, "expected only the first message to be queued")
}

func TestClient_stopClient(t *testing.T) {
	ns := newTestNotificationServer(t, &stats.MockStatsUpdater{})
	client := newTestClient(ns)

	client.stopClient()
	select {
	case <-client.stop:
	default:
		t.Error("expected stop channel to be closed")
	}

	// must be safe to call again
	client.stopClient()
}
