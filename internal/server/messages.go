package server

import (
	"net/http"
	"time"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the subscription control protocol spoken by consoles
// and stations over the websocket.
type ClientMessage struct {
	BaseMessage
	JoinAdmins *JoinAdmins `json:"join_admins,omitempty"`
	JoinEvent  *JoinEvent  `json:"join_event,omitempty"`
	Leave      *Leave      `json:"leave,omitempty"`
	client     *Client
}

// JoinAdmins subscribes the connection to the admin broadcast scope.
type JoinAdmins struct{}

// JoinEvent subscribes the connection to a single SOS event's transitions.
type JoinEvent struct {
	SosId string `json:"sosId"`
}

// Leave drops an event subscription, or the admin scope when SosId is empty.
type Leave struct {
	SosId string `json:"sosId,omitempty"`
}

type ServerMessage struct {
	BaseMessage
	Response     *Response     `json:"response,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// Notification carries exactly one lifecycle transition.
type Notification struct {
	New      *NewEvent      `json:"new,omitempty"`
	Accepted *AcceptedEvent `json:"accepted,omitempty"`
	Ended    *EndedEvent    `json:"ended,omitempty"`
}

type NewEvent struct {
	SosId       string    `json:"sosId"`
	StationId   string    `json:"stationId"`
	StationName string    `json:"stationName"`
	RoomName    string    `json:"roomName"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AcceptedEvent struct {
	SosId       string    `json:"sosId"`
	StationId   string    `json:"stationId"`
	StationName string    `json:"stationName"`
	AcceptedBy  string    `json:"acceptedBy"`
	RoomName    string    `json:"roomName"`
	AcceptedAt  time.Time `json:"acceptedAt"`
}

type EndedEvent struct {
	SosId string `json:"sosId"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
