package websocket

import (
	"time"

	"goldenminutes/events"
)

// Message types
const (
	TypeEvent       = "event"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeSuccess     = "success"
	TypeError       = "error"
)

// Error codes
const (
	ErrorInvalidMessage = "INVALID_MESSAGE"
	ErrorForbidden      = "FORBIDDEN"
	ErrorRateLimit      = "RATE_LIMIT_EXCEEDED"
)

// Message is what the server writes to a connection.
type Message struct {
	Type      string        `json:"type"`
	Event     *events.Event `json:"event,omitempty"`
	Data      interface{}   `json:"data,omitempty"`
	RequestID string        `json:"requestId,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Request is what a client may send.
type Request struct {
	Type        string `json:"type"`
	EmergencyID string `json:"emergencyId,omitempty"`
	RequestID   string `json:"requestId,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func eventMessage(event events.Event) Message {
	return Message{Type: TypeEvent, Event: &event, Timestamp: time.Now()}
}

func errorMessage(code, message, requestID string) Message {
	return Message{
		Type:      TypeError,
		Data:      ErrorData{Code: code, Message: message},
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}

func successMessage(data interface{}, requestID string) Message {
	return Message{Type: TypeSuccess, Data: data, RequestID: requestID, Timestamp: time.Now()}
}
