package gateway

import (
	"github.com/mcdev12/gavel/go/internal/auction/coordinator"
	"github.com/mcdev12/gavel/go/internal/auction/events"
)

// FrameType identifies a server to client websocket frame.
type FrameType string

const (
	// FrameSnapshot is always the first frame of a connection.
	FrameSnapshot FrameType = "snapshot"
	// FrameEvent carries one committed event, in sequence order.
	FrameEvent FrameType = "event"
	// FrameAck answers an accepted intent of this connection.
	FrameAck FrameType = "ack"
	// FrameRejection answers a refused intent of this connection only.
	FrameRejection FrameType = "rejection"
)

// Frame is the JSON message sent to websocket clients.
type Frame struct {
	Type      FrameType        `json:"type"`
	RequestID string           `json:"request_id,omitempty"`
	Snapshot  *events.Snapshot `json:"snapshot,omitempty"`
	Event     *events.Event    `json:"event,omitempty"`
	Ack       *Ack             `json:"ack,omitempty"`
	Rejection *Rejection       `json:"rejection,omitempty"`
}

type Ack struct {
	Intent    string   `json:"intent"`
	Sequences []uint64 `json:"sequences"`
	// PublishError means the change is committed but some viewers may have
	// missed it.
	PublishError string `json:"publish_error,omitempty"`
}

type Rejection struct {
	Kind    string `json:"kind"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ErrReadOnly is returned for intents sent to a relay gateway.
var ErrReadOnly = &coordinator.Rejection{
	Kind:    coordinator.KindStateConflict,
	Reason:  "read_only",
	Message: "this gateway only streams events, submit intents to the auction server",
}

func ackFrame(requestID string, intentName string, result coordinator.Result) Frame {
	ack := &Ack{Intent: intentName, Sequences: make([]uint64, 0, len(result.Events))}
	for _, ev := range result.Events {
		ack.Sequences = append(ack.Sequences, ev.Sequence)
	}
	if result.PublishErr != nil {
		ack.PublishError = result.PublishErr.Error()
	}
	return Frame{Type: FrameAck, RequestID: requestID, Ack: ack}
}

func rejectionFrame(requestID string, err error) Frame {
	rej := &Rejection{
		Kind:    string(coordinator.KindTransport),
		Reason:  "internal",
		Message: err.Error(),
	}
	if r, ok := coordinator.AsRejection(err); ok {
		rej.Kind = string(r.Kind)
		rej.Reason = string(r.Reason)
		rej.Message = r.Message
	}
	return Frame{Type: FrameRejection, RequestID: requestID, Rejection: rej}
}
