// Package hubs implements the JSON encoding of the ASP.NET Core SignalR Hub
// Protocol: the small set of message types (invocation, stream item,
// completion, ping, close) exchanged over an already-established
// Connection, one JSON object per frame.
package hubs

import (
	"encoding/json"

	"github.com/pkg/errors"
	sonnet "github.com/sugawarayuuta/sonnet"
)

// MessageType identifies the kind of hub protocol message a frame carries,
// per the "type" discriminator field of the JSON Hub Protocol.
type MessageType int

const (
	TypeInvocation       MessageType = 1
	TypeStreamItem       MessageType = 2
	TypeCompletion       MessageType = 3
	TypeStreamInvocation MessageType = 4
	TypeCancelInvocation MessageType = 5
	TypePing             MessageType = 6
	TypeClose            MessageType = 7
)

// InvocationMessage invokes a hub method. InvocationID is empty for a
// fire-and-forget call that expects no CompletionMessage.
type InvocationMessage struct {
	Type         MessageType   `json:"type"`
	InvocationID string        `json:"invocationId,omitempty"`
	Target       string        `json:"target"`
	Arguments    []interface{} `json:"arguments"`
}

// NewInvocation builds an InvocationMessage for target with the given
// arguments. Pass an empty invocationID for a call that does not need a
// completion.
func NewInvocation(invocationID, target string, args ...interface{}) InvocationMessage {
	if args == nil {
		args = []interface{}{}
	}
	return InvocationMessage{
		Type:         TypeInvocation,
		InvocationID: invocationID,
		Target:       target,
		Arguments:    args,
	}
}

// CompletionMessage reports the outcome of a prior invocation. Result and
// Error are mutually exclusive; both are absent for a void method call that
// completed successfully.
type CompletionMessage struct {
	Type         MessageType      `json:"type"`
	InvocationID string           `json:"invocationId"`
	Result       *json.RawMessage `json:"result,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// StreamItemMessage carries one item of a server-to-client stream response.
type StreamItemMessage struct {
	Type         MessageType `json:"type"`
	InvocationID string      `json:"invocationId"`
	Item         interface{} `json:"item"`
}

// PingMessage keeps an idle connection alive.
type PingMessage struct {
	Type MessageType `json:"type"`
}

// CloseMessage tells the client the server is shutting the connection down.
type CloseMessage struct {
	Type           MessageType `json:"type"`
	Error          string      `json:"error,omitempty"`
	AllowReconnect bool        `json:"allowReconnect,omitempty"`
}

// Encode marshals msg to its wire representation. It does not append the
// record separator; callers combine it with whatever framing the transport
// requires.
func Encode(msg interface{}) ([]byte, error) {
	data, err := sonnet.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "encode hub message")
	}
	return data, nil
}

type typeEnvelope struct {
	Type MessageType `json:"type"`
}

// Decode inspects a frame's "type" field and unmarshals it into the
// matching concrete message type. A Ping decodes to PingMessage, an
// Invocation to InvocationMessage, and so on; the handshake response frame
// (which carries no "type" field) is not a hub protocol message and is
// handled separately by the connection core.
func Decode(frame []byte) (interface{}, error) {
	var env typeEnvelope
	if err := sonnet.Unmarshal(frame, &env); err != nil {
		return nil, errors.Wrap(err, "decode hub message envelope")
	}

	switch env.Type {
	case TypeInvocation:
		var msg InvocationMessage
		if err := sonnet.Unmarshal(frame, &msg); err != nil {
			return nil, errors.Wrap(err, "decode invocation")
		}
		return msg, nil
	case TypeStreamItem:
		var msg StreamItemMessage
		if err := sonnet.Unmarshal(frame, &msg); err != nil {
			return nil, errors.Wrap(err, "decode stream item")
		}
		return msg, nil
	case TypeCompletion:
		var msg CompletionMessage
		if err := sonnet.Unmarshal(frame, &msg); err != nil {
			return nil, errors.Wrap(err, "decode completion")
		}
		return msg, nil
	case TypePing:
		return PingMessage{Type: TypePing}, nil
	case TypeClose:
		var msg CloseMessage
		if err := sonnet.Unmarshal(frame, &msg); err != nil {
			return nil, errors.Wrap(err, "decode close")
		}
		return msg, nil
	default:
		return nil, errors.Errorf("unrecognized hub message type %d", env.Type)
	}
}
