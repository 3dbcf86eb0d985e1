// Package protocol defines the messages exchanged between clients and the
// server. Every message is a (kind, body) pair; the kind determines the
// concrete shape of the body. Both transports carry the same messages.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/event"
)

type Kind string

const (
	KindShow        Kind = "SHOW"
	KindShowError   Kind = "SHOW_ERROR"
	KindModelUpdate Kind = "MODEL_UPDATE"
	KindViewMessage Kind = "VIEW_MESSAGE"
	KindAck         Kind = "ACK"
	KindLoginMP     Kind = "LOGIN_MP"
	KindLoginSP     Kind = "LOGIN_SP"
	KindPing        Kind = "PING"
)

// IsLogin reports whether k requests a login.
func (k Kind) IsLogin() bool {
	return k == KindLoginMP || k == KindLoginSP
}

// Message is the envelope for all messages.
type Message struct {
	Kind Kind            `json:"kind"`
	Body json.RawMessage `json:"body,omitempty"`
}

// Show asks the client to render a view.
type Show struct {
	View string `json:"view"`
}

// ShowError asks the client to render an error.
type ShowError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ViewMessage is a command originated by a client's view. Its meaning is
// defined by the rule engine.
type ViewMessage struct {
	Action string   `json:"action"`
	Args   []string `json:"args,omitempty"`
}

// Ack acknowledges a message of kind Of. For logins Accepted=false is the
// login-failure signal and Reason explains it.
type Ack struct {
	Of       Kind   `json:"of"`
	Accepted bool   `json:"accepted"`
	Username string `json:"username,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Code     string `json:"code,omitempty"`
}

// Login is the body of LOGIN_MP and LOGIN_SP.
type Login struct {
	Username string `json:"username"`
}

// Ping is a liveness check.
type Ping struct {
	Nonce  uint64    `json:"nonce"`
	SentAt time.Time `json:"sentAt"`
}

// New builds a message with body encoded as JSON. A nil body yields an empty
// message of the given kind.
func New(kind Kind, body any) (Message, error) {
	if body == nil {
		return Message{Kind: kind}, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s body: %w", kind, err)
	}
	return Message{Kind: kind, Body: data}, nil
}

// MustNew is New for bodies that cannot fail to encode.
func MustNew(kind Kind, body any) Message {
	m, err := New(kind, body)
	if err != nil {
		panic(err)
	}
	return m
}

// Update wraps an event in a MODEL_UPDATE message.
func Update(e event.Event) (Message, error) {
	data, err := event.Marshal(e)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindModelUpdate, Body: data}, nil
}

// Event decodes the event carried by a MODEL_UPDATE message.
func (m Message) Event() (event.Event, error) {
	if m.Kind != KindModelUpdate {
		return nil, apperrors.InvalidInput(fmt.Sprintf("%s does not carry an event", m.Kind))
	}
	return event.Unmarshal(m.Body)
}

// Decode unmarshals the body of m into a T.
func Decode[T any](m Message) (T, error) {
	var v T
	if len(m.Body) == 0 {
		return v, apperrors.InvalidInput(fmt.Sprintf("%s has no body", m.Kind))
	}
	if err := json.Unmarshal(m.Body, &v); err != nil {
		return v, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, fmt.Sprintf("malformed %s body", m.Kind))
	}
	return v, nil
}

// Error builds the SHOW_ERROR message for err.
func Error(err error) Message {
	return MustNew(KindShowError, ShowError{
		Code:    string(apperrors.GetCode(err)),
		Message: apperrors.Message(err),
	})
}

// LoginReply builds the ACK answering a login request. A nil err accepts it.
func LoginReply(kind Kind, username string, err error) Message {
	ack := Ack{Of: kind, Accepted: err == nil, Username: username}
	if err != nil {
		ack.Reason = apperrors.Message(err)
		ack.Code = string(apperrors.GetCode(err))
	}
	return MustNew(KindAck, ack)
}

// Err turns a refused acknowledgement back into a coded error.
func (a Ack) Err() error {
	if a.Accepted {
		return nil
	}
	code := apperrors.ParseCode(a.Code)
	if code == "" {
		code = apperrors.ErrCodeLoginInvalid
	}
	return apperrors.New(code, a.Reason)
}

// Marshal encodes m for the wire.
func Marshal(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal decodes a wire message.
func Unmarshal(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "malformed message")
	}
	if m.Kind == "" {
		return Message{}, apperrors.InvalidInput("message has no kind")
	}
	return m, nil
}
