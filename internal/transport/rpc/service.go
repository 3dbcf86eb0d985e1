// Package rpc implements the call-style transport on connectrpc. The client
// logs in and sends commands with unary calls; the server calls back into
// the client through a long-lived server stream opened by Subscribe.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
)

// Procedure names, relative to the service name.
const (
	LoginProcedure     = ".Session/Login"
	CommandProcedure   = ".Session/Command"
	SubscribeProcedure = ".Session/Subscribe"
	LogoutProcedure    = ".Session/Logout"
)

// codeHeader carries the application error code of a failed call.
const codeHeader = "Sagrada-Error-Code"

type LoginRequest struct {
	Kind     protocol.Kind `json:"kind"`
	Username string        `json:"username"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type CommandRequest struct {
	Token   string           `json:"token"`
	Message protocol.Message `json:"message"`
}

type CommandResponse struct{}

type SubscribeRequest struct {
	Token string `json:"token"`
}

type LogoutRequest struct {
	Token string `json:"token"`
}

type LogoutResponse struct{}

// procedure is the full path of a procedure of service.
func procedure(service, name string) string {
	return "/" + service + name
}

// jsonCodec replaces connect's protobuf JSON codec so plain Go structs can
// travel as messages.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// toConnect maps an application error onto a connect error, keeping its code
// in a response header.
func toConnect(err error) error {
	code := connect.CodeInternal
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeLoginConflict:
		code = connect.CodeAlreadyExists
	case apperrors.ErrCodeLoginInvalid, apperrors.ErrCodeInvalidInput:
		code = connect.CodeInvalidArgument
	case apperrors.ErrCodeRuleViolation:
		code = connect.CodeFailedPrecondition
	case apperrors.ErrCodeTransportFailure:
		code = connect.CodeUnavailable
	}
	cerr := connect.NewError(code, errors.New(apperrors.Message(err)))
	if c := apperrors.GetCode(err); c != "" {
		cerr.Meta().Set(codeHeader, string(c))
	}
	return cerr
}

// fromConnect is the inverse of toConnect on the client side.
func fromConnect(op string, err error) error {
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		return apperrors.TransportFailure(op, err)
	}
	if c := cerr.Meta().Get(codeHeader); c != "" {
		return apperrors.Wrap(err, apperrors.ParseCode(c), cerr.Message())
	}
	switch cerr.Code() {
	case connect.CodeAlreadyExists:
		return apperrors.Wrap(err, apperrors.ErrCodeLoginConflict, cerr.Message())
	case connect.CodeInvalidArgument:
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, cerr.Message())
	}
	return apperrors.TransportFailure(op, err)
}

type controllerKey struct{}

// withResponseController exposes the response controller of each request so
// stream writes can carry their own deadline.
func withResponseController(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), controllerKey{}, http.NewResponseController(w))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func responseController(ctx context.Context) *http.ResponseController {
	rc, _ := ctx.Value(controllerKey{}).(*http.ResponseController)
	return rc
}
