package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// CodeQuotaExhausted is the remote code signalling that the account has no
// requests left in the current billing period.
const CodeQuotaExhausted = 301

// RemoteError is raised by the remote client. Class names the remote error
// kind, e.g. "DatafeedrBadRequestError".
type RemoteError struct {
	Class   string
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// ErrorEnvelope is the uniform error object returned to every caller.
type ErrorEnvelope struct {
	Class   string         `json:"class"`
	Code    int            `json:"code"`
	Message string         `json:"msg"`
	Params  map[string]any `json:"params"`
}

func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Class, e.Code, e.Message)
}

// codedError is satisfied by errors that expose a numeric code, such as
// CompileError.
type codedError interface {
	error
	ErrorCode() int
}

// NewErrorEnvelope maps err to the error envelope. params is the best known
// request parameter set at failure time and may be nil.
func NewErrorEnvelope(err error, params map[string]any) *ErrorEnvelope {
	env := &ErrorEnvelope{Params: params}

	var remote *RemoteError
	var coded codedError
	switch {
	case errors.As(err, &remote):
		env.Class = remote.Class
		if env.Class == "" {
			env.Class = "RemoteError"
		}
		env.Code = remote.Code
		env.Message = remote.Message
	case errors.As(err, &coded):
		env.Class = className(coded)
		env.Code = coded.ErrorCode()
		env.Message = coded.Error()
	default:
		env.Class = className(err)
		env.Message = err.Error()
	}
	return env
}

// IsQuotaExhausted reports whether err carries the quota exhausted code.
func IsQuotaExhausted(err error) bool {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Code == CodeQuotaExhausted
	}
	var env *ErrorEnvelope
	if errors.As(err, &env) {
		return env.Code == CodeQuotaExhausted
	}
	return false
}

func className(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return strings.TrimPrefix(t.String(), "*")
}
