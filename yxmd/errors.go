package yxmd

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

type ErrorType string

const (
	ErrParse              ErrorType = "parse_error"
	ErrNotFound           ErrorType = "not_found"
	ErrFieldNotFound      ErrorType = "field_not_found"
	ErrReferenceNotFound  ErrorType = "reference_not_found"
	ErrInvalidIdentifier  ErrorType = "invalid_identifier"
	ErrDanglingConnection ErrorType = "dangling_connection"
	ErrDuplicateToolID    ErrorType = "duplicate_tool_id"
	ErrUnsupported        ErrorType = "unsupported"
	ErrInvalidRequest     ErrorType = "invalid_request"
	ErrWrite              ErrorType = "write_error"
)

// Error carries a typed failure. ToolID and Names identify the resource the
// failure is about when there is one.
type Error struct {
	Type    ErrorType `json:"type"`
	ToolID  int       `json:"tool_id,omitempty"`
	Names   []string  `json:"names,omitempty"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Type, so errors.Is(err,
// &Error{Type: ErrNotFound}) works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Type == e.Type
}

// IsType reports whether err (or anything it wraps) is an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

func newError(t ErrorType, toolID int, format string, args ...any) *Error {
	return &Error{Type: t, ToolID: toolID, Message: fmt.Sprintf(format, args...)}
}

func notFound(id int) *Error {
	return newError(ErrNotFound, id, "tool %d not found", id)
}

func fieldsNotFound(id int, names []string) *Error {
	e := newError(ErrFieldNotFound, id, "tool %d: fields not found: %s", id, strings.Join(names, ", "))
	e.Names = names
	return e
}

func unsupported(id int, plugin, capability string) *Error {
	return newError(ErrUnsupported, id, "tool %d (%s) does not support %s edits", id, simplePluginName(plugin), capability)
}

func wrapXMLError(err error, context string) error {
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		return &Error{Type: ErrParse, Message: fmt.Sprintf("%s (line %d)", context, se.Line), Err: err}
	}
	return &Error{Type: ErrParse, Message: context, Err: err}
}
