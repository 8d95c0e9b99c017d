package session

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Status is the outcome tag every Result carries.
type Status string

const (
	StatusSuccess Status = "success"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// Code tags an error Result with a machine-readable reason.
type Code string

const (
	CodeNoSession       Code = "NO_SESSION"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeSessionExists   Code = "SESSION_EXISTS"
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"
	CodeWindowNotFound  Code = "WINDOW_NOT_FOUND"
	CodePaneNotFound    Code = "PANE_NOT_FOUND"

	CodeCreateSessionFailed Code = "CREATE_SESSION_FAILED"
	CodeKillSessionFailed   Code = "KILL_SESSION_FAILED"
	CodeCreateWindowFailed  Code = "CREATE_WINDOW_FAILED"
	CodeCreatePaneFailed    Code = "CREATE_PANE_FAILED"
	CodeListSessionsFailed  Code = "LIST_SESSIONS_FAILED"
	CodeListWindowsFailed   Code = "LIST_WINDOWS_FAILED"
	CodeListPanesFailed     Code = "LIST_PANES_FAILED"
	CodeSendCommandFailed   Code = "SEND_COMMAND_FAILED"
	CodeCapturePaneFailed   Code = "CAPTURE_PANE_FAILED"
	CodeWaitIdleFailed      Code = "WAIT_IDLE_FAILED"
	CodeKillWindowFailed    Code = "KILL_WINDOW_FAILED"
	CodeKillPaneFailed      Code = "KILL_PANE_FAILED"
	CodeTerminalFailed      Code = "TERMINAL_WRITE_FAILED"
)

// Record is a JSON object that keeps its keys in insertion order, so output
// reads the same way every time.
type Record struct {
	keys   []string
	values map[string]interface{}
}

// NewRecord creates an empty Record.
func NewRecord() *Record {
	return &Record{values: make(map[string]interface{})}
}

// Set adds or replaces a key. Replacing keeps the original position.
func (r *Record) Set(key string, value interface{}) *Record {
	if r.values == nil {
		r.values = make(map[string]interface{})
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
	return r
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (interface{}, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[key])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %q: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is the reply to one command: a Record whose first key is "status".
type Result struct {
	Record
}

// NewResult starts a Result with the given status.
func NewResult(status Status) *Result {
	r := &Result{}
	r.Set("status", string(status))
	return r
}

// Success starts a successful Result.
func Success() *Result {
	return NewResult(StatusSuccess)
}

// Failure builds an error Result carrying message and code.
func Failure(code Code, format string, args ...interface{}) *Result {
	r := NewResult(StatusError)
	r.Set("message", fmt.Sprintf(format, args...))
	r.Set("code", string(code))
	return r
}

// With sets a key and returns the Result for chaining.
func (r *Result) With(key string, value interface{}) *Result {
	r.Set(key, value)
	return r
}

// Status returns the status tag.
func (r *Result) Status() Status {
	v, _ := r.Get("status")
	s, _ := v.(string)
	return Status(s)
}

// Code returns the error code, or "" for non-error results.
func (r *Result) Code() Code {
	v, _ := r.Get("code")
	s, _ := v.(string)
	return Code(s)
}

// Message returns the message field, if any.
func (r *Result) Message() string {
	v, _ := r.Get("message")
	s, _ := v.(string)
	return s
}

// IsError reports whether the Result is an error.
func (r *Result) IsError() bool {
	return r.Status() == StatusError
}
