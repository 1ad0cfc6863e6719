package protocol

import (
	"encoding/json"
	"fmt"
)

// Operation is the transfer direction fixed at init for the whole session
type Operation string

const (
	OperationUpload   Operation = "upload"
	OperationDownload Operation = "download"
)

// Error codes carried in complete events
const (
	CodeInternalError = 500
	CodeNotFound      = 404
)

// Event is one message of the git-lfs custom transfer protocol, either
// direction
type Event interface {
	eventName() string
}

// InitEvent starts a session and fixes its operation
type InitEvent struct {
	Operation           Operation `json:"operation"`
	Remote              string    `json:"remote"`
	Concurrent          bool      `json:"concurrent"`
	ConcurrentTransfers int       `json:"concurrenttransfers"`
}

// UploadEvent asks the agent to store one object
type UploadEvent struct {
	Oid  string `json:"oid"`
	Size int64  `json:"size"`
	Path string `json:"path"`
}

// DownloadEvent asks the agent to retrieve one object
type DownloadEvent struct {
	Oid  string `json:"oid"`
	Size int64  `json:"size"`
}

// TerminateEvent ends the session
type TerminateEvent struct{}

// AcknowledgeInit is the response to init. The protocol requires it to
// serialize as the literal empty object, not a tagged form.
type AcknowledgeInit struct{}

// ProgressEvent reports transfer progress for one object
type ProgressEvent struct {
	Oid            string `json:"oid"`
	BytesSoFar     int64  `json:"bytesSoFar"`
	BytesSinceLast int64  `json:"bytesSinceLast"`
}

// CompleteEvent reports the outcome for one object: a download carries a
// path, an upload carries neither path nor error, a failure carries Error
type CompleteEvent struct {
	Oid   string      `json:"oid"`
	Path  string      `json:"path,omitempty"`
	Error *EventError `json:"error,omitempty"`
}

// EventError is the error payload of a failed complete event
type EventError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (InitEvent) eventName() string       { return "init" }
func (UploadEvent) eventName() string     { return "upload" }
func (DownloadEvent) eventName() string   { return "download" }
func (TerminateEvent) eventName() string  { return "terminate" }
func (AcknowledgeInit) eventName() string { return "" }
func (ProgressEvent) eventName() string   { return "progress" }
func (CompleteEvent) eventName() string   { return "complete" }

// envelope is the superset of incoming wire fields, dispatched on "event"
type envelope struct {
	Event               string    `json:"event"`
	Operation           Operation `json:"operation"`
	Remote              string    `json:"remote"`
	Concurrent          bool      `json:"concurrent"`
	ConcurrentTransfers int       `json:"concurrenttransfers"`
	Oid                 string    `json:"oid"`
	Size                int64     `json:"size"`
	Path                string    `json:"path"`
}

// DecodeEvent parses one protocol line into a typed event. An unparsable
// line or an unknown discriminant is a protocol-level failure.
func DecodeEvent(line []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("malformed protocol line: %w", err)
	}

	switch env.Event {
	case "init":
		return InitEvent{
			Operation:           env.Operation,
			Remote:              env.Remote,
			Concurrent:          env.Concurrent,
			ConcurrentTransfers: env.ConcurrentTransfers,
		}, nil
	case "upload":
		return UploadEvent{Oid: env.Oid, Size: env.Size, Path: env.Path}, nil
	case "download":
		return DownloadEvent{Oid: env.Oid, Size: env.Size}, nil
	case "terminate":
		return TerminateEvent{}, nil
	case "":
		return nil, fmt.Errorf("protocol line has no event field")
	default:
		return nil, fmt.Errorf("unknown protocol event %q", env.Event)
	}
}

// EncodeEvent serializes an outgoing event as one canonical JSON line,
// without the trailing newline
func EncodeEvent(ev Event) ([]byte, error) {
	if _, ok := ev.(AcknowledgeInit); ok {
		return []byte("{}"), nil
	}

	switch ev := ev.(type) {
	case ProgressEvent:
		return json.Marshal(struct {
			Event string `json:"event"`
			ProgressEvent
		}{ev.eventName(), ev})
	case CompleteEvent:
		return json.Marshal(struct {
			Event string `json:"event"`
			CompleteEvent
		}{ev.eventName(), ev})
	case TerminateEvent:
		return json.Marshal(struct {
			Event string `json:"event"`
		}{ev.eventName()})
	default:
		return nil, fmt.Errorf("event %T is not an outgoing protocol event", ev)
	}
}
