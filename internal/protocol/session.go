package protocol

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/lgulliver/git-lfs-walrus/internal/mapping"
	"github.com/lgulliver/git-lfs-walrus/internal/walrus"
)

// ErrProtocolViolation marks an unrecoverable desynchronization: the event
// stream is structurally wrong and guessing at recovery would corrupt the
// conversation. Per-object backend failures are NOT violations; they are
// reported as complete events and the session continues.
var ErrProtocolViolation = errors.New("protocol violation")

// SessionState is the lifecycle of one transfer session
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateActive
	StateClosed
)

// StateMachine drives one transfer session: it consumes protocol events,
// invokes the blob store, and produces response events. State is an owned
// value, never shared.
type StateMachine struct {
	state       SessionState
	operation   Operation
	blobs       walrus.BlobStore
	mappings    mapping.Store
	downloadDir string
}

// NewStateMachine creates an uninitialized session
func NewStateMachine(blobs walrus.BlobStore, mappings mapping.Store, downloadDir string) *StateMachine {
	return &StateMachine{
		blobs:       blobs,
		mappings:    mappings,
		downloadDir: downloadDir,
	}
}

// State returns the current session state
func (sm *StateMachine) State() SessionState {
	return sm.state
}

// Run reads line-delimited events from r until terminate or EOF, writing
// response lines to w. One event is fully processed, including its backend
// call, before the next is read; the driver consumes each response before
// sending more, so no deeper queue is needed.
//
// A returned error is always a protocol violation (or an I/O failure on
// the conversation itself) and means the process should exit non-zero.
func (sm *StateMachine) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		event, err := DecodeEvent(line)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}

		responses, err := sm.Handle(ctx, event)
		if err != nil {
			return err
		}

		for _, resp := range responses {
			encoded, err := EncodeEvent(resp)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s\n", encoded); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
		}

		if sm.state == StateClosed {
			return nil
		}
	}

	return scanner.Err()
}

// Handle applies a single event to the session and returns the response
// events to emit, in order
func (sm *StateMachine) Handle(ctx context.Context, event Event) ([]Event, error) {
	switch sm.state {
	case StateUninitialized:
		init, ok := event.(InitEvent)
		if !ok {
			return nil, fmt.Errorf("%w: %s event before init", ErrProtocolViolation, event.eventName())
		}
		if init.Operation != OperationUpload && init.Operation != OperationDownload {
			return nil, fmt.Errorf("%w: unknown operation %q", ErrProtocolViolation, init.Operation)
		}

		sm.state = StateActive
		sm.operation = init.Operation
		log.Debug().
			Str("operation", string(init.Operation)).
			Str("remote", init.Remote).
			Int("concurrenttransfers", init.ConcurrentTransfers).
			Msg("transfer session initialized")
		return []Event{AcknowledgeInit{}}, nil

	case StateActive:
		switch event := event.(type) {
		case InitEvent:
			return nil, fmt.Errorf("%w: repeated init event", ErrProtocolViolation)
		case TerminateEvent:
			sm.state = StateClosed
			log.Debug().Msg("transfer session terminated")
			return nil, nil
		case UploadEvent:
			if sm.operation != OperationUpload {
				return nil, fmt.Errorf("%w: upload event in %s session", ErrProtocolViolation, sm.operation)
			}
			return []Event{sm.handleUpload(ctx, event)}, nil
		case DownloadEvent:
			if sm.operation != OperationDownload {
				return nil, fmt.Errorf("%w: download event in %s session", ErrProtocolViolation, sm.operation)
			}
			return sm.handleDownload(ctx, event), nil
		default:
			return nil, fmt.Errorf("%w: unexpected %s event", ErrProtocolViolation, event.eventName())
		}

	default:
		return nil, fmt.Errorf("%w: event after terminate", ErrProtocolViolation)
	}
}

// handleUpload stores one object. Failure is reported as a complete error
// event; a single object never takes down the session.
func (sm *StateMachine) handleUpload(ctx context.Context, event UploadEvent) Event {
	blobID, err := sm.blobs.Store(ctx, event.Path)
	if err != nil {
		log.Error().Err(err).Str("oid", event.Oid).Msg("upload failed")
		return CompleteEvent{
			Oid:   event.Oid,
			Error: &EventError{Code: CodeInternalError, Message: err.Error()},
		}
	}

	if err := sm.mappings.Put(ctx, event.Oid, blobID); err != nil {
		// The mapping is a best-effort index; the upload itself succeeded
		log.Warn().Err(err).Str("oid", event.Oid).Msg("failed to record blob mapping")
	}

	log.Info().Str("oid", event.Oid).Str("blob_id", blobID).Msg("object uploaded")
	return CompleteEvent{Oid: event.Oid}
}

// handleDownload retrieves one object. The oid is a SHA-256 content hash,
// never a Walrus blob ID: an unmapped oid fails that object with a
// not-found error instead of being passed to the backend as-is.
func (sm *StateMachine) handleDownload(ctx context.Context, event DownloadEvent) []Event {
	blobID, err := sm.mappings.Get(ctx, event.Oid)
	if err != nil {
		code := CodeInternalError
		if errors.Is(err, mapping.ErrNotFound) {
			code = CodeNotFound
		}
		log.Error().Err(err).Str("oid", event.Oid).Msg("cannot resolve blob ID for download")
		return []Event{CompleteEvent{
			Oid:   event.Oid,
			Error: &EventError{Code: code, Message: err.Error()},
		}}
	}

	destPath := filepath.Join(sm.downloadDir, event.Oid)
	n, err := sm.blobs.Fetch(ctx, blobID, destPath)
	if err != nil {
		log.Error().Err(err).Str("oid", event.Oid).Str("blob_id", blobID).Msg("download failed")
		return []Event{CompleteEvent{
			Oid:   event.Oid,
			Error: &EventError{Code: CodeInternalError, Message: err.Error()},
		}}
	}

	log.Info().Str("oid", event.Oid).Str("blob_id", blobID).Int64("size", n).Msg("object downloaded")
	return []Event{
		ProgressEvent{Oid: event.Oid, BytesSoFar: n, BytesSinceLast: n},
		CompleteEvent{Oid: event.Oid, Path: destPath},
	}
}
