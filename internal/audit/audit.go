// Package audit writes the append-only record of every protocol message a
// service sends or receives, accepted or rejected, as newline-delimited
// JSON at the path passed to Open (each service's main defaults it to
// audit.ndjson inside its --data-dir). Following the same adapter
// idea as internal/db/logger.go, each write is mirrored at
// debug level through the service's structured logger, and the underlying
// file is serialized through a single mutex so records are never
// interleaved or reordered.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Direction is which way a message crossed the wire relative to this
// service.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Outcome is whether the message was accepted or rejected, per section 4.8.
// Rejected outcomes carry the reason as a suffix, e.g. "rejected:AUTH_REQUIRED".
type Outcome string

const OutcomeAccepted Outcome = "accepted"

// Rejected builds the "rejected:<reason>" outcome value.
func Rejected(reason string) Outcome {
	return Outcome("rejected:" + reason)
}

// Record is one line of the audit log.
type Record struct {
	Timestamp time.Time       `json:"timestamp"`
	Direction Direction       `json:"direction"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Envelope  json.RawMessage `json:"envelope,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Outcome   Outcome         `json:"outcome"`
}

// Logger appends Records to an NDJSON file. The zero value is not usable;
// construct with Open.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	enc     *json.Encoder
	logger  *zap.Logger
	opened  time.Time
	records uint64
}

// Open opens (creating if needed) the audit log file at path for appending.
// Records are never rewritten or truncated, only appended, so a process
// crash mid-write loses at most the last unflushed record.
func Open(path string, logger *zap.Logger) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: opening log file %q: %w", path, err)
	}
	return &Logger{file: f, enc: json.NewEncoder(f), logger: logger.Named("audit"), opened: time.Now()}, nil
}

// Record appends one record to the log and mirrors it at debug level.
func (l *Logger) Record(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.enc.Encode(rec); err != nil {
		l.logger.Error("audit: failed to write record",
			zap.Error(err), zap.String("direction", string(rec.Direction)), zap.String("outcome", string(rec.Outcome)))
		return
	}
	l.records++
	l.logger.Debug("audit record",
		zap.String("direction", string(rec.Direction)),
		zap.String("from", rec.From),
		zap.String("to", rec.To),
		zap.String("outcome", string(rec.Outcome)),
	)
}

// Close flushes and closes the underlying file, logging a human-readable
// summary of how much was written over the log's lifetime.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if info, err := l.file.Stat(); err == nil {
		l.logger.Info("audit: closing log",
			zap.Uint64("records", l.records),
			zap.String("size", humanize.Bytes(uint64(info.Size()))),
			zap.String("age", humanize.Time(l.opened)),
		)
	}
	return l.file.Close()
}
