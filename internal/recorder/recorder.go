// Package recorder writes daily closes and save events to an external
// store for out-of-process analysis. It is strictly write-only telemetry:
// the simulation never reads it back, and a disabled recorder costs
// nothing.
package recorder

import (
	"context"
	"strings"
	"time"

	"github.com/ndrandal/stocksim/internal/engine"
)

// Recorder receives day-rollover and save events.
type Recorder interface {
	// RecordDaily stores one day's closes for every stock.
	RecordDaily(ctx context.Context, date time.Time, closes []engine.DailyClose) error
	// RecordSave notes that a save file was written.
	RecordSave(ctx context.Context, path string, savedAt time.Time, stocks int) error
	Close(ctx context.Context) error
}

// Open selects a backend from the URI: empty disables recording,
// mongodb URIs get the MongoDB backend, anything else is treated as a
// SQLite file path.
func Open(ctx context.Context, uri string) (Recorder, error) {
	switch {
	case uri == "":
		return Noop{}, nil
	case strings.HasPrefix(uri, "mongodb://"), strings.HasPrefix(uri, "mongodb+srv://"):
		return OpenMongo(ctx, uri)
	default:
		return OpenSQLite(uri)
	}
}

// Noop is the disabled recorder.
type Noop struct{}

func (Noop) RecordDaily(context.Context, time.Time, []engine.DailyClose) error { return nil }
func (Noop) RecordSave(context.Context, string, time.Time, int) error          { return nil }
func (Noop) Close(context.Context) error                                       { return nil }
