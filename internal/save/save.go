// Package save persists the full market state — every stock with its
// retained history, the shared PRNG checkpoint, and save metadata — through
// interchangeable on-disk formats. Loading is all-or-nothing: a malformed
// file never installs partial state.
package save

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnsupportedFormat is returned when no converter handles a file's
// extension.
var ErrUnsupportedFormat = errors.New("save format not supported")

// RNGState is the serialized PRNG checkpoint: a seed index plus the
// fixed-size array of 32-bit state words.
type RNGState struct {
	Index int
	Words []uint32
}

// Meta is the auxiliary save metadata block.
type Meta struct {
	SavedAt     time.Time
	GameDate    time.Time // in-game calendar day of the save
	NextStockID int
}

// Row is one persisted stock record for one date: the live trading day or
// a retained historical day. Identity fields are denormalized onto every
// row. Optional fields are pointers; absent means absent, never zero.
type Row struct {
	ID        int
	CompanyID int
	Name      string
	Symbol    string
	Date      time.Time

	Price      float64
	Open       float64
	Close      *float64
	High       float64
	Low        float64
	Volatility float64

	TrendPct   *float64
	TrendStart *float64
	TrendEnd   *float64
	TrendSteps *int
	// TrendStep is the elapsed step count, set on the live row only. It
	// cannot be rederived from the cent-rounded price once the per-step
	// increment drops below half a cent.
	TrendStep *int

	RollingAvg float64
}

// Snapshot is everything a save file holds. The RNG checkpoint comes
// first so a loader can restore the generator before anything that might
// draw from it.
type Snapshot struct {
	RNG  RNGState
	Meta Meta
	Rows []Row
}

// Converter is the pluggable serialization strategy.
type Converter interface {
	Save(path string, snap *Snapshot) error
	Load(path string) (*Snapshot, error)
}

// ForPath selects a converter by file extension: .csv for the delimited
// text format, .dat for the binary format.
func ForPath(path string) (Converter, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return TextConverter{}, nil
	case ".dat":
		return BinaryConverter{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}
