package save

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// BinaryConverter reads and writes the compact binary format. All
// multi-byte fields are big-endian; money is stored as int64 cents so a
// round trip never loses a cent to float formatting.
type BinaryConverter struct{}

var binaryMagic = [4]byte{'S', 'S', 'I', 'M'}

const binaryVersion = 1

// Save writes the snapshot to path in the binary format.
func (BinaryConverter) Save(path string, snap *Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	bw := &binWriter{w: w}

	bw.bytes(binaryMagic[:])
	bw.u8(binaryVersion)

	bw.u16(uint16(snap.RNG.Index))
	bw.u16(uint16(len(snap.RNG.Words)))
	for _, word := range snap.RNG.Words {
		bw.u32(word)
	}

	bw.i64(snap.Meta.SavedAt.Unix())
	bw.i64(snap.Meta.GameDate.Unix())
	bw.i64(int64(snap.Meta.NextStockID))

	bw.u32(uint32(len(snap.Rows)))
	for i := range snap.Rows {
		bw.row(&snap.Rows[i])
	}

	if bw.err != nil {
		return fmt.Errorf("write %s: %w", path, bw.err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Load parses a binary save file. A bad magic, unknown version, or short
// read fails the whole load.
func (BinaryConverter) Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	br := &binReader{r: bufio.NewReader(f)}

	var magic [4]byte
	br.bytes(magic[:])
	if br.err == nil && magic != binaryMagic {
		return nil, fmt.Errorf("parse %s: not a binary save file", path)
	}
	if v := br.u8(); br.err == nil && v != binaryVersion {
		return nil, fmt.Errorf("parse %s: unsupported version %d", path, v)
	}

	snap := &Snapshot{}
	snap.RNG.Index = int(br.u16())
	words := int(br.u16())
	snap.RNG.Words = make([]uint32, words)
	for i := range snap.RNG.Words {
		snap.RNG.Words[i] = br.u32()
	}

	snap.Meta.SavedAt = time.Unix(br.i64(), 0).UTC()
	snap.Meta.GameDate = time.Unix(br.i64(), 0).UTC()
	snap.Meta.NextStockID = int(br.i64())

	count := br.u32()
	if br.err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, br.err)
	}
	snap.Rows = make([]Row, 0, count)
	for i := uint32(0); i < count; i++ {
		row := br.row()
		if br.err != nil {
			return nil, fmt.Errorf("parse %s: row %d: %w", path, i+1, br.err)
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap, nil
}

// binWriter accumulates the first write error instead of returning one
// per call.
type binWriter struct {
	w   io.Writer
	err error
}

func (bw *binWriter) bytes(b []byte) {
	if bw.err != nil {
		return
	}
	_, bw.err = bw.w.Write(b)
}

func (bw *binWriter) u8(v uint8)   { bw.bytes([]byte{v}) }
func (bw *binWriter) u16(v uint16) { bw.bytes(binary.BigEndian.AppendUint16(nil, v)) }
func (bw *binWriter) u32(v uint32) { bw.bytes(binary.BigEndian.AppendUint32(nil, v)) }
func (bw *binWriter) u64(v uint64) { bw.bytes(binary.BigEndian.AppendUint64(nil, v)) }
func (bw *binWriter) i64(v int64)  { bw.u64(uint64(v)) }

func (bw *binWriter) str(s string) {
	bw.u16(uint16(len(s)))
	bw.bytes([]byte(s))
}

func (bw *binWriter) cents(v float64) {
	bw.i64(int64(math.Round(v * 100)))
}

func (bw *binWriter) float(v float64) {
	bw.u64(math.Float64bits(v))
}

func (bw *binWriter) optCents(v *float64) {
	if v == nil {
		bw.u8(0)
		return
	}
	bw.u8(1)
	bw.cents(*v)
}

func (bw *binWriter) row(r *Row) {
	bw.i64(int64(r.ID))
	bw.i64(int64(r.CompanyID))
	bw.str(r.Name)
	bw.str(r.Symbol)
	bw.i64(r.Date.Unix())
	bw.cents(r.Price)
	bw.cents(r.Open)
	bw.optCents(r.Close)
	bw.cents(r.High)
	bw.cents(r.Low)
	bw.float(r.Volatility)
	if r.TrendPct == nil {
		bw.u8(0)
	} else {
		bw.u8(1)
		bw.float(*r.TrendPct)
		bw.cents(*r.TrendStart)
		bw.cents(*r.TrendEnd)
		bw.i64(int64(*r.TrendSteps))
	}
	// Elapsed-step progress carries its own presence byte: history rows
	// snapshot a trend without it.
	if r.TrendStep == nil {
		bw.u8(0)
	} else {
		bw.u8(1)
		bw.i64(int64(*r.TrendStep))
	}
	bw.cents(r.RollingAvg)
}

type binReader struct {
	r   io.Reader
	err error
}

func (br *binReader) bytes(b []byte) {
	if br.err != nil {
		return
	}
	if _, err := io.ReadFull(br.r, b); err != nil {
		br.err = err
	}
}

func (br *binReader) u8() uint8 {
	var b [1]byte
	br.bytes(b[:])
	return b[0]
}

func (br *binReader) u16() uint16 {
	var b [2]byte
	br.bytes(b[:])
	return binary.BigEndian.Uint16(b[:])
}

func (br *binReader) u32() uint32 {
	var b [4]byte
	br.bytes(b[:])
	return binary.BigEndian.Uint32(b[:])
}

func (br *binReader) u64() uint64 {
	var b [8]byte
	br.bytes(b[:])
	return binary.BigEndian.Uint64(b[:])
}

func (br *binReader) i64() int64 { return int64(br.u64()) }

func (br *binReader) str() string {
	n := br.u16()
	b := make([]byte, n)
	br.bytes(b)
	return string(b)
}

func (br *binReader) cents() float64 {
	return float64(br.i64()) / 100
}

func (br *binReader) float() float64 {
	return math.Float64frombits(br.u64())
}

func (br *binReader) optCents() *float64 {
	if br.u8() == 0 {
		return nil
	}
	v := br.cents()
	return &v
}

func (br *binReader) row() Row {
	var r Row
	r.ID = int(br.i64())
	r.CompanyID = int(br.i64())
	r.Name = br.str()
	r.Symbol = br.str()
	r.Date = time.Unix(br.i64(), 0).UTC()
	r.Price = br.cents()
	r.Open = br.cents()
	r.Close = br.optCents()
	r.High = br.cents()
	r.Low = br.cents()
	r.Volatility = br.float()
	if br.u8() == 1 {
		pct := br.float()
		start := br.cents()
		end := br.cents()
		steps := int(br.i64())
		r.TrendPct, r.TrendStart, r.TrendEnd, r.TrendSteps = &pct, &start, &end, &steps
	}
	if br.u8() == 1 {
		step := int(br.i64())
		r.TrendStep = &step
	}
	r.RollingAvg = br.cents()
	return r
}
