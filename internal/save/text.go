package save

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// TextConverter reads and writes the human-readable delimited format.
// Field quoting and escaping are handled by encoding/csv; optional fields
// serialize as empty strings, never zero.
//
// Layout: an "rng" record, a "meta" record, a header record, then one
// record per stock per date.
type TextConverter struct{}

var textHeader = []string{
	"id", "company_id", "name", "symbol", "date",
	"price", "open", "close", "high", "low", "volatility",
	"trend_pct", "trend_start", "trend_end", "trend_steps", "trend_step",
	"rolling_avg",
}

// Save writes the snapshot to path as CSV.
func (TextConverter) Save(path string, snap *Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	words := make([]string, len(snap.RNG.Words))
	for i, word := range snap.RNG.Words {
		words[i] = strconv.FormatUint(uint64(word), 10)
	}
	records := [][]string{
		{"rng", strconv.Itoa(snap.RNG.Index), strings.Join(words, " ")},
		{"meta",
			snap.Meta.SavedAt.UTC().Format(time.RFC3339),
			snap.Meta.GameDate.Format(time.DateOnly),
			strconv.Itoa(snap.Meta.NextStockID)},
		textHeader,
	}
	for _, r := range snap.Rows {
		records = append(records, rowToRecord(r))
	}

	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func rowToRecord(r Row) []string {
	return []string{
		strconv.Itoa(r.ID),
		strconv.Itoa(r.CompanyID),
		r.Name,
		r.Symbol,
		r.Date.Format(time.DateOnly),
		money(r.Price),
		money(r.Open),
		optMoney(r.Close),
		money(r.High),
		money(r.Low),
		strconv.FormatFloat(r.Volatility, 'g', -1, 64),
		optFloat(r.TrendPct),
		optMoney(r.TrendStart),
		optMoney(r.TrendEnd),
		optInt(r.TrendSteps),
		optInt(r.TrendStep),
		money(r.RollingAvg),
	}
}

// Load parses a CSV save file. Any malformed record fails the whole load.
func (TextConverter) Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // leading records have their own shapes
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) < 3 {
		return nil, fmt.Errorf("parse %s: truncated file (%d records)", path, len(records))
	}

	snap := &Snapshot{}
	if err := parseRNGRecord(records[0], &snap.RNG); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := parseMetaRecord(records[1], &snap.Meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records[2]) != len(textHeader) || records[2][0] != "id" {
		return nil, fmt.Errorf("parse %s: bad header row", path)
	}

	for i, rec := range records[3:] {
		row, err := recordToRow(rec)
		if err != nil {
			return nil, fmt.Errorf("parse %s: row %d: %w", path, i+1, err)
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap, nil
}

func parseRNGRecord(rec []string, st *RNGState) error {
	if len(rec) != 3 || rec[0] != "rng" {
		return fmt.Errorf("bad rng record")
	}
	index, err := strconv.Atoi(rec[1])
	if err != nil {
		return fmt.Errorf("rng index: %w", err)
	}
	st.Index = index
	for _, field := range strings.Fields(rec[2]) {
		w, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return fmt.Errorf("rng word: %w", err)
		}
		st.Words = append(st.Words, uint32(w))
	}
	return nil
}

func parseMetaRecord(rec []string, m *Meta) error {
	if len(rec) != 4 || rec[0] != "meta" {
		return fmt.Errorf("bad meta record")
	}
	savedAt, err := time.Parse(time.RFC3339, rec[1])
	if err != nil {
		return fmt.Errorf("meta saved-at: %w", err)
	}
	gameDate, err := time.Parse(time.DateOnly, rec[2])
	if err != nil {
		return fmt.Errorf("meta game date: %w", err)
	}
	nextID, err := strconv.Atoi(rec[3])
	if err != nil {
		return fmt.Errorf("meta next id: %w", err)
	}
	m.SavedAt = savedAt
	m.GameDate = gameDate
	m.NextStockID = nextID
	return nil
}

func recordToRow(rec []string) (Row, error) {
	var row Row
	if len(rec) != len(textHeader) {
		return row, fmt.Errorf("got %d fields, want %d", len(rec), len(textHeader))
	}

	var err error
	fail := func(name string, e error) (Row, error) {
		return row, fmt.Errorf("%s: %w", name, e)
	}

	if row.ID, err = strconv.Atoi(rec[0]); err != nil {
		return fail("id", err)
	}
	if row.CompanyID, err = strconv.Atoi(rec[1]); err != nil {
		return fail("company_id", err)
	}
	row.Name = rec[2]
	row.Symbol = rec[3]
	if row.Date, err = time.Parse(time.DateOnly, rec[4]); err != nil {
		return fail("date", err)
	}
	if row.Price, err = strconv.ParseFloat(rec[5], 64); err != nil {
		return fail("price", err)
	}
	if row.Open, err = strconv.ParseFloat(rec[6], 64); err != nil {
		return fail("open", err)
	}
	if row.Close, err = parseOptFloat(rec[7]); err != nil {
		return fail("close", err)
	}
	if row.High, err = strconv.ParseFloat(rec[8], 64); err != nil {
		return fail("high", err)
	}
	if row.Low, err = strconv.ParseFloat(rec[9], 64); err != nil {
		return fail("low", err)
	}
	if row.Volatility, err = strconv.ParseFloat(rec[10], 64); err != nil {
		return fail("volatility", err)
	}
	if row.TrendPct, err = parseOptFloat(rec[11]); err != nil {
		return fail("trend_pct", err)
	}
	if row.TrendStart, err = parseOptFloat(rec[12]); err != nil {
		return fail("trend_start", err)
	}
	if row.TrendEnd, err = parseOptFloat(rec[13]); err != nil {
		return fail("trend_end", err)
	}
	if row.TrendSteps, err = parseOptInt(rec[14]); err != nil {
		return fail("trend_steps", err)
	}
	if row.TrendStep, err = parseOptInt(rec[15]); err != nil {
		return fail("trend_step", err)
	}
	if row.RollingAvg, err = strconv.ParseFloat(rec[16], 64); err != nil {
		return fail("rolling_avg", err)
	}
	return row, nil
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func optMoney(v *float64) string {
	if v == nil {
		return ""
	}
	return money(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func parseOptFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseOptInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
