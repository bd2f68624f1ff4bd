package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Hrishi-524/DeepOrbit/internal/model"
)

// TelemetryParser parses satellite error CSV exports.
//
// Expected format (column order is free, extra columns are ignored):
//
//	utc_time,x_error (m),y_error (m),z_error (m),satclockerror (m)
//	2024-09-01 00:00:00,0.412,-1.203,0.877,2.941
//
// Rows whose error values do not parse are skipped. A missing header column
// or an unparseable timestamp fails the whole file with a DataFormatError.
type TelemetryParser struct{}

// timeLayouts are tried in order for the utc_time column.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"2006-01-02",
}

func (p *TelemetryParser) Parse(r io.Reader) ([]model.Reading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &model.DataFormatError{Err: errors.New("empty input")}
		}
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	idx, err := indexHeader(header)
	if err != nil {
		return nil, err
	}

	var readings []model.Reading
	lineNum := 1 // header was line 1

	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		reading, err := parseRecord(record, idx, lineNum)
		if err != nil {
			var dfe *model.DataFormatError
			if errors.As(err, &dfe) {
				return nil, err
			}
			// Skip rows with unparseable values (gaps are interpolated later).
			continue
		}
		readings = append(readings, reading)
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})
	return readings, nil
}

// ParseFile opens path and parses it.
func (p *TelemetryParser) ParseFile(path string) ([]model.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	readings, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return readings, nil
}

type headerIndex struct {
	time int
	cols [4]int // x, y, z, clock
}

func indexHeader(header []string) (headerIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	var idx headerIndex
	t, ok := pos[model.TimeColumn]
	if !ok {
		return idx, &model.DataFormatError{Column: model.TimeColumn, Err: errors.New("missing column")}
	}
	idx.time = t

	for i, c := range model.RawColumns {
		p, ok := pos[string(c)]
		if !ok {
			return idx, &model.DataFormatError{Column: string(c), Err: errors.New("missing column")}
		}
		idx.cols[i] = p
	}
	return idx, nil
}

func parseRecord(record []string, idx headerIndex, lineNum int) (model.Reading, error) {
	need := idx.time
	for _, c := range idx.cols {
		need = max(need, c)
	}
	if len(record) <= need {
		return model.Reading{}, fmt.Errorf("line %d: expected at least %d fields, got %d", lineNum, need+1, len(record))
	}

	ts, err := ParseTimestamp(record[idx.time])
	if err != nil {
		return model.Reading{}, &model.DataFormatError{Line: lineNum, Column: model.TimeColumn, Err: err}
	}

	var vals [4]float64
	for i, c := range idx.cols {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[c]), 64)
		if err != nil {
			return model.Reading{}, fmt.Errorf("line %d: parsing %s %q: %w", lineNum, model.RawColumns[i], record[c], err)
		}
		vals[i] = v
	}

	return model.Reading{
		Timestamp:  ts,
		XError:     vals[0],
		YError:     vals[1],
		ZError:     vals[2],
		ClockError: vals[3],
	}, nil
}

// ParseTimestamp parses a utc_time value. Values without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
