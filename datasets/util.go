package datasets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

func parseFloat32(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

// annotationRow is one line of an AVA annotation CSV:
// video, timestamp, x1, y1, x2, y2[, action, ...].
type annotationRow struct {
	Line      int
	Video     string
	Timestamp string
	Box       BBox
	// Action is empty when the file has no action column.
	Action string
}

// walkAnnotations streams an annotation CSV (no header) and calls fn for
// every row. Rows need at least minFields columns.
func walkAnnotations(path string, minFields int, fn func(annotationRow) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open annotations: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			line := 0
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.Line
			}
			return &RowError{Path: path, Line: line, Err: err}
		}
		line, _ := reader.FieldPos(0)
		if len(record) < minFields {
			return &RowError{Path: path, Line: line, Err: fmt.Errorf("want at least %d fields, got %d", minFields, len(record))}
		}
		row := annotationRow{
			Line:      line,
			Video:     strings.TrimSpace(record[0]),
			Timestamp: strings.TrimSpace(record[1]),
			Box: BBox{
				X1: strings.TrimSpace(record[2]),
				Y1: strings.TrimSpace(record[3]),
				X2: strings.TrimSpace(record[4]),
				Y2: strings.TrimSpace(record[5]),
			},
		}
		if len(record) > 6 {
			row.Action = strings.TrimSpace(record[6])
		}
		if err := fn(row); err != nil {
			var rerr *RowError
			if errors.As(err, &rerr) {
				return err
			}
			return &RowError{Path: path, Line: line, Err: err}
		}
	}
}
