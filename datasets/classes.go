package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Column names of the AVA action list.
const (
	ColumnLabelID   = "label_id"
	ColumnLabelName = "label_name"
	ColumnLabelType = "label_type"
)

// Label types of the three task heads.
const (
	TypePersonMovement     = "PERSON_MOVEMENT"
	TypeObjectManipulation = "OBJECT_MANIPULATION"
	TypePersonInteraction  = "PERSON_INTERACTION"
)

// ClassDescriptor is the action taxonomy loaded column-major from a CSV:
// Values[column][i] is the value of that column for the i-th class.
type ClassDescriptor struct {
	// Columns holds the header names in file order.
	Columns []string
	Values  map[string][]string
}

// LoadClasses reads a class descriptor CSV. The header row names the columns
// and every following row describes one class.
func LoadClasses(path string) (*ClassDescriptor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open class descriptor: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &MalformedDescriptorError{Path: path, Reason: "empty file"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	d := &ClassDescriptor{
		Columns: make([]string, len(header)),
		Values:  make(map[string][]string, len(header)),
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := d.Values[h]; dup {
			return nil, &MalformedDescriptorError{Path: path, Row: 1, Reason: fmt.Sprintf("duplicate column %q", h)}
		}
		d.Columns[i] = h
		d.Values[h] = []string{}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read class row: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if len(record) != len(header) {
			return nil, &MalformedDescriptorError{
				Path:   path,
				Row:    line,
				Reason: fmt.Sprintf("row has %d fields, header has %d", len(record), len(header)),
			}
		}
		for i, v := range record {
			col := d.Columns[i]
			d.Values[col] = append(d.Values[col], strings.TrimSpace(v))
		}
	}

	if _, ok := d.Values[ColumnLabelID]; ok {
		if _, err := d.IDs(); err != nil {
			return nil, &MalformedDescriptorError{Path: path, Reason: err.Error()}
		}
	}
	return d, nil
}

// Len returns the number of classes.
func (d *ClassDescriptor) Len() int {
	if len(d.Columns) == 0 {
		return 0
	}
	return len(d.Values[d.Columns[0]])
}

// Column returns the values of one column.
func (d *ClassDescriptor) Column(name string) ([]string, bool) {
	v, ok := d.Values[name]
	return v, ok
}

// IDs parses the label_id column. The ids must be exactly 1..Len() in order.
func (d *ClassDescriptor) IDs() ([]int, error) {
	col, ok := d.Values[ColumnLabelID]
	if !ok {
		return nil, fmt.Errorf("no %s column", ColumnLabelID)
	}
	ids := make([]int, len(col))
	for i, s := range col {
		id, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("label id %q is not an integer", s)
		}
		if id != i+1 {
			return nil, fmt.Errorf("label id %d at position %d, want %d", id, i+1, i+1)
		}
		ids[i] = id
	}
	return ids, nil
}

// Names returns the label_name column, or nil if absent.
func (d *ClassDescriptor) Names() []string {
	return d.Values[ColumnLabelName]
}

// CountByType counts classes per label_type.
func (d *ClassDescriptor) CountByType() map[string]int {
	counts := make(map[string]int)
	for _, t := range d.Values[ColumnLabelType] {
		counts[t]++
	}
	return counts
}
