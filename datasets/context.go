package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultContextDim is the length of a context feature vector.
const DefaultContextDim = 720

// ContextLookup maps SampleID.ContextKey() to a space-delimited feature row.
type ContextLookup map[string]string

// LoadContextLookup reads key,payload rows. A repeated key keeps its last payload.
func LoadContextLookup(path string) (ContextLookup, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open context features: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 2

	lookup := make(ContextLookup)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		lookup[strings.TrimSpace(record[0])] = record[1]
	}
	return lookup, nil
}

// ParseContextVector splits a payload on whitespace into exactly dim values.
func ParseContextVector(key, payload string, dim int) ([]float32, error) {
	vec := make([]float32, dim)
	if err := parseContextInto(vec, key, payload); err != nil {
		return nil, err
	}
	return vec, nil
}

func parseContextInto(dst []float32, key, payload string) error {
	fields := strings.Fields(payload)
	if len(fields) != len(dst) {
		return &ContextPayloadError{Key: key, Want: len(dst), Got: len(fields)}
	}
	for i, f := range fields {
		v, err := parseFloat32(f)
		if err != nil {
			return &ContextPayloadError{Key: key, Reason: fmt.Sprintf("value %d: %v", i, err)}
		}
		dst[i] = v
	}
	return nil
}
