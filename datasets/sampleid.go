package datasets

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Separator joins the fields of a sample identifier. It never occurs inside a field.
const Separator = "@"

// Split names a data partition.
type Split string

const (
	SplitTrain      Split = "train"
	SplitValidation Split = "validation"
	SplitTest       Split = "test"
)

// BBox is a person bounding box. Coordinates are kept exactly as they were
// written in the annotation file or directory name.
type BBox struct {
	X1, Y1, X2, Y2 string
}

func (b BBox) fields() []string { return []string{b.X1, b.Y1, b.X2, b.Y2} }

// SampleID addresses one frame of the temporal window around an annotated
// keyframe of one person.
type SampleID struct {
	Video string
	// Timestamp is the keyframe second with leading zeros stripped.
	Timestamp string
	Box       BBox
	// Frame is the 1-based offset inside the temporal window.
	Frame int
}

// NewSampleID builds an identifier from raw fields. The timestamp has its
// leading zeros stripped.
func NewSampleID(video, timestamp string, box BBox, frame int) (SampleID, error) {
	id := SampleID{Video: video, Timestamp: StripTimestamp(timestamp), Box: box, Frame: frame}
	if err := id.Validate(); err != nil {
		return SampleID{}, err
	}
	return id, nil
}

// StripTimestamp removes the leading zeros of a keyframe timestamp, so
// "000902" becomes "902" and "0000" becomes "".
func StripTimestamp(ts string) string {
	return strings.TrimLeft(ts, "0")
}

// Validate checks the separator-collision invariant.
func (id SampleID) Validate() error {
	if id.Video == "" {
		return &SampleIDError{Input: id.String(), Reason: "empty video name"}
	}
	for _, f := range append([]string{id.Video, id.Timestamp}, id.Box.fields()...) {
		if strings.Contains(f, Separator) {
			return &SampleIDError{Input: f, Reason: "field contains the separator " + Separator}
		}
	}
	if id.Frame < 1 {
		return &SampleIDError{Input: id.String(), Reason: "frame offset must be positive"}
	}
	return nil
}

// String renders video@timestamp@x1@y1@x2@y2@frame.
func (id SampleID) String() string {
	parts := make([]string, 0, 7)
	parts = append(parts, id.Video, id.Timestamp)
	parts = append(parts, id.Box.fields()...)
	parts = append(parts, strconv.Itoa(id.Frame))
	return strings.Join(parts, Separator)
}

// ParseSampleID is the inverse of String.
func ParseSampleID(s string) (SampleID, error) {
	parts := strings.Split(s, Separator)
	if len(parts) != 7 {
		return SampleID{}, &SampleIDError{Input: s, Reason: "want 7 fields, got " + strconv.Itoa(len(parts))}
	}
	frame, err := strconv.Atoi(parts[6])
	if err != nil || strconv.Itoa(frame) != parts[6] {
		return SampleID{}, &SampleIDError{Input: s, Reason: "frame offset is not a canonical integer"}
	}
	id := SampleID{
		Video:     parts[0],
		Timestamp: parts[1],
		Box:       BBox{X1: parts[2], Y1: parts[3], X2: parts[4], Y2: parts[5]},
		Frame:     frame,
	}
	if err := id.Validate(); err != nil {
		return SampleID{}, err
	}
	return id, nil
}

// ClipName is the name of the pre-extracted clip directory: video_timestamp.
func (id SampleID) ClipName() string {
	return id.Video + "_" + id.Timestamp
}

// ContextKey is the key of the pre-built context-feature lookup:
// clip@x1@y1@x2@y2 with the coordinates re-formatted as floats.
func (id SampleID) ContextKey() string {
	parts := []string{id.ClipName()}
	for _, c := range id.Box.fields() {
		parts = append(parts, formatCoord(c))
	}
	return strings.Join(parts, Separator)
}

// boxSuffix is x1_y1_x2_y2 with float-formatted coordinates, used in frame paths.
func (id SampleID) boxSuffix() string {
	parts := make([]string, 0, 4)
	for _, c := range id.Box.fields() {
		parts = append(parts, formatCoord(c))
	}
	return strings.Join(parts, "_")
}

// formatCoord renders a coordinate the way the frame extractor named its
// output: shortest round-trip digits, ".0" for integral values and an
// exponent for very small or very large magnitudes ("0.5", "1.0", "1e-05").
// Unparsable input is returned unchanged.
func formatCoord(s string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return s
	}
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	out := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(out, ".") {
		out += ".0"
	}
	return out
}

// IDSet is a deduplicated set of sample identifiers.
type IDSet map[SampleID]struct{}

// Add inserts id.
func (s IDSet) Add(id SampleID) { s[id] = struct{}{} }

// Has reports whether id is in the set.
func (s IDSet) Has(id SampleID) bool {
	_, ok := s[id]
	return ok
}

// Len returns the set size.
func (s IDSet) Len() int { return len(s) }

// Sorted returns the identifiers ordered by their string form.
func (s IDSet) Sorted() []SampleID {
	ids := make([]SampleID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Partition maps a split to its identifiers.
type Partition map[Split]IDSet
