package datasets

import (
	"errors"
	"fmt"
)

// ErrMissingAsset is matched by every *MissingAssetError via errors.Is.
var ErrMissingAsset = errors.New("missing asset")

// MalformedDescriptorError reports a class descriptor whose rows disagree
// with its header or whose label ids are not 1..N ascending.
type MalformedDescriptorError struct {
	Path   string
	Row    int // 1-based CSV line, 0 when the problem is not tied to a row
	Reason string
}

func (e *MalformedDescriptorError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("malformed class descriptor %s (line %d): %s", e.Path, e.Row, e.Reason)
	}
	return fmt.Sprintf("malformed class descriptor %s: %s", e.Path, e.Reason)
}

// SampleIDError is returned when a sample identifier cannot be built or parsed.
type SampleIDError struct {
	Input  string
	Reason string
}

func (e *SampleIDError) Error() string {
	return fmt.Sprintf("invalid sample id %q: %s", e.Input, e.Reason)
}

// DirNameError is returned for a test-split directory whose name does not
// encode video_timestamp_x1_y1_x2_y2.
type DirNameError struct {
	Name   string
	Reason string
}

func (e *DirNameError) Error() string {
	return fmt.Sprintf("malformed sample directory name %q: %s", e.Name, e.Reason)
}

// RowError wraps a problem with one line of an annotation file.
type RowError struct {
	Path string
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s line %d: %v", e.Path, e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ActionCodeError is returned for an action code outside the taxonomy.
type ActionCodeError struct {
	Code  int
	Total int
}

func (e *ActionCodeError) Error() string {
	return fmt.Sprintf("action code %d outside [1,%d]", e.Code, e.Total)
}

// UnknownSampleError is returned when an identifier has no label record.
type UnknownSampleError struct {
	ID SampleID
}

func (e *UnknownSampleError) Error() string {
	return fmt.Sprintf("sample %s is not part of the labelled partition", e.ID)
}

// MissingAssetError reports a required frame file or context row that does
// not exist.
type MissingAssetError struct {
	Kind string // "rgb frame" or "context vector"
	ID   SampleID
	Ref  string // file path or lookup key
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("missing %s for sample %s: %s", e.Kind, e.ID, e.Ref)
}

func (e *MissingAssetError) Is(target error) bool { return target == ErrMissingAsset }

// ContextPayloadError is returned when a context payload does not hold the
// expected number of numeric values.
type ContextPayloadError struct {
	Key    string
	Want   int
	Got    int
	Reason string
}

func (e *ContextPayloadError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("context payload %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("context payload %q: want %d values, got %d", e.Key, e.Want, e.Got)
}

// ShapeError is returned when a decoded image does not match the batch
// dimensions and resizing is disabled.
type ShapeError struct {
	Path         string
	WantW, WantH int
	GotW, GotH   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("image %s is %dx%d, batch expects %dx%d", e.Path, e.GotW, e.GotH, e.WantW, e.WantH)
}
