package datasets

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Window is the range of frame offsets each annotated keyframe expands to.
type Window struct {
	Start, End, Step int
}

// DefaultWindow expands a keyframe into frames 1..5; the keyframe is frame 3.
var DefaultWindow = Window{Start: 1, End: 5, Step: 1}

// Frames lists the offsets of the window, End inclusive.
func (w Window) Frames() []int {
	step := w.Step
	if step <= 0 {
		step = 1
	}
	var frames []int
	for f := w.Start; f <= w.End; f += step {
		frames = append(frames, f)
	}
	return frames
}

// expand builds the window identifiers of one keyframe box.
func (w Window) expand(video, timestamp string, box BBox) ([]SampleID, error) {
	frames := w.Frames()
	ids := make([]SampleID, 0, len(frames))
	for _, f := range frames {
		id, err := NewSampleID(video, timestamp, box, f)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// IndexMode selects where sample identifiers are read from.
type IndexMode int

const (
	// ModeAuto uses ModeDirectory for directories and ModeAnnotations otherwise.
	ModeAuto IndexMode = iota
	// ModeAnnotations reads an annotation CSV.
	ModeAnnotations
	// ModeDirectory lists the clip directories of an extracted split.
	ModeDirectory
)

// Indexer derives the sample identifiers of a split.
type Indexer struct {
	Window Window
}

// NewIndexer returns an Indexer using DefaultWindow.
func NewIndexer() *Indexer {
	return &Indexer{Window: DefaultWindow}
}

// SampleIDs indexes path with the default window.
func SampleIDs(path string, mode IndexMode) (IDSet, error) {
	return NewIndexer().SampleIDs(path, mode)
}

// SampleIDs indexes path according to mode.
func (ix *Indexer) SampleIDs(path string, mode IndexMode) (IDSet, error) {
	if mode == ModeAuto {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		mode = ModeAnnotations
		if info.IsDir() {
			mode = ModeDirectory
		}
	}
	switch mode {
	case ModeAnnotations:
		return ix.FromAnnotations(path)
	case ModeDirectory:
		return ix.FromDirectory(path)
	}
	return nil, fmt.Errorf("unknown index mode %d", mode)
}

// FromAnnotations reads an annotation CSV and emits one identifier per window
// frame for every row. The action column is ignored.
func (ix *Indexer) FromAnnotations(path string) (IDSet, error) {
	set := make(IDSet)
	err := walkAnnotations(path, 6, func(row annotationRow) error {
		ids, err := ix.Window.expand(row.Video, row.Timestamp, row.Box)
		if err != nil {
			return err
		}
		for _, id := range ids {
			set.Add(id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// FromDirectory lists the immediate subdirectories of root. Each name encodes
// video_timestamp_x1_y1_x2_y2 where the video itself may contain underscores.
func (ix *Indexer) FromDirectory(root string) (IDSet, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read sample directory: %w", err)
	}
	cleanRoot := filepath.Clean(root)
	set := make(IDSet)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if filepath.Join(cleanRoot, e.Name()) == cleanRoot {
			continue
		}
		video, timestamp, box, err := ParseClipDirName(e.Name())
		if err != nil {
			return nil, err
		}
		ids, err := ix.Window.expand(video, timestamp, box)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			set.Add(id)
		}
	}
	return set, nil
}

// ParseClipDirName splits video_timestamp_x1_y1_x2_y2. The trailing five
// segments are the fields; everything before them is the video name.
func ParseClipDirName(name string) (video, timestamp string, box BBox, err error) {
	segs := strings.Split(name, "_")
	if len(segs) < 6 {
		return "", "", BBox{}, &DirNameError{Name: name, Reason: fmt.Sprintf("want at least 6 '_' separated segments, got %d", len(segs))}
	}
	n := len(segs)
	video = strings.Join(segs[:n-5], "_")
	if video == "" {
		return "", "", BBox{}, &DirNameError{Name: name, Reason: "empty video name"}
	}
	timestamp = segs[n-5]
	if _, perr := strconv.ParseUint(timestamp, 10, 64); perr != nil {
		return "", "", BBox{}, &DirNameError{Name: name, Reason: fmt.Sprintf("timestamp %q is not a non-negative integer", timestamp)}
	}
	coords := segs[n-4:]
	for _, c := range coords {
		if _, perr := strconv.ParseFloat(c, 64); perr != nil {
			return "", "", BBox{}, &DirNameError{Name: name, Reason: fmt.Sprintf("coordinate %q is not a number", c)}
		}
	}
	box = BBox{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}
	return video, timestamp, box, nil
}
