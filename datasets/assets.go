package datasets

import (
	"fmt"
	"path/filepath"
)

// FlowAxis selects the horizontal or vertical optical-flow component.
type FlowAxis string

const (
	FlowX FlowAxis = "x"
	FlowY FlowAxis = "y"
)

// AssetLayout locates the pre-extracted frames of a split.
//
//	<FrameRoot>/<video>_<ts>_<x1>_<y1>_<x2>_<y2>/frames<frame>.jpg
//	<FlowRoot>/<axis>/<video>_<ts>/frame<%06d>.jpg
type AssetLayout struct {
	FrameRoot string
	FlowRoot  string
	// The flow frame of RGB frame f is FlowBase + (f-1)*FlowStride.
	FlowBase   int
	FlowStride int
}

// DefaultLayout is the extraction layout for split under root.
func DefaultLayout(root string, split Split) AssetLayout {
	return AssetLayout{
		FrameRoot:  filepath.Join(root, "foveated_"+string(split)+"_gc"),
		FlowRoot:   filepath.Join(root, "flow_"+string(split)),
		FlowBase:   12,
		FlowStride: 5,
	}
}

// FramePath is the RGB frame file of id.
func (l AssetLayout) FramePath(id SampleID) string {
	dir := id.ClipName() + "_" + id.boxSuffix()
	return filepath.Join(l.FrameRoot, dir, fmt.Sprintf("frames%d.jpg", id.Frame))
}

// FlowFrameIndex maps the RGB frame offset of id to the flow frame number.
func (l AssetLayout) FlowFrameIndex(id SampleID) int {
	return l.FlowBase + (id.Frame-1)*l.FlowStride
}

// FlowPath is the flow image of one axis at flow frame n for the clip of id.
func (l AssetLayout) FlowPath(axis FlowAxis, id SampleID, n int) string {
	return filepath.Join(l.FlowRoot, string(axis), id.ClipName(), fmt.Sprintf("frame%06d.jpg", n))
}
