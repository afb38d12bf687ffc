package datasets

import "fmt"

// Head identifies one of the three classifier outputs.
type Head int

const (
	HeadPose Head = iota
	HeadObject
	HeadHuman
)

func (h Head) String() string {
	switch h {
	case HeadPose:
		return "pose"
	case HeadObject:
		return "human-object"
	case HeadHuman:
		return "human-human"
	}
	return fmt.Sprintf("Head(%d)", int(h))
}

// Taxonomy holds the class count of each head. Action codes are numbered
// 1..Total with the pose classes first, then object interactions, then
// human interactions.
type Taxonomy struct {
	Pose   int
	Object int
	Human  int
}

// DefaultTaxonomy is the 80-class AVA split.
var DefaultTaxonomy = Taxonomy{Pose: 14, Object: 49, Human: 17}

// TaxonomyFromClasses counts the label types of a descriptor. It falls back
// to DefaultTaxonomy when the descriptor has no label_type column.
func TaxonomyFromClasses(d *ClassDescriptor) (Taxonomy, error) {
	if d == nil {
		return DefaultTaxonomy, nil
	}
	if _, ok := d.Column(ColumnLabelType); !ok {
		return DefaultTaxonomy, nil
	}
	counts := d.CountByType()
	t := Taxonomy{
		Pose:   counts[TypePersonMovement],
		Object: counts[TypeObjectManipulation],
		Human:  counts[TypePersonInteraction],
	}
	if t.Total() != d.Len() {
		return Taxonomy{}, fmt.Errorf("descriptor has %d classes but only %d have a known label type", d.Len(), t.Total())
	}
	return t, nil
}

// Total is the number of action classes.
func (t Taxonomy) Total() int { return t.Pose + t.Object + t.Human }

// ObjectOffset is the global index of the first object-interaction class.
func (t Taxonomy) ObjectOffset() int { return t.Pose }

// HumanOffset is the global index of the first human-interaction class.
func (t Taxonomy) HumanOffset() int { return t.Pose + t.Object }

// Route maps a 1-based action code to its head and 0-based class index.
func (t Taxonomy) Route(code int) (Head, int, error) {
	switch {
	case code < 1 || code > t.Total():
		return 0, 0, &ActionCodeError{Code: code, Total: t.Total()}
	case code <= t.Pose:
		return HeadPose, code - 1, nil
	case code <= t.Pose+t.Object:
		return HeadObject, code - 1, nil
	default:
		return HeadHuman, code - 1, nil
	}
}
