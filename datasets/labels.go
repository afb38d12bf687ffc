package datasets

import (
	"fmt"
	"strconv"

	"github.com/Noofbiz/avaActions/logger"
)

// NoPose marks a sample without a pose annotation.
const NoPose = -1

// LabelRecord holds the multi-task targets of one sample. Indices are global
// 0-based class indices (action code - 1).
type LabelRecord struct {
	Pose        int
	HumanObject []int
	HumanHuman  []int
}

// NewLabelRecord returns the empty record: no pose, no interactions.
func NewLabelRecord() *LabelRecord {
	return &LabelRecord{Pose: NoPose, HumanObject: []int{}, HumanHuman: []int{}}
}

// Labels maps every sample of a split to its record.
type Labels map[SampleID]*LabelRecord

// ResolveStats summarises one Resolve pass.
type ResolveStats struct {
	Rows int
	// Dropped counts window identifiers of rows that were not in the partition.
	Dropped int
	// PoseConflicts counts pose overwrites with a different class.
	PoseConflicts int
}

// Resolver replays annotation rows onto the identifiers of a split.
type Resolver struct {
	Taxonomy Taxonomy
	Window   Window
	// Strict turns rows outside the partition into an *UnknownSampleError
	// instead of dropping them.
	Strict bool
}

// NewResolver returns a non-strict resolver for the default window.
func NewResolver(tax Taxonomy) *Resolver {
	return &Resolver{Taxonomy: tax, Window: DefaultWindow}
}

// ResolveLabels resolves split using the taxonomy described by classes.
func ResolveLabels(classes *ClassDescriptor, partition Partition, split Split, annotationPath string) (Labels, error) {
	tax, err := TaxonomyFromClasses(classes)
	if err != nil {
		return nil, err
	}
	labels, _, err := NewResolver(tax).Resolve(partition, split, annotationPath)
	return labels, err
}

// Resolve initialises every identifier of partition[split] to the empty
// record, then routes the action code of each annotation row to the pose,
// human-object or human-human head of its window identifiers. A later pose
// row for the same sample overwrites an earlier one.
func (r *Resolver) Resolve(partition Partition, split Split, annotationPath string) (Labels, ResolveStats, error) {
	var stats ResolveStats
	log := logger.Named("datasets")

	ids, ok := partition[split]
	if !ok {
		return nil, stats, fmt.Errorf("partition has no %q split", split)
	}
	log.Info().Str("split", string(split)).Int("classes", r.Taxonomy.Total()).Int("samples", ids.Len()).Msg("generating labels")

	labels := make(Labels, ids.Len())
	for id := range ids {
		labels[id] = NewLabelRecord()
	}

	err := walkAnnotations(annotationPath, 7, func(row annotationRow) error {
		stats.Rows++
		code, err := strconv.Atoi(row.Action)
		if err != nil {
			return fmt.Errorf("action %q is not an integer", row.Action)
		}
		head, idx, err := r.Taxonomy.Route(code)
		if err != nil {
			return err
		}
		windowIDs, err := r.Window.expand(row.Video, row.Timestamp, row.Box)
		if err != nil {
			return err
		}
		for _, id := range windowIDs {
			rec, ok := labels[id]
			if !ok {
				if r.Strict {
					return &UnknownSampleError{ID: id}
				}
				stats.Dropped++
				continue
			}
			switch head {
			case HeadPose:
				if rec.Pose != NoPose && rec.Pose != idx {
					stats.PoseConflicts++
				}
				rec.Pose = idx
			case HeadObject:
				rec.HumanObject = append(rec.HumanObject, idx)
			case HeadHuman:
				rec.HumanHuman = append(rec.HumanHuman, idx)
			}
		}
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	if stats.Dropped > 0 || stats.PoseConflicts > 0 {
		log.Warn().
			Str("split", string(split)).
			Int("dropped", stats.Dropped).
			Int("pose_conflicts", stats.PoseConflicts).
			Msg("annotation rows did not map cleanly onto the partition")
	}
	return labels, stats, nil
}
