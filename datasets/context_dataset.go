package datasets

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// ContextDataset serves the context feature vectors and labels of one split.
// Samples are read from the lookup only when a batch is requested.
type ContextDataset struct {
	Split Split

	// BatchSize used by Yield.
	BatchSize int

	ids       []SampleID
	order     []int
	labels    Labels
	taxonomy  Taxonomy
	assembler *Assembler

	rand *rand.Rand
	pos  int
}

// NewContextDataset builds a dataset over the sorted identifiers of ids.
// Every identifier must have a label record.
func NewContextDataset(split Split, ids IDSet, labels Labels, lookup ContextLookup, dim int, tax Taxonomy) (*ContextDataset, error) {
	asm, err := NewAssembler(AssemblerConfig{
		Modalities: ModalityContext,
		ContextDim: dim,
		Lookup:     lookup,
	})
	if err != nil {
		return nil, err
	}
	sorted := ids.Sorted()
	for _, id := range sorted {
		if _, ok := labels[id]; !ok {
			return nil, &UnknownSampleError{ID: id}
		}
	}
	order := make([]int, len(sorted))
	for i := range order {
		order[i] = i
	}
	return &ContextDataset{
		Split:     split,
		BatchSize: 64,
		ids:       sorted,
		order:     order,
		labels:    labels,
		taxonomy:  tax,
		assembler: asm,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Len returns the number of samples.
func (d *ContextDataset) Len() int { return len(d.ids) }

// Dim is the length of one input vector.
func (d *ContextDataset) Dim() int { return d.assembler.cfg.ContextDim }

// Taxonomy returns the head sizes used to encode labels.
func (d *ContextDataset) Taxonomy() Taxonomy { return d.taxonomy }

// ID returns the identifier at index i.
func (d *ContextDataset) ID(i int) SampleID { return d.ids[i] }

// Example reads a single sample.
func (d *ContextDataset) Example(idx int) ([]float32, *LabelRecord, error) {
	if idx < 0 || idx >= len(d.ids) {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(d.ids))
	}
	b, err := d.Batch([]int{idx})
	if err != nil {
		return nil, nil, err
	}
	rec := &LabelRecord{Pose: b.Pose[0], HumanObject: b.Object[0], HumanHuman: b.Human[0]}
	return b.ContextAt(0), rec, nil
}

// Batch assembles the samples at the given indices, in order.
func (d *ContextDataset) Batch(indices []int) (*Batch, error) {
	ids := make([]SampleID, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(d.ids) {
			return nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(d.ids))
		}
		ids[i] = d.ids[idx]
	}
	return d.assembler.LoadSplit(context.Background(), ids, d.labels)
}

// Shuffle permutes the order in which Yield visits samples.
func (d *ContextDataset) Shuffle(seed int64) {
	d.rand.Seed(seed)
	d.rand.Shuffle(len(d.order), func(i, j int) {
		d.order[i], d.order[j] = d.order[j], d.order[i]
	})
}

// Name returns the name of the dataset.
func (d *ContextDataset) Name() string {
	return "ContextDataset/" + string(d.Split)
}

// Yield returns the next BatchSize samples as gomlx tensors: one input
// [B, Dim] and the three label tensors. It returns io.EOF once the epoch is
// exhausted; the last batch may be short.
func (d *ContextDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.pos >= len(d.order) {
		return nil, nil, nil, io.EOF
	}
	size := d.BatchSize
	if size <= 0 {
		size = 64
	}
	end := min(d.pos+size, len(d.order))
	b, err := d.Batch(d.order[d.pos:end])
	if err != nil {
		return nil, nil, nil, err
	}
	d.pos = end
	inputs, labels, err = b.ToGomlxTensors(d.taxonomy)
	if err != nil {
		return nil, nil, nil, err
	}
	return d, inputs, labels, nil
}

// Reset restarts Yield for a new epoch.
func (d *ContextDataset) Reset() {
	d.pos = 0
}

var _ Dataset = (*ContextDataset)(nil)
