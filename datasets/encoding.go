package datasets

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// OneHot encodes pose classes as a flat [len(pose) x n] buffer. NoPose rows
// stay all zero.
func OneHot(pose []int, n int) ([]float32, error) {
	out := make([]float32, len(pose)*n)
	for i, p := range pose {
		if p == NoPose {
			continue
		}
		if p < 0 || p >= n {
			return nil, fmt.Errorf("pose class %d at row %d outside [0,%d)", p, i, n)
		}
		out[i*n+p] = 1
	}
	return out, nil
}

// MultiHot encodes label sets holding global class indices as a flat
// [len(sets) x size] buffer, shifting every index down by offset.
func MultiHot(sets [][]int, size, offset int) ([]float32, error) {
	out := make([]float32, len(sets)*size)
	for i, set := range sets {
		for _, g := range set {
			local := g - offset
			if local < 0 || local >= size {
				return nil, fmt.Errorf("class %d at row %d outside [%d,%d)", g, i, offset, offset+size)
			}
			out[i*size+local] = 1
		}
	}
	return out, nil
}

// Targets are the encoded labels of a batch, one flat row-major buffer per head.
type Targets struct {
	Pose   []float32 // N x Taxonomy.Pose, one-hot
	Object []float32 // N x Taxonomy.Object, multi-hot
	Human  []float32 // N x Taxonomy.Human, multi-hot
}

// EncodeTargets one-hot encodes the pose list and multi-hot encodes the
// interaction sets of the given label lists.
func EncodeTargets(pose []int, object, human [][]int, tax Taxonomy) (*Targets, error) {
	if len(pose) != len(object) || len(pose) != len(human) {
		return nil, fmt.Errorf("label lists differ in length: pose=%d object=%d human=%d", len(pose), len(object), len(human))
	}
	p, err := OneHot(pose, tax.Pose)
	if err != nil {
		return nil, fmt.Errorf("pose head: %w", err)
	}
	o, err := MultiHot(object, tax.Object, tax.ObjectOffset())
	if err != nil {
		return nil, fmt.Errorf("human-object head: %w", err)
	}
	h, err := MultiHot(human, tax.Human, tax.HumanOffset())
	if err != nil {
		return nil, fmt.Errorf("human-human head: %w", err)
	}
	return &Targets{Pose: p, Object: o, Human: h}, nil
}

// Targets encodes the labels of the batch.
func (b *Batch) Targets(tax Taxonomy) (*Targets, error) {
	return EncodeTargets(b.Pose, b.Object, b.Human, tax)
}

// ToGomlxTensors converts the batch to gomlx tensors. Inputs hold the loaded
// modalities in the order RGB [N,H,W,3], flow [N,H,W,C], context [N,D];
// labels hold the pose, human-object and human-human targets.
func (b *Batch) ToGomlxTensors(tax Taxonomy) (inputs, labels []*tensors.Tensor, err error) {
	if b.RGB != nil {
		inputs = append(inputs, tensors.FromFlatDataAndDimensions(b.RGB, b.N, b.Height, b.Width, 3))
	}
	if b.Flow != nil {
		inputs = append(inputs, tensors.FromFlatDataAndDimensions(b.Flow, b.N, b.Height, b.Width, b.FlowChannels))
	}
	if b.Context != nil {
		inputs = append(inputs, tensors.FromFlatDataAndDimensions(b.Context, b.N, b.ContextDim))
	}
	t, err := b.Targets(tax)
	if err != nil {
		return nil, nil, err
	}
	labels = t.tensors(b.N, tax)
	return inputs, labels, nil
}

func (t *Targets) tensors(n int, tax Taxonomy) []*tensors.Tensor {
	return []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions(t.Pose, n, tax.Pose),
		tensors.FromFlatDataAndDimensions(t.Object, n, tax.Object),
		tensors.FromFlatDataAndDimensions(t.Human, n, tax.Human),
	}
}
