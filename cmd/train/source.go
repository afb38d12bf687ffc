package main

import (
	"fmt"

	"github.com/cheggaaa/pb/v3"

	"github.com/Noofbiz/avaActions/datasets"
	"github.com/Noofbiz/avaActions/simple"
)

// precomputeChunk is the number of samples assembled per call while
// precomputing a split.
const precomputeChunk = 1024

// memoryDataset holds a fully decoded split and adapts it to simple.Dataset.
type memoryDataset struct {
	inputs  [][]float32
	targets []simple.Target
}

func (m *memoryDataset) Len() int { return len(m.inputs) }

func (m *memoryDataset) Batch(indices []int) ([][]float32, []simple.Target, error) {
	in := make([][]float32, len(indices))
	ta := make([]simple.Target, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(m.inputs) {
			return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(m.inputs))
		}
		in[i] = m.inputs[idx]
		ta[i] = m.targets[idx]
	}
	return in, ta, nil
}

// precompute decodes every sample of ds once so training epochs do not
// re-parse the context payloads. bar may be nil.
func precompute(ds *datasets.ContextDataset, bar *pb.ProgressBar) (*memoryDataset, error) {
	tax := ds.Taxonomy()
	n := ds.Len()
	out := &memoryDataset{
		inputs:  make([][]float32, 0, n),
		targets: make([]simple.Target, 0, n),
	}
	for start := 0; start < n; start += precomputeChunk {
		end := min(start+precomputeChunk, n)
		idx := make([]int, end-start)
		for i := range idx {
			idx[i] = start + i
		}
		b, err := ds.Batch(idx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ds.Name(), err)
		}
		for i := 0; i < b.N; i++ {
			t, err := target(b.Pose[i], b.Object[i], b.Human[i], tax)
			if err != nil {
				return nil, fmt.Errorf("%s: sample %s: %w", ds.Name(), ds.ID(start+i), err)
			}
			out.inputs = append(out.inputs, append([]float32(nil), b.ContextAt(i)...))
			out.targets = append(out.targets, t)
		}
		if bar != nil {
			bar.Add(b.N)
		}
	}
	return out, nil
}

func target(pose int, object, human []int, tax datasets.Taxonomy) (simple.Target, error) {
	enc, err := datasets.EncodeTargets([]int{pose}, [][]int{object}, [][]int{human}, tax)
	if err != nil {
		return simple.Target{}, err
	}
	return simple.Target{Pose: pose, Object: enc.Object, Human: enc.Human}, nil
}
