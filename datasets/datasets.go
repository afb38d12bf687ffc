// Package datasets indexes the AVA action dataset and assembles training
// batches for the multi-task action classifier.
//
// The pieces, leaves first:
//
//   - LoadClasses reads the label taxonomy (80 classes split into pose,
//     human-object and human-human groups).
//   - Indexer derives the SampleIDs of a split from an annotation CSV or from
//     the clip directories of an extracted split. Every annotated keyframe box
//     becomes a 5-frame window of identifiers.
//   - Resolver replays the annotation rows and routes each action code to the
//     head it belongs to, producing one LabelRecord per sample.
//   - Assembler loads the RGB frame, the optical-flow stack and the context
//     vector of every sample into flat float32 buffers, plus the label lists.
//
// Batches are plain contiguous buffers with shape metadata; ToGomlxTensors
// converts them for gomlx training loops.
package datasets

import "github.com/gomlx/gomlx/pkg/core/tensors"

// Dataset is implemented by the datasets in this package so they can be fed
// either to the pure-Go trainer (through Batch) or to gomlx's train.Dataset
// loops (through Name/Yield/Reset).
type Dataset interface {
	Len() int
	Batch(indices []int) (*Batch, error)
	Shuffle(seed int64)

	// To implement gomlx's train.Dataset interface
	Name() string
	Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error)
	Reset()
}
