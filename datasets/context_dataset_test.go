package datasets

import (
	"errors"
	"io"
	"path/filepath"
	"reflect"
	"testing"
)

func contextFixture(t *testing.T) (IDSet, Labels, ContextLookup) {
	t.Helper()
	dir := t.TempDir()
	ann := filepath.Join(dir, "train.csv")
	writeCSV(t, ann, "", []string{
		"v1,0001,0.1,0.1,0.5,0.5,3",
		"v1,0001,0.1,0.1,0.5,0.5,20",
		"v2,0002,0.2,0.2,0.6,0.6,70",
	})
	ids, err := SampleIDs(ann, ModeAnnotations)
	if err != nil {
		t.Fatalf("SampleIDs: %v", err)
	}
	labels, _, err := NewResolver(DefaultTaxonomy).Resolve(Partition{SplitTrain: ids}, SplitTrain, ann)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	ctxPath := filepath.Join(dir, "XContext_train.csv")
	writeCSV(t, ctxPath, "", []string{
		"v1_1@0.1@0.1@0.5@0.5,1 2 3",
		"v2_2@0.2@0.2@0.6@0.6,4 5 6",
	})
	lookup, err := LoadContextLookup(ctxPath)
	if err != nil {
		t.Fatalf("LoadContextLookup: %v", err)
	}
	return ids, labels, lookup
}

func TestContextDataset_BatchAndExample(t *testing.T) {
	ids, labels, lookup := contextFixture(t)
	ds, err := NewContextDataset(SplitTrain, ids, labels, lookup, 3, DefaultTaxonomy)
	if err != nil {
		t.Fatalf("NewContextDataset: %v", err)
	}
	if ds.Len() != 10 {
		t.Fatalf("expected 10 samples, got %d", ds.Len())
	}
	in, rec, err := ds.Example(0)
	if err != nil {
		t.Fatalf("Example: %v", err)
	}
	if !reflect.DeepEqual(in, []float32{1, 2, 3}) {
		t.Fatalf("unexpected inputs %v", in)
	}
	if rec.Pose != 2 || !reflect.DeepEqual(rec.HumanObject, []int{19}) {
		t.Fatalf("unexpected record %+v", rec)
	}
	b, err := ds.Batch([]int{9, 0})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if !reflect.DeepEqual(b.ContextAt(0), []float32{4, 5, 6}) || !reflect.DeepEqual(b.Human[0], []int{69}) {
		t.Fatalf("unexpected batch row 0: ctx=%v human=%v", b.ContextAt(0), b.Human[0])
	}
	if _, err := ds.Batch([]int{10}); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestContextDataset_Yield(t *testing.T) {
	ids, labels, lookup := contextFixture(t)
	ds, err := NewContextDataset(SplitTrain, ids, labels, lookup, 3, DefaultTaxonomy)
	if err != nil {
		t.Fatalf("NewContextDataset: %v", err)
	}
	ds.BatchSize = 4
	ds.Shuffle(7)

	var sizes []int
	for {
		_, inputs, lab, err := ds.Yield()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Yield: %v", err)
		}
		if len(inputs) != 1 || len(lab) != 3 {
			t.Fatalf("unexpected tensor counts %d/%d", len(inputs), len(lab))
		}
		sizes = append(sizes, inputs[0].Shape().Dimensions[0])
	}
	if !reflect.DeepEqual(sizes, []int{4, 4, 2}) {
		t.Fatalf("unexpected batch sizes %v", sizes)
	}
	ds.Reset()
	if _, _, _, err := ds.Yield(); err != nil {
		t.Fatalf("Yield after Reset: %v", err)
	}
}

func TestNewContextDataset_RequiresLabels(t *testing.T) {
	ids, _, lookup := contextFixture(t)
	_, err := NewContextDataset(SplitTrain, ids, Labels{}, lookup, 3, DefaultTaxonomy)
	var uerr *UnknownSampleError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnknownSampleError, got %v", err)
	}
}

func TestParseContextVector(t *testing.T) {
	v, err := ParseContextVector("k", " 0.5   1e-3 -2 ", 3)
	if err != nil {
		t.Fatalf("ParseContextVector: %v", err)
	}
	if !reflect.DeepEqual(v, []float32{0.5, 0.001, -2}) {
		t.Fatalf("unexpected vector %v", v)
	}
	var perr *ContextPayloadError
	if _, err := ParseContextVector("k", "1 x 3", 3); !errors.As(err, &perr) {
		t.Fatalf("expected ContextPayloadError, got %v", err)
	}
}
