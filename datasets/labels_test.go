package datasets

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func resolveFixture(t *testing.T, rows []string, strict bool, extra ...string) (Labels, ResolveStats, error) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "train.csv")
	writeCSV(t, path, "", rows)
	ids, err := SampleIDs(path, ModeAnnotations)
	if err != nil {
		t.Fatalf("SampleIDs: %v", err)
	}
	annotations := path
	if len(extra) > 0 {
		annotations = filepath.Join(dir, "annotations.csv")
		writeCSV(t, annotations, "", append(append([]string{}, rows...), extra...))
	}
	r := NewResolver(DefaultTaxonomy)
	r.Strict = strict
	return r.Resolve(Partition{SplitTrain: ids}, SplitTrain, annotations)
}

func TestResolve_PoseScenario(t *testing.T) {
	labels, stats, err := resolveFixture(t, []string{"v1,000010,10,20,30,40,5"}, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(labels) != 5 || stats.Rows != 1 {
		t.Fatalf("expected 5 labels from 1 row, got %d from %d", len(labels), stats.Rows)
	}
	for f := 1; f <= 5; f++ {
		rec := labels[mustID(t, "v1", "10", BBox{"10", "20", "30", "40"}, f)]
		if rec == nil {
			t.Fatalf("frame %d has no record", f)
		}
		if rec.Pose != 4 {
			t.Fatalf("frame %d: pose=%d, want 4", f, rec.Pose)
		}
		if len(rec.HumanObject) != 0 || len(rec.HumanHuman) != 0 {
			t.Fatalf("frame %d: pose row touched interaction sets: %+v", f, rec)
		}
	}
}

func TestResolve_RoutesByRange(t *testing.T) {
	rows := []string{
		"v1,1,0,0,1,1,14",
		"v1,1,0,0,1,1,15",
		"v1,1,0,0,1,1,63",
		"v1,1,0,0,1,1,64",
		"v1,1,0,0,1,1,80",
	}
	labels, _, err := resolveFixture(t, rows, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	rec := labels[mustID(t, "v1", "1", BBox{"0", "0", "1", "1"}, 3)]
	if rec.Pose != 13 {
		t.Fatalf("pose=%d, want 13", rec.Pose)
	}
	if !reflect.DeepEqual(rec.HumanObject, []int{14, 62}) {
		t.Fatalf("human-object=%v, want [14 62]", rec.HumanObject)
	}
	if !reflect.DeepEqual(rec.HumanHuman, []int{63, 79}) {
		t.Fatalf("human-human=%v, want [63 79]", rec.HumanHuman)
	}
}

func TestResolve_InteractionsLeavePoseUnset(t *testing.T) {
	labels, _, err := resolveFixture(t, []string{"v1,1,0,0,1,1,30", "v1,1,0,0,1,1,70"}, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for id, rec := range labels {
		if rec.Pose != NoPose {
			t.Fatalf("%s: pose=%d, want %d", id, rec.Pose, NoPose)
		}
	}
}

func TestResolve_UnannotatedSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ann.csv")
	writeCSV(t, path, "", []string{"v1,1,0,0,1,1,3"})

	lonely := mustID(t, "v2", "7", BBox{"0", "0", "1", "1"}, 2)
	ids := IDSet{lonely: {}}

	labels, stats, err := NewResolver(DefaultTaxonomy).Resolve(Partition{SplitValidation: ids}, SplitValidation, path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	rec := labels[lonely]
	if rec.Pose != NoPose || len(rec.HumanObject) != 0 || len(rec.HumanHuman) != 0 {
		t.Fatalf("expected empty record, got %+v", rec)
	}
	if stats.Dropped != 5 {
		t.Fatalf("expected 5 dropped window ids, got %d", stats.Dropped)
	}
	if _, ok := labels[mustID(t, "v1", "1", BBox{"0", "0", "1", "1"}, 1)]; ok {
		t.Fatalf("rows outside the partition must not add samples")
	}
}

func TestResolve_Strict(t *testing.T) {
	_, _, err := resolveFixture(t, []string{"v1,1,0,0,1,1,3"}, true, "v9,1,0,0,1,1,3")
	var uerr *UnknownSampleError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnknownSampleError, got %v", err)
	}
	if uerr.ID.Video != "v9" {
		t.Fatalf("unexpected id in error: %s", uerr.ID)
	}
}

func TestResolve_PoseLastWriterWins(t *testing.T) {
	labels, stats, err := resolveFixture(t, []string{"v1,1,0,0,1,1,3", "v1,1,0,0,1,1,9"}, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	rec := labels[mustID(t, "v1", "1", BBox{"0", "0", "1", "1"}, 1)]
	if rec.Pose != 8 {
		t.Fatalf("pose=%d, want 8", rec.Pose)
	}
	if stats.PoseConflicts != 5 {
		t.Fatalf("expected 5 conflicts, got %d", stats.PoseConflicts)
	}
}

func TestResolve_BadActionCode(t *testing.T) {
	for _, row := range []string{"v1,1,0,0,1,1,81", "v1,1,0,0,1,1,0", "v1,1,0,0,1,1,walk"} {
		_, _, err := resolveFixture(t, []string{row}, false)
		var rerr *RowError
		if !errors.As(err, &rerr) {
			t.Fatalf("%s: expected RowError, got %v", row, err)
		}
	}
}

func TestResolveLabels_UsesDescriptor(t *testing.T) {
	dir := t.TempDir()
	classes, err := LoadClasses(avaClassesCSV(t, dir))
	if err != nil {
		t.Fatalf("LoadClasses: %v", err)
	}
	path := filepath.Join(dir, "train.csv")
	writeCSV(t, path, "", []string{"v1,1,0,0,1,1,40"})
	ids, err := SampleIDs(path, ModeAnnotations)
	if err != nil {
		t.Fatalf("SampleIDs: %v", err)
	}
	labels, err := ResolveLabels(classes, Partition{SplitTrain: ids}, SplitTrain, path)
	if err != nil {
		t.Fatalf("ResolveLabels: %v", err)
	}
	rec := labels[mustID(t, "v1", "1", BBox{"0", "0", "1", "1"}, 5)]
	if !reflect.DeepEqual(rec.HumanObject, []int{39}) {
		t.Fatalf("human-object=%v, want [39]", rec.HumanObject)
	}
	if _, err := ResolveLabels(classes, Partition{}, SplitTrain, path); err == nil {
		t.Fatalf("expected error for missing split")
	}
}
