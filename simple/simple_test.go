package simple

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Noofbiz/avaActions/datasets"
)

// mockDataset implements the minimal Dataset interface required by the trainer.
type mockDataset struct {
	inputs  [][]float32
	targets []Target
}

func (m *mockDataset) Len() int { return len(m.inputs) }

func (m *mockDataset) Batch(indices []int) ([][]float32, []Target, error) {
	in := make([][]float32, len(indices))
	ta := make([]Target, len(indices))
	for i, idx := range indices {
		in[i] = m.inputs[idx]
		ta[i] = m.targets[idx]
	}
	return in, ta, nil
}

var testHeads = Heads{Pose: 3, Object: 2, Human: 1}

func bit(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

// synthDataset builds a separable problem: pose is the argmax of the first
// three features, the interaction heads are thresholds. Every fifth row has
// no pose label.
func synthDataset(n int, seed int64) *mockDataset {
	rng := rand.New(rand.NewSource(seed))
	ds := &mockDataset{}
	for i := 0; i < n; i++ {
		x := []float32{rng.Float32(), rng.Float32(), rng.Float32(), rng.Float32()}
		pose := 0
		for k := 1; k < 3; k++ {
			if x[k] > x[pose] {
				pose = k
			}
		}
		if i%5 == 0 {
			pose = datasets.NoPose
		}
		ds.inputs = append(ds.inputs, x)
		ds.targets = append(ds.targets, Target{
			Pose:   pose,
			Object: []float32{bit(x[3] > 0.5), bit(x[0] > 0.5)},
			Human:  []float32{bit(x[1] > x[2])},
		})
	}
	return ds
}

func testConfig() Config {
	return Config{
		InputDim:     4,
		HiddenSizes:  []int{16},
		Heads:        testHeads,
		LearningRate: 0.01,
		Epochs:       40,
		BatchSize:    16,
		Seed:         42,
		ClipNorm:     5,
	}
}

// TestModelTrainWithMockDataset verifies the trainer reduces the loss on a
// synthetic dataset and checkpoints the best epoch.
func TestModelTrainWithMockDataset(t *testing.T) {
	train := synthDataset(200, 1)
	val := synthDataset(60, 2)

	model, err := NewModel(testConfig())
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	lossBefore, _, err := model.Evaluate(val)
	if err != nil {
		t.Fatalf("Evaluate(before) error: %v", err)
	}

	ckpt := filepath.Join(t.TempDir(), "out", "context_mlp16.gob")
	epochs := 0
	h, err := model.TrainWithDataset(train, val, TrainOptions{
		CheckpointPath: ckpt,
		OnEpoch:        func(int, *History) { epochs++ },
	})
	if err != nil {
		t.Fatalf("TrainWithDataset error: %v", err)
	}
	if h.Epochs() != 40 || len(h.ValLoss) != 40 || epochs != 40 {
		t.Fatalf("unexpected history length: loss=%d val=%d callbacks=%d", h.Epochs(), len(h.ValLoss), epochs)
	}

	lossAfter, acc, err := model.Evaluate(val)
	if err != nil {
		t.Fatalf("Evaluate(after) error: %v", err)
	}
	t.Logf("val loss before=%.4f after=%.4f pose acc=%.3f", lossBefore, lossAfter, acc)
	if !(lossAfter < lossBefore) {
		t.Fatalf("expected loss to decrease: before=%.6f after=%.6f", lossBefore, lossAfter)
	}
	for i, l := range h.Loss {
		if math.IsNaN(l) || math.IsInf(l, 0) {
			t.Fatalf("non-finite loss at epoch %d", i)
		}
	}

	best := h.ValLoss[h.BestEpoch]
	for _, l := range h.ValLoss {
		if l < best {
			t.Fatalf("BestEpoch %d is not the minimum of %v", h.BestEpoch, h.ValLoss)
		}
	}

	restored, err := LoadCheckpoint(ckpt)
	if err != nil {
		t.Fatalf("LoadCheckpoint error: %v", err)
	}
	restoredLoss, _, err := restored.Evaluate(val)
	if err != nil {
		t.Fatalf("Evaluate(restored) error: %v", err)
	}
	if math.Abs(restoredLoss-best) > 1e-9 {
		t.Fatalf("checkpoint loss %.9f, want best val loss %.9f", restoredLoss, best)
	}
}

func TestNoPoseRowsLeavePoseHeadUntouched(t *testing.T) {
	ds := synthDataset(40, 3)
	for i := range ds.targets {
		ds.targets[i].Pose = datasets.NoPose
	}
	for _, opt := range []string{"adam", "sgd"} {
		cfg := testConfig()
		cfg.Epochs = 3
		cfg.Optimizer = opt
		model, err := NewModel(cfg)
		if err != nil {
			t.Fatalf("NewModel error: %v", err)
		}
		before := cloneLayer(model.heads[0])
		if _, err := model.TrainWithDataset(ds, nil, TrainOptions{}); err != nil {
			t.Fatalf("TrainWithDataset error: %v", err)
		}
		if !reflect.DeepEqual(before, model.heads[0]) {
			t.Fatalf("%s: pose head changed although no row has a pose label", opt)
		}

		loss, acc, err := model.Evaluate(ds)
		if err != nil {
			t.Fatalf("Evaluate error: %v", err)
		}
		model.heads[0].W[0][0] += 10
		loss2, _, err := model.Evaluate(ds)
		if err != nil {
			t.Fatalf("Evaluate error: %v", err)
		}
		if loss != loss2 || acc != 0 {
			t.Fatalf("%s: pose head affects loss: %v vs %v (acc %v)", opt, loss, loss2, acc)
		}
	}
}

func cloneLayer(l Layer) Layer {
	c := zeroLike(l)
	for j := range l.W {
		copy(c.W[j], l.W[j])
	}
	copy(c.B, l.B)
	return c
}

func TestPredictBatch(t *testing.T) {
	model, err := NewModel(testConfig())
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	preds, err := model.PredictBatch([][]float32{{0.1, 0.2, 0.3, 0.4}})
	if err != nil {
		t.Fatalf("PredictBatch error: %v", err)
	}
	p := preds[0]
	if len(p.Pose) != 3 || len(p.Object) != 2 || len(p.Human) != 1 {
		t.Fatalf("unexpected prediction widths: %d %d %d", len(p.Pose), len(p.Object), len(p.Human))
	}
	var sum float32
	for _, v := range p.Pose {
		sum += v
	}
	if math.Abs(float64(sum)-1) > 1e-5 {
		t.Fatalf("pose probabilities sum to %v", sum)
	}
	if _, err := model.PredictBatch([][]float32{{1, 2}}); err == nil {
		t.Fatalf("expected error for wrong input dimension")
	}
}

func TestNewModelDefaultsAndValidation(t *testing.T) {
	model, err := NewModel(Config{Seed: 1})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	cfg := model.Config
	if cfg.InputDim != 630 || cfg.BatchSize != 64 || cfg.Optimizer != "adam" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Heads != (Heads{Pose: 14, Object: 49, Human: 17}) {
		t.Fatalf("unexpected default heads: %+v", cfg.Heads)
	}
	if _, err := NewModel(Config{Optimizer: "rmsprop"}); err == nil {
		t.Fatalf("expected error for unknown optimizer")
	}
	if _, err := NewModel(Config{HiddenSizes: []int{8, 0}}); err == nil {
		t.Fatalf("expected error for zero hidden size")
	}
}

func TestClipGlobalNorm(t *testing.T) {
	grads := [][]float32{{3}, {4}}
	clipGlobalNorm(grads, 1)
	if math.Abs(float64(grads[0][0])-0.6) > 1e-6 || math.Abs(float64(grads[1][0])-0.8) > 1e-6 {
		t.Fatalf("unexpected clipped grads %v", grads)
	}
	grads = [][]float32{{0.1}}
	clipGlobalNorm(grads, 1)
	if grads[0][0] != 0.1 {
		t.Fatalf("grads under the threshold must not change")
	}
}

func TestHistoryFiles(t *testing.T) {
	dir := t.TempDir()
	h := &History{
		Loss:            []float64{1.2, 0.9, 0.7},
		ValLoss:         []float64{1.3, 1.0, 1.1},
		PoseAccuracy:    []float64{0.2, 0.4, 0.5},
		ValPoseAccuracy: []float64{0.1, 0.3, 0.3},
		BestEpoch:       1,
	}
	path := filepath.Join(dir, "contextHistory_32")
	if err := SaveHistory(path, h); err != nil {
		t.Fatalf("SaveHistory error: %v", err)
	}
	got, err := LoadHistory(path)
	if err != nil {
		t.Fatalf("LoadHistory error: %v", err)
	}
	if !reflect.DeepEqual(got, h) {
		t.Fatalf("history mismatch: %+v", got)
	}

	png := filepath.Join(dir, "plots", "contextHistory_32.png")
	if err := PlotHistory(h, png); err != nil {
		t.Fatalf("PlotHistory error: %v", err)
	}
	if st, err := os.Stat(png); err != nil || st.Size() == 0 {
		t.Fatalf("expected non-empty PNG, err=%v", err)
	}
	if err := PlotHistory(&History{}, png); err == nil {
		t.Fatalf("expected error for empty history")
	}
}

func TestLoadCheckpointRejectsMismatch(t *testing.T) {
	model, err := NewModel(testConfig())
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "m.gob")
	model.trunk[0].W = model.trunk[0].W[:3]
	if err := SaveCheckpoint(path, model); err != nil {
		t.Fatalf("SaveCheckpoint error: %v", err)
	}
	if _, err := LoadCheckpoint(path); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
	if _, err := LoadCheckpoint(filepath.Join(t.TempDir(), "missing.gob")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
