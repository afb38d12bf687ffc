package simple

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/Noofbiz/avaActions/datasets"
)

// Heads holds the output width of each classification head.
type Heads struct {
	Pose   int
	Object int
	Human  int
}

// Config holds configurable hyperparameters for the MLP model and training.
type Config struct {
	// InputDim is the dimensionality of the input feature vector. If zero,
	// 630 is used.
	InputDim int

	// HiddenSizes is the list of shared hidden layer sizes. Example: []int{64, 32}
	// If empty, a single hidden layer of size 64 will be used.
	HiddenSizes []int

	// Heads defaults to the AVA taxonomy (14 pose, 49 object, 17 human).
	Heads Heads

	// LearningRate used by the optimizer (SGD or Adam).
	LearningRate float64

	// Epochs to train for (default if 0 will be set by NewModel to 10).
	Epochs int

	// BatchSize for mini-batch updates (default if 0 will be set by NewModel to 64).
	BatchSize int

	// Seed controls RNG for weight init and shuffling. If zero, time-based seed is used.
	Seed int64

	// Optimizer selects the optimizer to use: "adam" or "sgd". Default: "adam".
	Optimizer string

	// Adam hyperparameters (used when Optimizer == "adam"; defaults below if zero).
	Beta1   float64
	Beta2   float64
	Epsilon float64

	// ClipNorm is the global gradient norm threshold. Zero disables clipping.
	ClipNorm float32
}

// Target is the encoded label of one example. Pose is a class index within
// the pose head or datasets.NoPose; Object and Human are multi-hot vectors.
type Target struct {
	Pose   int
	Object []float32
	Human  []float32
}

// Dataset is the minimal interface this package requires from a training set.
type Dataset interface {
	Len() int
	// Batch returns inputs and targets for the provided indices.
	Batch(indices []int) ([][]float32, []Target, error)
}

// Prediction holds the head outputs for one example: pose probabilities
// (softmax) and per-class sigmoid scores for the two interaction heads.
type Prediction struct {
	Pose   []float32
	Object []float32
	Human  []float32
}

// Layer is a dense layer with weights of shape [out][in].
type Layer struct {
	W [][]float32
	B []float32
}

func newLayer(rng *rand.Rand, in, out int) Layer {
	limit := float32(math.Sqrt(6.0 / float64(in+out)))
	w := make([][]float32, out)
	for j := range w {
		row := make([]float32, in)
		for i := range row {
			// Xavier/Glorot uniform initialization heuristic
			row[i] = (rng.Float32()*2.0 - 1.0) * limit * 0.5
		}
		w[j] = row
	}
	return Layer{W: w, B: make([]float32, out)}
}

func (l *Layer) forward(in []float32) []float32 {
	out := make([]float32, len(l.B))
	for j, row := range l.W {
		sum := l.B[j]
		for i, v := range in {
			sum += row[i] * v
		}
		out[j] = sum
	}
	return out
}

// accumulate adds the gradients for delta (dLoss/dOut) into g and returns
// dLoss/dIn when wantIn is set.
func (l *Layer) accumulate(g *Layer, in, delta []float32, wantIn bool) []float32 {
	var dIn []float32
	if wantIn {
		dIn = make([]float32, len(in))
	}
	for j, d := range delta {
		if d == 0 {
			continue
		}
		g.B[j] += d
		row := l.W[j]
		grow := g.W[j]
		for i, v := range in {
			grow[i] += d * v
			if wantIn {
				dIn[i] += row[i] * d
			}
		}
	}
	return dIn
}

func zeroLike(l Layer) Layer {
	w := make([][]float32, len(l.W))
	for j := range w {
		w[j] = make([]float32, len(l.W[j]))
	}
	return Layer{W: w, B: make([]float32, len(l.B))}
}

// Model is a multi-task MLP: a shared ReLU trunk feeding a softmax pose head
// and sigmoid human-object and human-human heads. It is implemented in pure
// Go so tests run quickly and deterministically.
type Model struct {
	// Config used for training / initialization.
	Config Config

	trunk []Layer
	// heads in order pose, object, human.
	heads [3]Layer

	rng *rand.Rand
}

// NewModel creates a new Model instance with the provided configuration.
// It initializes weights (small random values) and is ready to train.
func NewModel(cfg Config) (*Model, error) {
	cfg = withDefaults(cfg)
	if cfg.Optimizer != "adam" && cfg.Optimizer != "sgd" {
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Optimizer)
	}
	for _, h := range cfg.HiddenSizes {
		if h <= 0 {
			return nil, fmt.Errorf("hidden size must be positive, got %d", h)
		}
	}

	m := &Model{Config: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
	in := cfg.InputDim
	for _, h := range cfg.HiddenSizes {
		m.trunk = append(m.trunk, newLayer(m.rng, in, h))
		in = h
	}
	m.heads[0] = newLayer(m.rng, in, cfg.Heads.Pose)
	m.heads[1] = newLayer(m.rng, in, cfg.Heads.Object)
	m.heads[2] = newLayer(m.rng, in, cfg.Heads.Human)
	return m, nil
}

func withDefaults(cfg Config) Config {
	if cfg.InputDim == 0 {
		cfg.InputDim = 630
	}
	if len(cfg.HiddenSizes) == 0 {
		cfg.HiddenSizes = []int{64}
	}
	if cfg.Heads == (Heads{}) {
		tax := datasets.DefaultTaxonomy
		cfg.Heads = Heads{Pose: tax.Pose, Object: tax.Object, Human: tax.Human}
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.001
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 10
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 64
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Optimizer == "" {
		cfg.Optimizer = "adam"
	}
	if cfg.Beta1 == 0 {
		cfg.Beta1 = 0.9
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = 0.999
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 1e-8
	}
	return cfg
}

// forward runs the trunk and heads. acts[0] is the input and acts[len-1] the
// shared representation fed to the heads.
func (m *Model) forward(input []float32) (acts [][]float32, logits [3][]float32, err error) {
	if len(input) != m.Config.InputDim {
		return nil, logits, fmt.Errorf("input has dimension %d, want %d", len(input), m.Config.InputDim)
	}
	acts = make([][]float32, 0, len(m.trunk)+1)
	acts = append(acts, input)
	h := input
	for l := range m.trunk {
		h = m.trunk[l].forward(h)
		activationReLU(h)
		acts = append(acts, h)
	}
	for k := range m.heads {
		logits[k] = m.heads[k].forward(h)
	}
	return acts, logits, nil
}

// activationReLU applies ReLU in-place over the slice.
func activationReLU(x []float32) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

func softmax(z []float32) []float32 {
	hi := z[0]
	for _, v := range z[1:] {
		if v > hi {
			hi = v
		}
	}
	out := make([]float32, len(z))
	var sum float64
	for i, v := range z {
		e := math.Exp(float64(v - hi))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

func sigmoid(z float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(z))))
}

func argmax(x []float32) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}
	return best
}

// headLoss returns the loss of one example and fills deltas with dLoss/dLogits.
// A pose of datasets.NoPose contributes no pose loss. The sigmoid heads use
// binary cross-entropy averaged over their classes.
func headLoss(logits [3][]float32, t Target, deltas *[3][]float32) (loss float64, poseHit, poseCounted bool, err error) {
	if len(t.Object) != len(logits[1]) || len(t.Human) != len(logits[2]) {
		return 0, false, false, fmt.Errorf("target widths %d/%d do not match heads %d/%d",
			len(t.Object), len(t.Human), len(logits[1]), len(logits[2]))
	}
	deltas[0] = make([]float32, len(logits[0]))
	if t.Pose != datasets.NoPose {
		if t.Pose < 0 || t.Pose >= len(logits[0]) {
			return 0, false, false, fmt.Errorf("pose class %d outside [0, %d)", t.Pose, len(logits[0]))
		}
		p := softmax(logits[0])
		loss -= math.Log(math.Max(float64(p[t.Pose]), 1e-12))
		copy(deltas[0], p)
		deltas[0][t.Pose] -= 1
		poseCounted = true
		poseHit = argmax(p) == t.Pose
	}
	for k, y := range [2][]float32{t.Object, t.Human} {
		z := logits[k+1]
		d := make([]float32, len(z))
		n := float64(len(z))
		for i, v := range z {
			zv := float64(v)
			loss += (math.Max(zv, 0) - zv*float64(y[i]) + math.Log1p(math.Exp(-math.Abs(zv)))) / n
			d[i] = (sigmoid(v) - y[i]) / float32(n)
		}
		deltas[k+1] = d
	}
	return loss, poseHit, poseCounted, nil
}

// PredictBatch returns model predictions for a batch of inputs.
// It does a purely forward pass (no training).
func (m *Model) PredictBatch(inputs [][]float32) ([]Prediction, error) {
	out := make([]Prediction, len(inputs))
	for i, in := range inputs {
		_, logits, err := m.forward(in)
		if err != nil {
			return nil, err
		}
		p := Prediction{Pose: softmax(logits[0])}
		p.Object = make([]float32, len(logits[1]))
		for j, v := range logits[1] {
			p.Object[j] = sigmoid(v)
		}
		p.Human = make([]float32, len(logits[2]))
		for j, v := range logits[2] {
			p.Human[j] = sigmoid(v)
		}
		out[i] = p
	}
	return out, nil
}

// Evaluate returns the mean loss over ds and the pose accuracy over the rows
// that carry a pose label.
func (m *Model) Evaluate(ds Dataset) (loss, poseAcc float64, err error) {
	if ds == nil || ds.Len() == 0 {
		return 0, 0, errors.New("dataset has no examples")
	}
	var acc accuracy
	var sum float64
	n := ds.Len()
	for start := 0; start < n; start += m.Config.BatchSize {
		end := min(start+m.Config.BatchSize, n)
		inputs, targets, err := ds.Batch(seq(start, end))
		if err != nil {
			return 0, 0, err
		}
		for i, in := range inputs {
			_, logits, err := m.forward(in)
			if err != nil {
				return 0, 0, err
			}
			var deltas [3][]float32
			l, hit, counted, err := headLoss(logits, targets[i], &deltas)
			if err != nil {
				return 0, 0, err
			}
			sum += l
			acc.add(hit, counted)
		}
	}
	return sum / float64(n), acc.value(), nil
}

type accuracy struct{ hits, total int }

func (a *accuracy) add(hit, counted bool) {
	if !counted {
		return
	}
	a.total++
	if hit {
		a.hits++
	}
}

func (a accuracy) value() float64 {
	if a.total == 0 {
		return 0
	}
	return float64(a.hits) / float64(a.total)
}

func seq(start, end int) []int {
	idx := make([]int, end-start)
	for i := range idx {
		idx[i] = start + i
	}
	return idx
}
