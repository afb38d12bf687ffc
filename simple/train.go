package simple

import (
	"errors"
	"fmt"
	"math"

	"github.com/Noofbiz/avaActions/logger"
)

// TrainOptions controls a training run.
type TrainOptions struct {
	// CheckpointPath, when set, receives the model each time the monitored
	// loss improves. The monitored loss is the validation loss, or the
	// training loss when no validation set is given.
	CheckpointPath string

	// OnEpoch is called after every epoch with the zero-based epoch index.
	OnEpoch func(epoch int, h *History)
}

// TrainWithDataset trains the model with mini-batches drawn from train and
// evaluates val after every epoch. It returns the per-epoch history.
func (m *Model) TrainWithDataset(train, val Dataset, opts TrainOptions) (*History, error) {
	if train == nil {
		return nil, errors.New("dataset is nil")
	}
	n := train.Len()
	if n == 0 {
		return nil, errors.New("dataset has no examples")
	}
	log := logger.Named("simple")

	opt := m.newOptimizer()
	indices := seq(0, n)
	h := &History{}
	best := math.Inf(1)

	for ep := 0; ep < m.Config.Epochs; ep++ {
		m.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		var sum float64
		var acc accuracy
		for bstart := 0; bstart < n; bstart += m.Config.BatchSize {
			bend := min(bstart+m.Config.BatchSize, n)
			inputs, targets, err := train.Batch(indices[bstart:bend])
			if err != nil {
				return h, fmt.Errorf("epoch %d: %w", ep, err)
			}
			loss, err := m.step(opt, inputs, targets, &acc)
			if err != nil {
				return h, fmt.Errorf("epoch %d: %w", ep, err)
			}
			sum += loss
		}
		h.Loss = append(h.Loss, sum/float64(n))
		h.PoseAccuracy = append(h.PoseAccuracy, acc.value())

		monitored := h.Loss[ep]
		if val != nil && val.Len() > 0 {
			vl, va, err := m.Evaluate(val)
			if err != nil {
				return h, fmt.Errorf("epoch %d validation: %w", ep, err)
			}
			h.ValLoss = append(h.ValLoss, vl)
			h.ValPoseAccuracy = append(h.ValPoseAccuracy, va)
			monitored = vl
		}

		ev := log.Info().Int("epoch", ep+1).Float64("loss", h.Loss[ep]).Float64("pose_acc", h.PoseAccuracy[ep])
		if len(h.ValLoss) > ep {
			ev = ev.Float64("val_loss", h.ValLoss[ep]).Float64("val_pose_acc", h.ValPoseAccuracy[ep])
		}
		ev.Msg("epoch done")

		if monitored < best {
			best = monitored
			h.BestEpoch = ep
			if opts.CheckpointPath != "" {
				if err := SaveCheckpoint(opts.CheckpointPath, m); err != nil {
					return h, err
				}
				log.Debug().Str("path", opts.CheckpointPath).Float64("loss", best).Msg("checkpoint saved")
			}
		}
		if opts.OnEpoch != nil {
			opts.OnEpoch(ep, h)
		}
	}
	return h, nil
}

// step runs forward and backward over one mini-batch, applies the averaged
// gradients and returns the summed loss of the batch.
func (m *Model) step(opt optimizer, inputs [][]float32, targets []Target, acc *accuracy) (float64, error) {
	batchN := len(inputs)
	if batchN == 0 {
		return 0, nil
	}
	if len(targets) != batchN {
		return 0, fmt.Errorf("batch has %d inputs and %d targets", batchN, len(targets))
	}

	gTrunk := make([]Layer, len(m.trunk))
	for l := range m.trunk {
		gTrunk[l] = zeroLike(m.trunk[l])
	}
	var gHeads [3]Layer
	for k := range m.heads {
		gHeads[k] = zeroLike(m.heads[k])
	}

	var sum float64
	for ex, in := range inputs {
		acts, logits, err := m.forward(in)
		if err != nil {
			return 0, err
		}
		var deltas [3][]float32
		loss, hit, counted, err := headLoss(logits, targets[ex], &deltas)
		if err != nil {
			return 0, err
		}
		sum += loss
		acc.add(hit, counted)

		shared := acts[len(acts)-1]
		wantIn := len(m.trunk) > 0
		var delta []float32
		for k := range m.heads {
			d := m.heads[k].accumulate(&gHeads[k], shared, deltas[k], wantIn)
			if delta == nil {
				delta = d
				continue
			}
			for i := range delta {
				delta[i] += d[i]
			}
		}
		for l := len(m.trunk) - 1; l >= 0; l-- {
			// ReLU derivative on the post-activation values
			out := acts[l+1]
			for i := range delta {
				if out[i] <= 0 {
					delta[i] = 0
				}
			}
			delta = m.trunk[l].accumulate(&gTrunk[l], acts[l], delta, l > 0)
		}
	}

	params := m.params()
	grads := collect(gTrunk, gHeads)
	scale := float32(1.0 / float64(batchN))
	for _, g := range grads {
		for i := range g {
			g[i] *= scale
		}
	}
	clipGlobalNorm(grads, m.Config.ClipNorm)
	opt.update(params, grads)
	return sum, nil
}

// params lists every weight row and bias vector in a fixed order.
func (m *Model) params() [][]float32 {
	return collect(m.trunk, m.heads)
}

func collect(trunk []Layer, heads [3]Layer) [][]float32 {
	var out [][]float32
	add := func(l Layer) {
		out = append(out, l.W...)
		out = append(out, l.B)
	}
	for _, l := range trunk {
		add(l)
	}
	for _, l := range heads {
		add(l)
	}
	return out
}

func clipGlobalNorm(grads [][]float32, maxNorm float32) {
	if maxNorm <= 0 {
		return
	}
	var sq float64
	for _, g := range grads {
		for _, v := range g {
			sq += float64(v) * float64(v)
		}
	}
	norm := math.Sqrt(sq)
	if norm <= float64(maxNorm) {
		return
	}
	s := float32(float64(maxNorm) / norm)
	for _, g := range grads {
		for i := range g {
			g[i] *= s
		}
	}
}

type optimizer interface {
	update(params, grads [][]float32)
}

func (m *Model) newOptimizer() optimizer {
	lr := m.Config.LearningRate
	if m.Config.Optimizer == "sgd" {
		return &sgd{lr: float32(lr)}
	}
	return &adam{lr: lr, beta1: m.Config.Beta1, beta2: m.Config.Beta2, eps: m.Config.Epsilon}
}

type sgd struct{ lr float32 }

func (o *sgd) update(params, grads [][]float32) {
	for p := range params {
		for i, g := range grads[p] {
			params[p][i] -= o.lr * g
		}
	}
}

type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  [][]float32
}

func (o *adam) update(params, grads [][]float32) {
	if o.m == nil {
		o.m = make([][]float32, len(params))
		o.v = make([][]float32, len(params))
		for p := range params {
			o.m[p] = make([]float32, len(params[p]))
			o.v[p] = make([]float32, len(params[p]))
		}
	}
	o.t++
	c1 := 1 - math.Pow(o.beta1, float64(o.t))
	c2 := 1 - math.Pow(o.beta2, float64(o.t))
	b1, b2 := float32(o.beta1), float32(o.beta2)
	for p := range params {
		mp, vp := o.m[p], o.v[p]
		for i, g := range grads[p] {
			mp[i] = b1*mp[i] + (1-b1)*g
			vp[i] = b2*vp[i] + (1-b2)*g*g
			mhat := float64(mp[i]) / c1
			vhat := float64(vp[i]) / c2
			params[p][i] -= float32(o.lr * mhat / (math.Sqrt(vhat) + o.eps))
		}
	}
}
