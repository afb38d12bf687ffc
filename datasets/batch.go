package datasets

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Noofbiz/avaActions/logger"
)

// Modality selects which inputs the assembler loads.
type Modality uint8

const (
	ModalityRGB Modality = 1 << iota
	ModalityFlow
	ModalityContext

	ModalitiesAll = ModalityRGB | ModalityFlow | ModalityContext
)

// Has reports whether every bit of o is set in m.
func (m Modality) Has(o Modality) bool { return m&o == o }

// MissingAssetPolicy decides what a missing required asset does to a batch.
type MissingAssetPolicy int

const (
	// FailFast aborts LoadSplit with the *MissingAssetError.
	FailFast MissingAssetPolicy = iota
	// BestEffort leaves the sample's slots zero, records it in Batch.Skipped
	// and continues.
	BestEffort
)

// DefaultFlowWindow is the number of flow frame pairs stacked per sample.
const DefaultFlowWindow = 10

// AssemblerConfig configures an Assembler. Zero values get defaults in NewAssembler.
type AssemblerConfig struct {
	Layout AssetLayout
	// Height and Width of every RGB and flow frame. Required for the image modalities.
	Height, Width int
	// FlowWindow is the number of consecutive flow frames (x and y each) per sample.
	FlowWindow int
	ContextDim int
	// Modalities defaults to ModalitiesAll.
	Modalities Modality
	// Lookup is required when ModalityContext is set.
	Lookup  ContextLookup
	Decoder ImageDecoder
	Policy  MissingAssetPolicy
	// Workers > 1 loads samples concurrently.
	Workers int
	// Resize rescales frames of the wrong size instead of failing.
	Resize bool
	// Progress, if set, is called once per finished sample. It may be called
	// from several goroutines.
	Progress func()
}

// Assembler packs samples into fixed-shape batches.
type Assembler struct {
	cfg AssemblerConfig
	log *zerolog.Logger
}

// NewAssembler validates cfg and fills defaults.
func NewAssembler(cfg AssemblerConfig) (*Assembler, error) {
	if cfg.Modalities == 0 {
		cfg.Modalities = ModalitiesAll
	}
	if cfg.FlowWindow == 0 {
		cfg.FlowWindow = DefaultFlowWindow
	}
	if cfg.ContextDim == 0 {
		cfg.ContextDim = DefaultContextDim
	}
	if cfg.Decoder == nil {
		cfg.Decoder = FileDecoder{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Modalities.Has(ModalityRGB) || cfg.Modalities.Has(ModalityFlow) {
		if cfg.Height <= 0 || cfg.Width <= 0 {
			return nil, fmt.Errorf("frame dimensions must be positive, got %dx%d", cfg.Width, cfg.Height)
		}
	}
	if cfg.FlowWindow < 0 || cfg.FlowWindow%2 != 0 {
		return nil, fmt.Errorf("flow window must be a positive even number, got %d", cfg.FlowWindow)
	}
	if cfg.ContextDim < 0 {
		return nil, fmt.Errorf("context dim must be positive, got %d", cfg.ContextDim)
	}
	if cfg.Modalities.Has(ModalityContext) && cfg.Lookup == nil {
		return nil, errors.New("context modality requires a lookup")
	}
	return &Assembler{cfg: cfg, log: logger.Named("datasets")}, nil
}

// Batch is one assembled split: flat HWC float32 buffers sized for N samples
// plus the parallel label lists. Buffers of modalities that were not loaded are nil.
type Batch struct {
	N            int
	Height       int
	Width        int
	FlowChannels int
	ContextDim   int

	RGB     []float32 // N*Height*Width*3
	Flow    []float32 // N*Height*Width*FlowChannels
	Context []float32 // N*ContextDim

	Pose   []int
	Object [][]int
	Human  [][]int

	// Skipped lists samples left zero because of a missing asset (BestEffort only).
	Skipped []SampleID
}

// RGBAt is the HWC frame of sample i.
func (b *Batch) RGBAt(i int) []float32 {
	n := b.Height * b.Width * 3
	return b.RGB[i*n : (i+1)*n]
}

// FlowAt is the HWC flow volume of sample i.
func (b *Batch) FlowAt(i int) []float32 {
	n := b.Height * b.Width * b.FlowChannels
	return b.Flow[i*n : (i+1)*n]
}

// ContextAt is the context vector of sample i.
func (b *Batch) ContextAt(i int) []float32 {
	return b.Context[i*b.ContextDim : (i+1)*b.ContextDim]
}

func (a *Assembler) newBatch(n int) *Batch {
	cfg := a.cfg
	b := &Batch{
		N:            n,
		Height:       cfg.Height,
		Width:        cfg.Width,
		FlowChannels: 2 * cfg.FlowWindow,
		ContextDim:   cfg.ContextDim,
		Pose:         make([]int, n),
		Object:       make([][]int, n),
		Human:        make([][]int, n),
	}
	if cfg.Modalities.Has(ModalityRGB) {
		b.RGB = make([]float32, n*cfg.Height*cfg.Width*3)
	}
	if cfg.Modalities.Has(ModalityFlow) {
		b.Flow = make([]float32, n*cfg.Height*cfg.Width*b.FlowChannels)
	}
	if cfg.Modalities.Has(ModalityContext) {
		b.Context = make([]float32, n*cfg.ContextDim)
	}
	return b
}

// LoadSplit assembles ids, in order, into a fresh batch. labels may be nil
// for unlabelled splits, in which case every sample gets the empty record.
func (a *Assembler) LoadSplit(ctx context.Context, ids []SampleID, labels Labels) (*Batch, error) {
	b := a.newBatch(len(ids))
	skipped := make([]bool, len(ids))

	load := func(i int) error {
		err := a.loadSample(b, i, ids[i], labels)
		var missing *MissingAssetError
		if err != nil && a.cfg.Policy == BestEffort && errors.As(err, &missing) {
			a.log.Warn().Str("sample", ids[i].String()).Err(err).Msg("skipping sample")
			a.zeroSample(b, i)
			skipped[i] = true
			err = nil
		}
		if err == nil && a.cfg.Progress != nil {
			a.cfg.Progress()
		}
		return err
	}

	if a.cfg.Workers == 1 {
		for i := range ids {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := load(i); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.cfg.Workers)
		for i := range ids {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return load(i)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	for i, s := range skipped {
		if s {
			b.Skipped = append(b.Skipped, ids[i])
		}
	}
	a.log.Debug().Int("samples", b.N).Int("skipped", len(b.Skipped)).Msg("split assembled")
	return b, nil
}

// loadSample fills slot i. It only writes memory owned by that slot.
func (a *Assembler) loadSample(b *Batch, i int, id SampleID, labels Labels) error {
	cfg := a.cfg

	rec := NewLabelRecord()
	if labels != nil {
		r, ok := labels[id]
		if !ok {
			return &UnknownSampleError{ID: id}
		}
		rec = r
	}

	if cfg.Modalities.Has(ModalityRGB) {
		path := cfg.Layout.FramePath(id)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &MissingAssetError{Kind: "rgb frame", ID: id, Ref: path}
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
		img, err := cfg.Decoder.Decode(path)
		if err != nil {
			return err
		}
		img, err = fitImage(img, path, cfg.Width, cfg.Height, cfg.Resize)
		if err != nil {
			return err
		}
		fillRGB(b.RGBAt(i), img)
	}

	if cfg.Modalities.Has(ModalityContext) {
		key := id.ContextKey()
		payload, ok := cfg.Lookup[key]
		if !ok {
			return &MissingAssetError{Kind: "context vector", ID: id, Ref: key}
		}
		if err := parseContextInto(b.ContextAt(i), key, payload); err != nil {
			return err
		}
	}

	if cfg.Modalities.Has(ModalityFlow) {
		if err := a.loadFlow(b.FlowAt(i), id, b.FlowChannels); err != nil {
			return err
		}
	}

	b.Pose[i] = rec.Pose
	b.Object[i] = cloneInts(rec.HumanObject)
	b.Human[i] = cloneInts(rec.HumanHuman)
	return nil
}

func cloneInts(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}

// loadFlow stacks FlowWindow consecutive x/y flow frames centred on the flow
// index of id. Pair k goes to channels 2k and 2k+1; a pair with a missing or
// unreadable frame stays zero.
func (a *Assembler) loadFlow(dst []float32, id SampleID, channels int) error {
	cfg := a.cfg
	center := cfg.Layout.FlowFrameIndex(id)
	first := center - cfg.FlowWindow/2
	for k := 0; k < cfg.FlowWindow; k++ {
		n := first + k
		xImg, ok, err := a.readFlow(FlowX, id, n)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		yImg, ok, err := a.readFlow(FlowY, id, n)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		fillGray(dst, xImg, 2*k, channels)
		fillGray(dst, yImg, 2*k+1, channels)
	}
	return nil
}

// readFlow returns ok=false for frames that cannot be read. Only a size
// mismatch is an error.
func (a *Assembler) readFlow(axis FlowAxis, id SampleID, n int) (image.Image, bool, error) {
	path := a.cfg.Layout.FlowPath(axis, id, n)
	raw, derr := a.cfg.Decoder.Decode(path)
	if derr != nil {
		a.log.Debug().Str("path", path).Err(derr).Msg("flow frame unavailable")
		return nil, false, nil
	}
	fitted, ferr := fitImage(raw, path, a.cfg.Width, a.cfg.Height, a.cfg.Resize)
	if ferr != nil {
		return nil, false, ferr
	}
	return fitted, true, nil
}

// zeroSample clears the slot of a skipped sample.
func (a *Assembler) zeroSample(b *Batch, i int) {
	if b.RGB != nil {
		clear(b.RGBAt(i))
	}
	if b.Flow != nil {
		clear(b.FlowAt(i))
	}
	if b.Context != nil {
		clear(b.ContextAt(i))
	}
	b.Pose[i] = NoPose
	b.Object[i] = []int{}
	b.Human[i] = []int{}
}
