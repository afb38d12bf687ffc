package main

// Example command that indexes one AVA split, resolves its labels and
// assembles the first samples into a multi-modal batch, converting it to
// gomlx tensors.
//
// Usage:
//   go run ./datasets/example -a data/ava_val_v2.2.csv -r data -s validation -x data/XContext_val.csv
//
// Frames are expected under <root>/foveated_<split>_gc and <root>/flow_<split>.
// Modalities whose files are missing can be disabled with -m.

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cheggaaa/pb/v3"

	"github.com/Noofbiz/avaActions/datasets"
	"github.com/Noofbiz/avaActions/logger"
)

func main() {
	parser := argparse.NewParser("example", "Assemble a batch of AVA samples")
	annotations := parser.String("a", "annotations", &argparse.Options{Help: "Annotation CSV or clip directory of the split", Required: true})
	root := parser.String("r", "root", &argparse.Options{Help: "Dataset root holding the frame and flow trees", Default: "data"})
	split := parser.String("s", "split", &argparse.Options{Help: "Split name: train, validation or test", Default: "validation"})
	classes := parser.String("c", "classes", &argparse.Options{Help: "Class descriptor CSV (defaults to the AVA taxonomy)"})
	contextFile := parser.String("x", "context", &argparse.Options{Help: "Context feature CSV"})
	modalities := parser.String("m", "modalities", &argparse.Options{Help: "Comma-separated modalities: rgb, flow, context", Default: "rgb,flow,context"})
	n := parser.Int("n", "count", &argparse.Options{Help: "Number of samples to assemble", Default: 8})
	height := parser.Int("", "height", &argparse.Options{Help: "Frame height", Default: 224})
	width := parser.Int("", "width", &argparse.Options{Help: "Frame width", Default: 224})
	workers := parser.Int("w", "workers", &argparse.Options{Help: "Concurrent sample loaders", Default: 1})
	resize := parser.Flag("", "resize", &argparse.Options{Help: "Rescale frames of the wrong size"})
	bestEffort := parser.Flag("", "best-effort", &argparse.Options{Help: "Zero samples with missing files instead of failing"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}
	log := logger.Get()

	mods, err := parseModalities(*modalities)
	if err != nil {
		log.Fatal().Err(err).Msg("parse modalities")
	}

	tax := datasets.DefaultTaxonomy
	if *classes != "" {
		desc, err := datasets.LoadClasses(*classes)
		if err != nil {
			log.Fatal().Err(err).Msg("load classes")
		}
		if tax, err = datasets.TaxonomyFromClasses(desc); err != nil {
			log.Fatal().Err(err).Msg("taxonomy")
		}
	}

	s := datasets.Split(*split)
	ids, err := datasets.SampleIDs(*annotations, datasets.ModeAuto)
	if err != nil {
		log.Fatal().Err(err).Msg("index split")
	}
	fmt.Printf("Indexed %d samples from %s\n", ids.Len(), *annotations)

	// clip directories carry no action codes, so labels need an annotation file
	var labels datasets.Labels
	if st, err := os.Stat(*annotations); err == nil && !st.IsDir() && s != datasets.SplitTest {
		var stats datasets.ResolveStats
		labels, stats, err = datasets.NewResolver(tax).Resolve(datasets.Partition{s: ids}, s, *annotations)
		if err != nil {
			log.Fatal().Err(err).Msg("resolve labels")
		}
		fmt.Printf("Resolved %d annotation rows (%d dropped, %d pose conflicts)\n", stats.Rows, stats.Dropped, stats.PoseConflicts)
	}

	var lookup datasets.ContextLookup
	if mods.Has(datasets.ModalityContext) {
		if *contextFile == "" {
			log.Fatal().Msg("the context modality needs --context")
		}
		if lookup, err = datasets.LoadContextLookup(*contextFile); err != nil {
			log.Fatal().Err(err).Msg("load context features")
		}
	}

	sorted := ids.Sorted()
	count := min(*n, len(sorted))
	bar := pb.StartNew(count)
	cfg := datasets.AssemblerConfig{
		Layout:     datasets.DefaultLayout(*root, s),
		Height:     *height,
		Width:      *width,
		Modalities: mods,
		Lookup:     lookup,
		Workers:    *workers,
		Resize:     *resize,
		Progress:   func() { bar.Increment() },
	}
	if *bestEffort {
		cfg.Policy = datasets.BestEffort
	}
	asm, err := datasets.NewAssembler(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("assembler")
	}
	b, err := asm.LoadSplit(context.Background(), sorted[:count], labels)
	bar.Finish()
	if err != nil {
		log.Fatal().Err(err).Msg("assemble batch")
	}

	inputs, targets, err := b.ToGomlxTensors(tax)
	if err != nil {
		log.Fatal().Err(err).Msg("convert batch to gomlx tensors")
	}
	fmt.Printf("Assembled %d samples (%d skipped)\n", b.N, len(b.Skipped))
	for i, t := range inputs {
		fmt.Printf("  Input %d shape: %v\n", i, t.Shape().Dimensions)
	}
	for i, t := range targets {
		fmt.Printf("  Label %s shape: %v\n", datasets.Head(i), t.Shape().Dimensions)
	}
	if b.N > 0 {
		fmt.Printf("  First sample: %s pose=%d object=%v human=%v\n", sorted[0], b.Pose[0], b.Object[0], b.Human[0])
	}
}

func parseModalities(s string) (datasets.Modality, error) {
	var m datasets.Modality
	for _, p := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "rgb":
			m |= datasets.ModalityRGB
		case "flow":
			m |= datasets.ModalityFlow
		case "context":
			m |= datasets.ModalityContext
		case "":
		default:
			return 0, fmt.Errorf("unknown modality %q", p)
		}
	}
	if m == 0 {
		return 0, fmt.Errorf("no modality selected")
	}
	return m, nil
}
