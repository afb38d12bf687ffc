// Command train fits the context MLP on the AVA context features, one model
// per hidden-size pair of the sweep, and writes the best checkpoint and the
// loss history of each.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cheggaaa/pb/v3"

	"github.com/Noofbiz/avaActions/datasets"
	"github.com/Noofbiz/avaActions/logger"
	"github.com/Noofbiz/avaActions/simple"
)

func main() {
	parser := argparse.NewParser("train", "Train the AVA context MLP")
	configPath := parser.String("c", "config", &argparse.Options{Help: "JSON config file; fields override the embedded defaults"})
	writeConfig := parser.String("", "write-config", &argparse.Options{Help: "Write the embedded default config to this path and exit"})
	outputDir := parser.String("o", "output", &argparse.Options{Help: "Output directory (overrides config)"})
	epochs := parser.Int("e", "epochs", &argparse.Options{Help: "Training epochs (overrides config)"})
	batchSize := parser.Int("b", "batch-size", &argparse.Options{Help: "Mini-batch size (overrides config)"})
	lr := parser.Float("", "lr", &argparse.Options{Help: "Learning rate (overrides config)"})
	contextDim := parser.Int("", "context-dim", &argparse.Options{Help: "Context feature dimension (overrides config)"})
	nhu1 := parser.String("", "nhu1", &argparse.Options{Help: "Comma-separated first hidden layer sizes (overrides config)"})
	nhu2 := parser.String("", "nhu2", &argparse.Options{Help: "Comma-separated second hidden layer sizes (overrides config)"})
	strict := parser.Flag("", "strict", &argparse.Options{Help: "Fail on annotation rows outside the split instead of dropping them"})
	noProgress := parser.Flag("", "no-progress", &argparse.Options{Help: "Disable progress bars"})
	logLevel := parser.String("", "log-level", &argparse.Options{Help: "Log level (overrides AVA_LOG_LEVEL)"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logOpts := logger.FromEnv()
	if *logLevel != "" {
		logOpts.Level = *logLevel
	}
	logger.Init(logOpts)
	log := logger.Get()

	if *writeConfig != "" {
		if err := os.WriteFile(*writeConfig, defaultConfigJSON, 0644); err != nil {
			log.Fatal().Err(err).Msg("write default config")
		}
		log.Info().Str("path", *writeConfig).Msg("default config written")
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *epochs > 0 {
		cfg.Training.Epochs = *epochs
	}
	if *batchSize > 0 {
		cfg.Training.BatchSize = *batchSize
	}
	if *lr > 0 {
		cfg.Training.LearningRate = *lr
	}
	if *contextDim > 0 {
		cfg.ContextDim = *contextDim
	}
	if *nhu1 != "" {
		if cfg.Sweep.NHU1, err = parseSizes(*nhu1); err != nil {
			log.Fatal().Err(err).Msg("parse --nhu1")
		}
	}
	if *nhu2 != "" {
		if cfg.Sweep.NHU2, err = parseSizes(*nhu2); err != nil {
			log.Fatal().Err(err).Msg("parse --nhu2")
		}
	}
	if *strict {
		cfg.Strict = true
	}
	if err := cfg.validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	data, err := loadData(cfg, !*noProgress)
	if err != nil {
		log.Fatal().Err(err).Msg("load data")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.OutputDir).Msg("create output dir")
	}

	for i := range cfg.Sweep.NHU1 {
		if err := trainOne(cfg, data, cfg.Sweep.NHU1[i], cfg.Sweep.NHU2[i], !*noProgress); err != nil {
			log.Fatal().Err(err).Int("nhu1", cfg.Sweep.NHU1[i]).Msg("training failed")
		}
	}
}

// trainingData is the precomputed train and validation splits.
type trainingData struct {
	taxonomy datasets.Taxonomy
	train    *memoryDataset
	val      *memoryDataset
}

func loadData(cfg *config, progress bool) (*trainingData, error) {
	log := logger.Get()

	classes, err := datasets.LoadClasses(cfg.Classes)
	if err != nil {
		return nil, err
	}
	tax, err := datasets.TaxonomyFromClasses(classes)
	if err != nil {
		return nil, err
	}
	log.Info().Int("classes", classes.Len()).Int("pose", tax.Pose).Int("object", tax.Object).Int("human", tax.Human).Msg("class registry loaded")

	ix := &datasets.Indexer{Window: cfg.window()}
	resolver := datasets.NewResolver(tax)
	resolver.Window = cfg.window()
	resolver.Strict = cfg.Strict

	splits := []struct {
		split       datasets.Split
		annotations string
		context     string
	}{
		{datasets.SplitTrain, cfg.TrainAnnotations, cfg.TrainContext},
		{datasets.SplitValidation, cfg.ValAnnotations, cfg.ValContext},
	}
	partition := datasets.Partition{}
	for _, s := range splits {
		if s.annotations == "" {
			continue
		}
		ids, err := ix.SampleIDs(s.annotations, datasets.ModeAuto)
		if err != nil {
			return nil, err
		}
		partition[s.split] = ids
		log.Info().Str("split", string(s.split)).Int("samples", ids.Len()).Msg("split indexed")
	}

	out := &trainingData{taxonomy: tax}
	for _, s := range splits {
		ids, ok := partition[s.split]
		if !ok || s.context == "" {
			continue
		}
		labels, stats, err := resolver.Resolve(partition, s.split, s.annotations)
		if err != nil {
			return nil, err
		}
		log.Info().Str("split", string(s.split)).Int("rows", stats.Rows).Int("dropped", stats.Dropped).Int("pose_conflicts", stats.PoseConflicts).Msg("labels resolved")

		lookup, err := datasets.LoadContextLookup(s.context)
		if err != nil {
			return nil, err
		}
		ds, err := datasets.NewContextDataset(s.split, ids, labels, lookup, cfg.ContextDim, tax)
		if err != nil {
			return nil, err
		}

		var bar *pb.ProgressBar
		if progress {
			bar = pb.StartNew(ds.Len())
		}
		mem, err := precompute(ds, bar)
		if bar != nil {
			bar.Finish()
		}
		if err != nil {
			return nil, err
		}
		if s.split == datasets.SplitTrain {
			out.train = mem
		} else {
			out.val = mem
		}
	}
	if out.train == nil {
		return nil, fmt.Errorf("no training split loaded")
	}
	return out, nil
}

func trainOne(cfg *config, data *trainingData, nhu1, nhu2 int, progress bool) error {
	log := logger.Get()
	model, err := simple.NewModel(cfg.modelConfig(nhu1, nhu2, data.taxonomy))
	if err != nil {
		return err
	}
	ckpt, histPath := outputPaths(cfg.OutputDir, nhu1)
	log.Info().Int("nhu1", nhu1).Int("nhu2", nhu2).Int("epochs", model.Config.Epochs).Str("checkpoint", ckpt).Msg("training model")

	var bar *pb.ProgressBar
	if progress {
		bar = pb.StartNew(model.Config.Epochs)
	}
	opts := simple.TrainOptions{CheckpointPath: ckpt}
	if bar != nil {
		opts.OnEpoch = func(int, *simple.History) { bar.Increment() }
	}

	// a nil *memoryDataset must not reach the trainer as a non-nil interface
	var val simple.Dataset
	if data.val != nil {
		val = data.val
	}
	h, err := model.TrainWithDataset(data.train, val, opts)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}
	if err := simple.SaveHistory(histPath, h); err != nil {
		return err
	}
	if err := simple.PlotHistory(h, histPath+".png"); err != nil {
		log.Warn().Err(err).Msg("plot history")
	}
	log.Info().Int("nhu1", nhu1).Int("best_epoch", h.BestEpoch+1).Str("history", histPath).Msg("model trained")
	return nil
}

// outputPaths returns the checkpoint and history paths for a sweep entry.
func outputPaths(dir string, nhu1 int) (checkpoint, history string) {
	return filepath.Join(dir, fmt.Sprintf("context_mlp%d.gob", nhu1)),
		filepath.Join(dir, fmt.Sprintf("contextHistory_%d", nhu1))
}

func parseSizes(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", p, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("size must be positive, got %d", n)
		}
		out = append(out, n)
	}
	return out, nil
}
