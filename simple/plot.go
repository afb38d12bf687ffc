package simple

import (
	"errors"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotHistory writes a PNG with the training and validation loss curves.
func PlotHistory(h *History, path string) error {
	if h == nil || h.Epochs() == 0 {
		return errors.New("empty history")
	}
	p := plot.New()
	p.Title.Text = "Loss per epoch: train (blue), validation (red)"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"
	p.Add(plotter.NewGrid())

	series := []struct {
		name string
		ys   []float64
		col  color.Color
	}{
		{"loss", h.Loss, color.RGBA{R: 20, G: 80, B: 200, A: 255}},
		{"val_loss", h.ValLoss, color.RGBA{R: 200, G: 30, B: 30, A: 255}},
	}
	for _, s := range series {
		if len(s.ys) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.ys))
		for i, y := range s.ys {
			xys[i] = plotter.XY{X: float64(i + 1), Y: y}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = s.col
		line.Width = vg.Points(1.2)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}
