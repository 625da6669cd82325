package utility

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// LossHistory records named loss values per logged iteration.
type LossHistory struct {
	Iterations []float64
	Values     map[string][]float64
}

func NewLossHistory() *LossHistory {
	return &LossHistory{Values: make(map[string][]float64)}
}

// Add appends one point. Names missing from losses are recorded as 0 so every
// series stays aligned with Iterations.
func (h *LossHistory) Add(iteration float64, losses map[string]float64) {
	for name := range losses {
		if _, ok := h.Values[name]; !ok {
			h.Values[name] = make([]float64, len(h.Iterations))
		}
	}
	h.Iterations = append(h.Iterations, iteration)
	for name, series := range h.Values {
		h.Values[name] = append(series, losses[name])
	}
}

// SaveLossPlot draws one line per loss against the iteration axis and writes a PNG.
func SaveLossPlot(path string, history *LossHistory) error {
	if history == nil || len(history.Iterations) == 0 {
		return fmt.Errorf("loss plot: empty history")
	}

	p := plot.New()
	p.Title.Text = "training losses"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "loss"

	names := make([]string, 0, len(history.Values))
	for name := range history.Values {
		names = append(names, name)
	}
	sort.Strings(names)

	var lines []interface{}
	for _, name := range names {
		points := make(plotter.XYs, len(history.Iterations))
		for i, it := range history.Iterations {
			points[i].X = it
			points[i].Y = history.Values[name][i]
		}
		lines = append(lines, name, points)
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return fmt.Errorf("loss plot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("loss plot: %w", err)
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("loss plot: %w", err)
	}
	return nil
}
