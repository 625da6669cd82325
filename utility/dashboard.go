package utility

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
)

// manages the TUI for real-time GAN training monitoring.
type TrainingDashboard struct {
	grid *ui.Grid

	generatorPlot     *widgets.Plot
	discriminatorPlot *widgets.Plot

	progressGauge *widgets.Gauge
	progressList  *widgets.List
	lossList      *widgets.List
	systemList    *widgets.List
	logParagraph  *widgets.Paragraph

	fullGeneratorData     []float64
	fullDiscriminatorData []float64
	renderMutex           sync.Mutex
}

// Hyperparameters are shown in a static panel.
type Hyperparameters struct {
	LearningRate   float64
	BatchSize      int
	Epochs         int
	GANMode        string
	LambdaA        float64
	LambdaB        float64
	LambdaIdentity float64
	RotationWeight float64
}

func NewTrainingDashboard(hp Hyperparameters) (*TrainingDashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := &TrainingDashboard{
		fullGeneratorData:     []float64{0, 0},
		fullDiscriminatorData: []float64{0, 0},
	}

	d.generatorPlot = widgets.NewPlot()
	d.generatorPlot.Title = "Generator Loss (G_A + G_B)"
	d.generatorPlot.Data = [][]float64{d.fullGeneratorData}
	d.generatorPlot.LineColors[0] = ui.ColorRed

	d.discriminatorPlot = widgets.NewPlot()
	d.discriminatorPlot.Title = "Discriminator Loss (D_A + D_B)"
	d.discriminatorPlot.Data = [][]float64{d.fullDiscriminatorData}
	d.discriminatorPlot.LineColors[0] = ui.ColorGreen

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Epoch Progress"
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressList = widgets.NewList()
	d.progressList.Title = "Training Status"
	d.lossList = widgets.NewList()
	d.lossList.Title = "Losses"
	d.systemList = widgets.NewList()
	d.systemList.Title = "System & Timing"
	hyperParamList := widgets.NewList()
	hyperParamList.Title = "Hyperparameters"
	hyperParamList.Rows = []string{
		fmt.Sprintf("Epochs: %d", hp.Epochs),
		fmt.Sprintf("Batch Size: %d", hp.BatchSize),
		fmt.Sprintf("Learn Rate: %.5f", hp.LearningRate),
		fmt.Sprintf("GAN Mode: %s", hp.GANMode),
		fmt.Sprintf("Lambda A/B: %.1f / %.1f", hp.LambdaA, hp.LambdaB),
		fmt.Sprintf("Lambda Idt: %.2f", hp.LambdaIdentity),
		fmt.Sprintf("Rotation W: %.2f", hp.RotationWeight),
	}
	d.logParagraph = widgets.NewParagraph()
	d.logParagraph.Title = "Event Log"

	d.grid = ui.NewGrid()
	termWidth, termHeight := ui.TerminalDimensions()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.4, ui.NewCol(0.5, d.generatorPlot), ui.NewCol(0.5, d.discriminatorPlot)),
		ui.NewRow(0.35,
			ui.NewCol(0.25, d.progressList), ui.NewCol(0.25, d.lossList),
			ui.NewCol(0.25, d.systemList), ui.NewCol(0.25, hyperParamList)),
		ui.NewRow(0.25, ui.NewCol(1.0, ui.NewRow(0.4, d.progressGauge), ui.NewRow(0.6, d.logParagraph))),
	)

	return d, nil
}

// downsample averages a slice of data to fit a target width so the plot stays inside its cell
func downsample(data []float64, targetWidth int) []float64 {
	if targetWidth <= 0 || len(data) <= targetWidth {
		return data
	}

	downsampled := make([]float64, targetWidth)
	binSize := float64(len(data)) / float64(targetWidth)

	for i := 0; i < targetWidth; i++ {
		start := int(float64(i) * binSize)
		end := int(float64(i+1) * binSize)
		if end > len(data) {
			end = len(data)
		}

		bin := data[start:end]
		if len(bin) == 0 {
			if i > 0 {
				downsampled[i] = downsampled[i-1]
			}
			continue
		}

		var sum float64
		for _, v := range bin {
			sum += v
		}
		downsampled[i] = sum / float64(len(bin))
	}
	return downsampled
}

// formatLosses renders named losses sorted by name, one per row.
func formatLosses(losses map[string]float64) []string {
	names := make([]string, 0, len(losses))
	for name := range losses {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, fmt.Sprintf("%-8s %.4f", name, losses[name]))
	}
	return rows
}

// update the dashboard.
func (d *TrainingDashboard) UpdateStats(epoch, totalEpochs, iter, totalIters int, learningRate float64, losses map[string]float64, epochStartTime, totalStartTime time.Time) {
	d.renderMutex.Lock()
	defer d.renderMutex.Unlock()

	d.progressList.Rows = []string{
		fmt.Sprintf("Epoch: %d / %d", epoch, totalEpochs),
		fmt.Sprintf("Iter: %d / %d", iter, totalIters),
		fmt.Sprintf("LR: %.7f", learningRate),
	}
	d.lossList.Rows = formatLosses(losses)

	epochElapsed := time.Since(epochStartTime).Round(time.Second)
	totalElapsed := time.Since(totalStartTime).Round(time.Second)
	var eta time.Duration
	if iter > 0 {
		timePerIter := epochElapsed.Seconds() / float64(iter)
		eta = time.Duration(timePerIter*float64(totalIters-iter)) * time.Second
	}
	rows := []string{
		fmt.Sprintf("Epoch Time: %v", epochElapsed),
		fmt.Sprintf("Total Time: %v", totalElapsed),
		fmt.Sprintf("ETA (Epoch): %v", eta),
		"---",
	}
	if stats, err := ReadProcessStats(); err == nil {
		rows = append(rows, fmt.Sprintf("RSS: %d MiB", stats.RSSMiB), fmt.Sprintf("CPU: %.1f%%", stats.CPUPercent))
	}
	rows = append(rows, fmt.Sprintf("Goroutines: %d", runtime.NumGoroutine()))
	d.systemList.Rows = rows
	if totalIters > 0 {
		d.progressGauge.Percent = int(float64(iter) / float64(totalIters) * 100)
	}

	d.generatorPlot.Data[0] = downsample(d.fullGeneratorData, d.generatorPlot.Inner.Dx())
	d.discriminatorPlot.Data[0] = downsample(d.fullDiscriminatorData, d.discriminatorPlot.Inner.Dx())

	ui.Render(d.grid)
}

// appends the summed generator and discriminator losses of one step to the history.
func (d *TrainingDashboard) AddLosses(generator, discriminator float64) {
	d.renderMutex.Lock()
	defer d.renderMutex.Unlock()
	d.fullGeneratorData = append(d.fullGeneratorData, generator)
	d.fullDiscriminatorData = append(d.fullDiscriminatorData, discriminator)
}

// prints a message to the event log panel.
func (d *TrainingDashboard) Log(message string) {
	d.renderMutex.Lock()
	defer d.renderMutex.Unlock()
	d.logParagraph.Text = message
	ui.Render(d.grid)
}

// utility functions - close and loop
func (d *TrainingDashboard) Close() { ui.Close() }
func (d *TrainingDashboard) Loop() {
	uiEvents := ui.PollEvents()
	for {
		e := <-uiEvents
		if e.ID == "q" || e.ID == "<C-c>" {
			return
		}
	}
}
