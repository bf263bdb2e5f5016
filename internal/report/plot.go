package report

import (
	"context"
	"errors"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

// PlotReporter 收集每一代的统计量，结束后画出最小适应度和平均适应度的变化曲线
type PlotReporter struct {
	title   string
	mu      sync.Mutex
	metrics []domain.GenerationMetrics
}

func NewPlotReporter(title string) *PlotReporter {
	return &PlotReporter{title: title}
}

func (r *PlotReporter) Report(ctx context.Context, metrics domain.GenerationMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics = append(r.metrics, metrics)
	return nil
}

// Save 保存图像，格式由文件扩展名决定（pdf、png、svg 等）
func (r *PlotReporter) Save(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.metrics) == 0 {
		return errors.New("没有可以绘制的迭代统计量")
	}

	p := plot.New()
	p.Title.Text = r.title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Fitness"

	minPts := make(plotter.XYs, len(r.metrics))
	avgPts := make(plotter.XYs, len(r.metrics))
	for i, m := range r.metrics {
		minPts[i].X = float64(m.Generation)
		minPts[i].Y = m.MinFitness

		avgPts[i].X = float64(m.Generation)
		avgPts[i].Y = m.AvgFitness
	}

	minLine, err := plotter.NewLine(minPts)
	if err != nil {
		return err
	}
	avgLine, err := plotter.NewLine(avgPts)
	if err != nil {
		return err
	}
	avgLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(minLine, avgLine, plotter.NewGrid())
	p.Legend.Add("min", minLine)
	p.Legend.Add("avg", avgLine)
	p.Legend.Top = true

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}
