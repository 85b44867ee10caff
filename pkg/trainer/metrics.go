// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/gomlx/cyclegan/pkg/cyclegan"
	"github.com/gomlx/gomlx/ui/plots"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// LossesPlotFileName is the image with the loss curves, written in the log directory.
const LossesPlotFileName = "losses.png"

// metric of one training step.
type metric struct {
	Name, Short string
	Value       float32
}

// stepMetrics lists the losses of one training step, in display order.
func stepMetrics(g cyclegan.GeneratorLosses, d cyclegan.DiscriminatorLosses) []metric {
	return []metric{
		{"Generator loss", "g_loss", g.Total},
		{"Generator A→B loss", "g_loss_a2b", g.A2B},
		{"Generator B→A loss", "g_loss_b2a", g.B2A},
		{"Cycle loss A", "cycle_loss_a", g.CycleA},
		{"Cycle loss B", "cycle_loss_b", g.CycleB},
		{"Style loss", "style_loss", g.Style},
		{"Discriminator loss", "d_loss", d.Total},
		{"Discriminator A loss", "da_loss", d.A},
		{"Discriminator A real loss", "da_loss_real", d.RealA},
		{"Discriminator A fake loss", "da_loss_fake", d.FakeA},
		{"Discriminator B loss", "db_loss", d.B},
		{"Discriminator B real loss", "db_loss_real", d.RealB},
		{"Discriminator B fake loss", "db_loss_fake", d.FakeB},
	}
}

// summaryMetrics are the ones displayed along the progress bar and plotted.
var summaryMetrics = []string{"g_loss", "g_loss_a2b", "g_loss_b2a", "style_loss", "d_loss", "da_loss", "db_loss"}

func isSummaryMetric(short string) bool {
	return slices.Contains(summaryMetrics, short)
}

func writePoints(writer chan<- plots.Point, step int64, metrics []metric) {
	for _, m := range metrics {
		writer <- plots.Point{
			MetricName: m.Name,
			Short:      m.Short,
			MetricType: "loss",
			Step:       float64(step),
			Value:      float64(m.Value),
		}
	}
}

// PlotLosses reads the plot points saved during training in logDir and draws the summary loss curves
// into logDir/LossesPlotFileName.
func PlotLosses(logDir string) error {
	points, err := plots.LoadPoints(filepath.Join(logDir, plots.TrainingPlotFileName))
	if err != nil {
		return err
	}
	series := make(map[string]plotter.XYs)
	for _, point := range points {
		if !isSummaryMetric(point.Short) {
			continue
		}
		series[point.Short] = append(series[point.Short], plotter.XY{X: point.Step, Y: point.Value})
	}
	if len(series) == 0 {
		return errors.Errorf("no loss points found in %q", logDir)
	}

	p := plot.New()
	p.Title.Text = "CycleGAN losses"
	p.X.Label.Text = "step"
	p.Y.Label.Text = "loss"
	p.Add(plotter.NewGrid())
	names := maps.Keys(series)
	slices.Sort(names)
	for ii, name := range names {
		xys := series[name]
		slices.SortStableFunc(xys, func(a, b plotter.XY) int {
			switch {
			case a.X < b.X:
				return -1
			case a.X > b.X:
				return 1
			}
			return 0
		})
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "failed to plot %q", name)
		}
		line.Color = plotutil.Color(ii)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	p.Legend.Top = true
	path := filepath.Join(logDir, LossesPlotFileName)
	if err = p.Save(12*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", path)
	}
	return nil
}

func formatLoss(v float32) string {
	return fmt.Sprintf("%.4f", v)
}
