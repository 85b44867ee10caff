// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/gomlx/ui/plots"
)

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A080D0")).Padding(0, 1)

// summary of the training session, rendered as a table.
func (t *Trainer) summary(elapsed time.Duration) string {
	step := t.model.Step()
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		}).
		Headers("Run", t.runID)
	table.Row("Global step", humanize.Comma(step))
	table.Row("Epochs", fmt.Sprintf("%d", t.numEpochs))
	table.Row("Parameters", humanize.Comma(int64(t.numParameters())))
	table.Row("Elapsed", commandline.FormatDuration(elapsed))
	table.Row("Checkpoints", t.opts.CheckpointDir)
	table.Row("Samples", t.opts.SampleDir)
	table.Row("Loss plot points", filepath.Join(t.opts.LogDir, plots.TrainingPlotFileName))
	if t.opts.Plot && step > 0 {
		table.Row("Loss plot", filepath.Join(t.opts.LogDir, LossesPlotFileName))
	}
	for _, m := range t.lastLosses {
		table.Row(m.Name, formatLoss(m.Value))
	}
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("CycleGAN training"), table.String())
}
