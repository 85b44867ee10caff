// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// cyclegan_checkpoints reports on a CycleGAN checkpoint directory: sizes per parameter group,
// hyperparameters, variables and the training losses collected for plotting.
//
// Usage:
//
//	cyclegan_checkpoints [flags] <checkpoint_dir>
//
// If no report is selected, -summary is assumed.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/cyclegan/pkg/cyclegan"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/gomlx/ui/plots"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	flagSummary = flag.Bool("summary", false, "Display the number of variables, parameters and bytes per parameter group, "+
		"and the global step.")
	flagParams = flag.Bool("params", false, "Lists the hyperparameters.")
	flagLogDir = flag.String("log_dir", "", fmt.Sprintf("Directory with the %q file. Defaults to the checkpoint directory.",
		plots.TrainingPlotFileName))
)

var titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		klog.Errorf("Expected exactly one checkpoint directory, got %d arguments. See 'cyclegan_checkpoints -help'", len(args))
		os.Exit(1)
	}
	checkpointDir := must.M1(fsutil.ReplaceTildeInDir(args[0]))
	logDir := checkpointDir
	if *flagLogDir != "" {
		logDir = must.M1(fsutil.ReplaceTildeInDir(*flagLogDir))
	}

	if *flagResetOptimizer != "" {
		must.M(resetOptimizer(checkpointDir, *flagResetOptimizer))
		return
	}

	if !*flagSummary && !*flagParams && !*flagVars && !*flagMetrics && !*flagPlot {
		*flagSummary = true
	}
	if *flagSummary || *flagParams || *flagVars {
		backend := backends.MustNew()
		ctx := context.New()
		_ = must.M1(checkpoints.Load(ctx).Dir(checkpointDir).Immediate().Done())
		if *flagSummary {
			m := must.M1(cyclegan.New(backend, ctx))
			fmt.Println(titleStyle.Render("Summary"))
			fmt.Println(Summary(m, checkpointDir))
		}
		if *flagParams {
			fmt.Println(titleStyle.Render("Hyperparameters"))
			fmt.Println(Params(ctx).Render())
		}
		if *flagVars {
			fmt.Println(titleStyle.Render("Variables"))
			fmt.Println(must.M1(ListVariables(backend, ctx)).Render())
		}
	}

	if *flagMetrics || *flagPlot {
		points := must.M1(loadMetrics(filepath.Join(logDir, plots.TrainingPlotFileName), *flagMetricsNames))
		if *flagMetrics {
			fmt.Println(titleStyle.Render("Losses"))
			fmt.Println(MetricsTable(points).Render())
		}
		if *flagPlot {
			must.M(ShowPlots(points, *flagPlotFile))
		}
	}
}
