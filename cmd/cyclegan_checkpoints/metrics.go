// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"regexp"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/ui/plots"
	"github.com/pkg/errors"
)

var (
	flagMetrics = flag.Bool("metrics", false,
		fmt.Sprintf("Lists the losses collected for plotting in file %q", plots.TrainingPlotFileName))
	flagMetricsNames = flag.String("metrics_names", "", "Regular expression that if matches the name or short name, the metric is included.")
)

// loadMetrics loads the points in path, keeping only metrics whose name or short name match namesRegexp,
// if it is not empty.
func loadMetrics(path, namesRegexp string) ([]plots.Point, error) {
	var matcher *regexp.Regexp
	if namesRegexp != "" {
		var err error
		if matcher, err = regexp.Compile(namesRegexp); err != nil {
			return nil, errors.Wrapf(err, "invalid -metrics_names=%q", namesRegexp)
		}
	}
	points, err := plots.LoadPoints(path)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, errors.Errorf("no metrics found in %q", path)
	}
	if matcher == nil {
		return points, nil
	}
	filtered := points[:0]
	for _, point := range points {
		if matcher.MatchString(point.MetricName) || matcher.MatchString(point.Short) {
			filtered = append(filtered, point)
		}
	}
	return filtered, nil
}

// metricColumns returns the short names of the metrics in order of first appearance.
func metricColumns(points []plots.Point) []string {
	var columns []string
	seen := make(map[string]bool)
	for _, point := range points {
		if !seen[point.Short] {
			seen[point.Short] = true
			columns = append(columns, point.Short)
		}
	}
	return columns
}

// MetricsTable renders one row per global step, with one column per metric.
func MetricsTable(points []plots.Point) *report {
	columns := metricColumns(points)
	columnIdx := make(map[string]int, len(columns))
	for ii, short := range columns {
		columnIdx[short] = ii + 1
	}
	table := newReport(append([]string{"Global Step"}, columns...), lipgloss.Right)

	var row []string
	currentStep := -1.0
	for _, point := range points {
		if row == nil || point.Step != currentStep {
			if row != nil {
				table.Row(row...)
			}
			row = make([]string, len(columns)+1)
			currentStep = point.Step
			row[0] = humanize.Comma(int64(point.Step))
		}
		row[columnIdx[point.Short]] = fmt.Sprintf("%.3g", point.Value)
	}
	if row != nil {
		table.Row(row...)
	}
	return table
}
