// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"html/template"
	"io"
	"os"
	"slices"

	"github.com/gomlx/gomlx/ui/plots"
	"github.com/janpfeifer/gonb/gonbui"
	"github.com/pkg/errors"

	grob "github.com/MetalBlueberry/go-plotly/generated/v2.34.0/graph_objects"
	ptypes "github.com/MetalBlueberry/go-plotly/pkg/types"
)

var (
	flagPlot = flag.Bool("plot", false,
		fmt.Sprintf("Plots the losses collected in file %q to an HTML page, one plot per metric type. "+
			"Use -metrics_names to select the losses.", plots.TrainingPlotFileName))
	flagPlotFile = flag.String("plot_file", "", "HTML file where to write the plots. If empty, a temporary file is created.")
)

// PlotlyCDN is the Plotly.js version matching the generated graph objects.
const PlotlyCDN = "https://cdn.plot.ly/plotly-2.34.0.min.js"

// plotLine holds the points of one metric.
type plotLine struct {
	short         string
	steps, values []float64
}

// buildFigures creates one figure per metric type, with one line per metric.
// It returns the figures and their metric types.
func buildFigures(points []plots.Point) ([]*grob.Fig, []string) {
	var metricTypes []string
	lines := make(map[string][]*plotLine)
	lineOf := make(map[string]*plotLine)
	for _, point := range points {
		line, found := lineOf[point.MetricName]
		if !found {
			line = &plotLine{short: point.Short}
			lineOf[point.MetricName] = line
			if _, found := lines[point.MetricType]; !found {
				metricTypes = append(metricTypes, point.MetricType)
			}
			lines[point.MetricType] = append(lines[point.MetricType], line)
		}
		line.steps = append(line.steps, point.Step)
		line.values = append(line.values, point.Value)
	}
	slices.Sort(metricTypes)

	figs := make([]*grob.Fig, 0, len(metricTypes))
	for _, metricType := range metricTypes {
		fig := &grob.Fig{
			Layout: &grob.Layout{
				Title: &grob.LayoutTitle{
					Text: ptypes.S(metricType),
				},
				Xaxis: &grob.LayoutXaxis{
					Showgrid: ptypes.B(true),
				},
				Yaxis: &grob.LayoutYaxis{
					Showgrid: ptypes.B(true),
				},
			},
		}
		for _, line := range lines[metricType] {
			fig.Data = append(fig.Data, &grob.Scatter{
				Name: ptypes.S(line.short),
				Line: &grob.ScatterLine{
					Shape: grob.ScatterLineShapeLinear,
				},
				Mode: "lines",
				X:    ptypes.DataArray(line.steps),
				Y:    ptypes.DataArray(line.values),
			})
		}
		figs = append(figs, fig)
	}
	return figs, metricTypes
}

var (
	singleFileHTML = `<!DOCTYPE html>
<html>
	<head>
		<meta charset="utf-8">
		<script src="{{ .CDN }}"></script>
	</head>
	<body>
{{- range $i, $f := .Figures }}
		<div id="plot{{ $i }}"></div>
{{- end }}
	<script>
{{- range $i, $f := .Figures }}
		Plotly.newPlot('plot{{ $i }}', JSON.parse(atob('{{ $f }}')));
{{- end }}
	</script>
	</body>
</html>`
	singleFileHTMLTmpl = template.Must(template.New("plotly").Parse(singleFileHTML))
)

// WritePlotlyAsHTML renders the Plotly figures to an HTML page.
func WritePlotlyAsHTML(w io.Writer, figs ...*grob.Fig) error {
	figuresAsJSON := make([]string, 0, len(figs))
	for _, fig := range figs {
		figAsJSON, err := json.Marshal(fig)
		if err != nil {
			return errors.Wrap(err, "failed to marshal plotly figure")
		}
		figuresAsJSON = append(figuresAsJSON, base64.StdEncoding.EncodeToString(figAsJSON))
	}
	data := &struct {
		CDN     string
		Figures []string
	}{
		CDN:     PlotlyCDN,
		Figures: figuresAsJSON,
	}
	if err := singleFileHTMLTmpl.Execute(w, data); err != nil {
		return errors.Wrap(err, "failed to render plotly")
	}
	return nil
}

// ShowPlots writes the plots of the points to fileName (or a temporary file, if empty).
// When running in a notebook, the plots are also displayed inline.
func ShowPlots(points []plots.Point, fileName string) error {
	figs, metricTypes := buildFigures(points)
	var buf bytes.Buffer
	if err := WritePlotlyAsHTML(&buf, figs...); err != nil {
		return err
	}
	if gonbui.IsNotebook {
		gonbui.DisplayHtml(buf.String())
	}

	var f *os.File
	var err error
	if fileName == "" {
		f, err = os.CreateTemp("", "cyclegan-plots-*.html")
	} else {
		f, err = os.Create(fileName)
	}
	if err != nil {
		return errors.Wrap(err, "failed to create file for the plots")
	}
	if _, err = f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write plots to %q", f.Name())
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %q", f.Name())
	}
	fmt.Printf("\nPlots %v written to:\t%s\n\n", metricTypes, f.Name())
	return nil
}
