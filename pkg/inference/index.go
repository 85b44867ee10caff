// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package inference

import (
	"html/template"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// IndexFileName returns the name of the HTML index written in the test directory for the direction.
func IndexFileName(direction Direction) string {
	return direction.String() + "_index.html"
}

var indexTemplate = template.Must(template.New("index").Parse(
	`<html><body><table><tr><th>name</th><th>input</th><th>output</th></tr>
{{range .}}<tr><td>{{.Name}}</td><td><img src='{{.InputSrc}}'></td><td><img src='{{.OutputSrc}}'></td></tr>
{{end}}</table></body></html>
`))

type indexRow struct {
	Name, InputSrc, OutputSrc string
}

// imageSrc returns the image reference used in the index: absolute paths are kept, relative paths
// are taken as relative to the parent of the test directory.
func imageSrc(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return ".." + string(filepath.Separator) + path
}

func writeIndex(path string, translations []Translation) error {
	rows := make([]indexRow, 0, len(translations))
	for _, tr := range translations {
		rows = append(rows, indexRow{
			Name:      filepath.Base(tr.Output),
			InputSrc:  imageSrc(tr.Input),
			OutputSrc: imageSrc(tr.Output),
		})
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create index %q", path)
	}
	if err = indexTemplate.Execute(f, rows); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write index %q", path)
	}
	return errors.Wrapf(f.Close(), "failed to close index %q", path)
}
