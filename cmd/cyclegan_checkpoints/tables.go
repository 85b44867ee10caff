// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	reportBorder = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	reportHeader = lipgloss.NewStyle().Reverse(true).Padding(0, 2).Align(lipgloss.Center)
	reportCell   = lipgloss.NewStyle().Padding(0, 1)
	reportFlag   = reportCell.Foreground(lipgloss.Color("9")).Bold(true)
)

// report is a table of the inspector output: data rows alternate shading, and flagged rows
// (e.g. variables with non-finite values) are shown in bold red.
type report struct {
	t       *lgtable.Table
	flagged []bool
}

// newReport creates a report with the given column headers, or without a header row if there are none.
// Column ii is aligned with align[ii]; columns past the end of align take its last value.
func newReport(headers []string, align ...lipgloss.Position) *report {
	r := &report{}
	r.t = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(reportBorder).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return reportHeader
			}
			s := reportCell.Faint(row%2 == 1)
			if row < len(r.flagged) && r.flagged[row] {
				s = reportFlag
			}
			if len(align) > 0 {
				s = s.Align(align[min(col, len(align)-1)])
			}
			return s
		})
	if len(headers) > 0 {
		r.t.Headers(headers...)
	}
	return r
}

// Row appends a data row.
func (r *report) Row(cells ...string) {
	r.add(false, cells)
}

// Flag appends a data row highlighted in red.
func (r *report) Flag(cells ...string) {
	r.add(true, cells)
}

func (r *report) add(flagged bool, cells []string) {
	r.flagged = append(r.flagged, flagged)
	r.t.Row(cells...)
}

// NumFlagged returns how many rows were highlighted.
func (r *report) NumFlagged() int {
	var count int
	for _, f := range r.flagged {
		if f {
			count++
		}
	}
	return count
}

// Render returns the table as a string, ready to print.
func (r *report) Render() string { return r.t.Render() }
