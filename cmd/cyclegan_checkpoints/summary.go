// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/cyclegan/pkg/cyclegan"
	"github.com/gomlx/gomlx/pkg/ml/context"
)

// sizes accumulates the number of variables, parameters and bytes of a set of variables.
type sizes struct {
	vars, params int
	bytes        uintptr
}

func (s *sizes) add(v *context.Variable) {
	s.vars++
	s.params += v.Shape().Size()
	s.bytes += v.Shape().Memory()
}

func (s *sizes) row(name string) []string {
	return []string{name, humanize.Comma(int64(s.vars)), humanize.Comma(int64(s.params)), humanize.Bytes(uint64(s.bytes))}
}

// Summary renders the run identification and the sizes of the model variables and of the
// optimizer state, per parameter group.
func Summary(m *cyclegan.Model, checkpointDir string) string {
	ctx := m.Context()
	runID := context.GetParamOr(ctx, cyclegan.ParamRunID, "")
	header := newReport(nil, lipgloss.Right, lipgloss.Left)
	header.Row("checkpoint", checkpointDir)
	header.Row("run_id", runID)
	header.Row("global_step", humanize.Comma(m.Step()))

	groupSizes := make([]sizes, len(cyclegan.ParamGroups))
	optimizerSizes := make([]sizes, len(cyclegan.ParamGroups))
	var others sizes
	for v := range ctx.IterVariables() {
		if group, ok := m.GroupOf(v.Scope()); ok {
			groupSizes[group].add(v)
			continue
		}
		found := false
		for _, group := range cyclegan.ParamGroups {
			if group.OwnsOptimizerState(v.Scope()) {
				optimizerSizes[group].add(v)
				found = true
				break
			}
		}
		if !found {
			others.add(v)
		}
	}

	table := newReport([]string{"Variables", "# variables", "# parameters", "# bytes"}, lipgloss.Left, lipgloss.Right)
	var total sizes
	for _, group := range cyclegan.ParamGroups {
		table.Row(groupSizes[group].row(group.String())...)
		table.Row(optimizerSizes[group].row(group.String() + " optimizer")...)
		for _, s := range []sizes{groupSizes[group], optimizerSizes[group]} {
			total.vars += s.vars
			total.params += s.params
			total.bytes += s.bytes
		}
	}
	table.Row(others.row("other")...)
	total.vars += others.vars
	total.params += others.params
	total.bytes += others.bytes
	table.Row(total.row("total")...)
	return lipgloss.JoinVertical(lipgloss.Left, header.Render(), table.Render())
}
