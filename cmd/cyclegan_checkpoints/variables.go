// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/cyclegan/pkg/cyclegan"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

var (
	flagVars           = flag.Bool("vars", false, "Lists the variables, with their MAV, RMS and MaxAV. Variables with non-finite values are shown in red.")
	flagResetOptimizer = flag.String("reset_optimizer", "", "Deletes the optimizer state (learning rate, step counter and Adam moments) "+
		"of the given parameter group (\"generator\" or \"discriminator\") and saves a new checkpoint.")
)

// ListVariables lists the variables of the checkpoint with their shape and the MAV (mean absolute value),
// RMS (root-mean-square) and MaxAV (max absolute value) of their values.
func ListVariables(backend backends.Backend, ctx *context.Context) (*report, error) {
	statsExec, err := context.NewExec(backend, context.New(), func(_ *context.Context, x *Node) []*Node {
		x = ConvertDType(x, dtypes.Float64)
		return []*Node{
			ReduceAllMean(Abs(x)),
			Sqrt(ReduceAllMean(Square(x))),
			ReduceAllMax(Abs(x)),
		}
	})
	if err != nil {
		return nil, err
	}
	statsExec.SetMaxCache(-1)

	type varRow struct {
		cells []string
		isRed bool
	}
	var rows []varRow
	for v := range ctx.IterVariables() {
		if !v.IsValid() {
			rows = append(rows, varRow{cells: []string{v.Scope(), v.Name(), "<invalid>", "", "", "", "", ""}, isRed: true})
			continue
		}
		shape := v.Shape()
		value := v.Value()
		row := varRow{cells: []string{
			v.Scope(), v.Name(), shape.String(),
			humanize.Comma(int64(shape.Size())),
			humanize.Bytes(uint64(shape.Memory())),
			"", "", "",
		}}
		if shape.Size() == 1 {
			row.cells[5] = fmt.Sprintf("%v", value.Value())
		} else if shape.DType.IsFloat() {
			var stats []*tensors.Tensor
			var execErr error
			err = exceptions.TryCatch[error](func() { stats, execErr = statsExec.Exec(value) })
			if err == nil {
				err = execErr
			}
			if err != nil {
				return nil, errors.WithMessagef(err, "statistics of %q in scope %q", v.Name(), v.Scope())
			}
			for ii, stat := range stats {
				s := tensors.ToScalar[float64](stat)
				row.cells[5+ii] = fmt.Sprintf("%.3g", s)
				if math.IsNaN(s) || math.IsInf(s, 0) {
					row.isRed = true
				}
			}
		}
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b varRow) int {
		if c := strings.Compare(a.cells[0], b.cells[0]); c != 0 {
			return c
		}
		return strings.Compare(a.cells[1], b.cells[1])
	})

	table := newReport([]string{"Scope", "Name", "Shape", "Size", "Bytes", "Scalar/MAV", "RMS", "MaxAV"})
	for _, row := range rows {
		if row.isRed {
			table.Flag(row.cells...)
		} else {
			table.Row(row.cells...)
		}
	}
	return table, nil
}

// resetOptimizer deletes the optimizer state of the named parameter group and saves a new checkpoint.
// Training continued from it restarts the group's Adam moments.
func resetOptimizer(checkpointDir, groupName string) error {
	idx := slices.IndexFunc(cyclegan.ParamGroups, func(group cyclegan.ParamGroup) bool { return group.String() == groupName })
	if idx < 0 {
		return errors.Errorf("unknown parameter group %q, valid values are %q", groupName, cyclegan.ParamGroups)
	}
	group := cyclegan.ParamGroups[idx]
	ctx := context.New()
	handler, err := checkpoints.Build(ctx).Dir(checkpointDir).Keep(-1).Immediate().Done()
	if err != nil {
		return err
	}
	var toDelete []*context.Variable
	for v := range ctx.IterVariables() {
		if group.OwnsOptimizerState(v.Scope()) {
			toDelete = append(toDelete, v)
		}
	}
	if len(toDelete) == 0 {
		fmt.Printf("No optimizer state found for %s.\n", group)
		return nil
	}
	for _, v := range toDelete {
		ctx.DeleteVariable(v.Scope(), v.Name())
	}
	if err = handler.Save(); err != nil {
		return err
	}
	fmt.Printf("%d %s optimizer variables deleted, new checkpoint saved.\n", len(toDelete), group)
	return nil
}
