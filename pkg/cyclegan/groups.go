// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cyclegan

import (
	"fmt"
	"strings"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"k8s.io/klog/v2"
)

// ParamGroup is a disjoint set of trainable variables optimized by its own optimizer.
type ParamGroup int

const (
	// GeneratorGroup holds the variables of both generators.
	GeneratorGroup ParamGroup = iota

	// DiscriminatorGroup holds the variables of both discriminators.
	DiscriminatorGroup

	numParamGroups
)

// ParamGroups lists all parameter groups.
var ParamGroups = []ParamGroup{GeneratorGroup, DiscriminatorGroup}

// String implements fmt.Stringer.
func (group ParamGroup) String() string {
	switch group {
	case GeneratorGroup:
		return "generator"
	case DiscriminatorGroup:
		return "discriminator"
	default:
		return fmt.Sprintf("ParamGroup(%d)", int(group))
	}
}

// OptimizerScope is the absolute scope of the optimizer state of the group: its learning rate
// and step counter.
func (group ParamGroup) OptimizerScope() string {
	return context.ScopeSeparator + group.String() + "_optimizer"
}

// adamScope is the (absolute) scope name for the Adam moments of the group variables.
func (group ParamGroup) adamScope() string {
	return "adam_" + group.String()
}

// OwnsOptimizerState returns whether the variable scope holds optimizer state of the group: either
// under OptimizerScope or the Adam moments of its variables.
func (group ParamGroup) OwnsOptimizerState(scope string) bool {
	for _, prefix := range []string{group.OptimizerScope(), context.ScopeSeparator + group.adamScope()} {
		if scope == prefix || strings.HasPrefix(scope, prefix+context.ScopeSeparator) {
			return true
		}
	}
	return false
}

// GroupOf returns the parameter group owning a variable scope, or false if the scope belongs
// to no network (e.g.: optimizer state, training counter).
func (m *Model) GroupOf(scope string) (ParamGroup, bool) {
	switch {
	case m.GenB2A.Owns(scope), m.GenA2B.Owns(scope):
		return GeneratorGroup, true
	case m.DiscA.Owns(scope), m.DiscB.Owns(scope):
		return DiscriminatorGroup, true
	default:
		return 0, false
	}
}

// GroupVariables returns the variables of the group currently in the context.
func (m *Model) GroupVariables(group ParamGroup) []*context.Variable {
	var vars []*context.Variable
	for v := range m.ctx.IterVariables() {
		if g, ok := m.GroupOf(v.Scope()); ok && g == group {
			vars = append(vars, v)
		}
	}
	return vars
}

// minimize adds to the graph the update of the group's variables that minimizes loss.
//
// The gradient is only taken with respect to the group's variables: trainable variables of the
// other group used in the graph are temporarily frozen while the update is built.
// The learning rate is a scalar graph input.
func (m *Model) minimize(ctx *context.Context, group ParamGroup, loss, learningRate *Node) {
	g := loss.Graph()
	optCtx := ctx.InAbsPath(group.OptimizerScope())
	optimizers.LearningRateVarWithValue(optCtx, loss.DType(), 0).
		SetValueGraph(ConvertDType(learningRate, loss.DType()))

	var frozen []*context.Variable
	for v := range ctx.IterVariables() {
		if !v.Trainable || !v.InUseByGraph(g) {
			continue
		}
		if owner, ok := m.GroupOf(v.Scope()); !ok || owner != group {
			v.SetTrainable(false)
			frozen = append(frozen, v)
		}
	}
	defer func() {
		for _, v := range frozen {
			v.SetTrainable(true)
		}
	}()
	if klog.V(2).Enabled() {
		klog.Infof("%s step: %d trainable variables frozen", group, len(frozen))
	}
	m.optimizers[group].UpdateGraph(optCtx, g, loss)
}
