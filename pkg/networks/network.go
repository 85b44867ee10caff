// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package networks

import (
	"strings"

	"github.com/gomlx/gomlx/pkg/ml/context"
)

// Absolute scopes of the networks' variables.
const (
	ScopeGeneratorB2A   = "/generatorB2A"
	ScopeGeneratorA2B   = "/generatorA2B"
	ScopeDiscriminatorA = "/discriminatorA"
	ScopeDiscriminatorB = "/discriminatorB"
)

// network holds what is common to all network handles: the configuration, the normalization
// strategy and the scope that owns its variables.
type network struct {
	cfg   Config
	norm  Normalizer
	scope string
}

func newNetwork(cfg Config, scope string) (network, error) {
	if err := cfg.Validate(); err != nil {
		return network{}, err
	}
	norm, err := NormalizerByName(cfg.Normalization)
	if err != nil {
		return network{}, err
	}
	return network{cfg: cfg, norm: norm, scope: scope}, nil
}

// Scope returns the absolute scope holding the network variables.
func (n network) Scope() string { return n.scope }

// Owns returns whether the variable scope belongs to the network.
func (n network) Owns(variableScope string) bool {
	return variableScope == n.scope || strings.HasPrefix(variableScope, n.scope+context.ScopeSeparator)
}

// scopedContext returns ctx moved to the network scope, set to create the variables if none
// exist yet, or to reuse them otherwise (e.g.: second invocation in a graph, another graph, or
// variables loaded from a checkpoint).
func (n network) scopedContext(ctx *context.Context) *context.Context {
	scoped := ctx.InAbsPath(n.scope)
	for range scoped.IterVariablesInScope() {
		return scoped.Reuse()
	}
	return scoped.Unique()
}
