// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package inference

import (
	"github.com/pkg/errors"
)

// Direction of the translation.
type Direction int

const (
	// AtoB translates domain A test images (testA/*/*) to domain B.
	AtoB Direction = iota

	// BtoA translates domain B test images (testB/*) to domain A.
	BtoA
)

var directionNames = []string{"AtoB", "BtoA"}

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return "InvalidDirection"
	}
	return directionNames[d]
}

// ParseDirection accepts "AtoB" or "BtoA".
func ParseDirection(name string) (Direction, error) {
	for ii, dirName := range directionNames {
		if name == dirName {
			return Direction(ii), nil
		}
	}
	return 0, errors.Errorf("invalid direction %q, it must be AtoB or BtoA", name)
}
