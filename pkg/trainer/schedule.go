// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

// LinearDecay keeps the learning rate constant for the first EpochStep epochs, and then decays it
// linearly to 0 at epoch Epochs.
type LinearDecay struct {
	LearningRate      float64
	Epochs, EpochStep int
}

// At returns the learning rate for the given 0-based epoch.
func (s LinearDecay) At(epoch int) float64 {
	if epoch < s.EpochStep {
		return s.LearningRate
	}
	if epoch >= s.Epochs || s.Epochs <= s.EpochStep {
		return 0
	}
	return s.LearningRate * float64(s.Epochs-epoch) / float64(s.Epochs-s.EpochStep)
}
