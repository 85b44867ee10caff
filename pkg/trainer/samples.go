// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"fmt"
	"path/filepath"

	"github.com/gomlx/cyclegan/pkg/dataset"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// SampleNames are the prefixes of the sample grids written by SaveSamples.
var SampleNames = []string{"realA", "fakeA", "reconA", "realB", "fakeB", "reconB"}

// SampleFileName returns the file name of a sample grid.
func SampleFileName(name string, epoch, batchIdx int) string {
	return fmt.Sprintf("%s_%02d_%04d.jpg", name, epoch, batchIdx)
}

// SaveSamples translates and reconstructs a random batch of test images in inference mode, and writes
// one grid per tensor (see SampleNames) in the sample directory.
//
// If there are no test images for one of the domains, it logs a warning and does nothing.
func (t *Trainer) SaveSamples(epoch, batchIdx int) error {
	batchSize := min(t.batchSize, len(t.testA), len(t.testB))
	if batchSize == 0 {
		klog.Warningf("No test images in %q to sample from", t.opts.DatasetDir)
		return nil
	}
	filesA := dataset.Shuffled(t.rng, t.testA)[:batchSize]
	filesB := dataset.Shuffled(t.rng, t.testB)[:batchSize]
	realA, err := t.testLoaderA.LoadBatch(filesA)
	if err != nil {
		klog.Errorf("Skipping samples at epoch %d, batch %d: %+v", epoch, batchIdx, err)
		return nil
	}
	realB, err := t.testLoaderB.LoadBatch(filesB)
	if err != nil {
		klog.Errorf("Skipping samples at epoch %d, batch %d: %+v", epoch, batchIdx, err)
		return nil
	}
	sample, err := t.model.Sample(realA, realB)
	if err != nil {
		return err
	}
	grids := []*tensors.Tensor{realA, sample.FakeA, sample.ReconA, realB, sample.FakeB, sample.ReconB}
	for ii, name := range SampleNames {
		path := filepath.Join(t.opts.SampleDir, SampleFileName(name, epoch, batchIdx))
		if err = dataset.SaveTensorGrid(path, grids[ii]); err != nil {
			return errors.WithMessage(err, "saving samples")
		}
	}
	klog.V(1).Infof("Samples saved to %s", filepath.Join(t.opts.SampleDir, SampleFileName("*", epoch, batchIdx)))
	return nil
}
