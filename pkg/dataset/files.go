// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dataset lists, loads and batches the unpaired image domains used to train and evaluate the
// CycleGAN models.
//
// The expected layout under the dataset directory is:
//
//	<phase>A/<group>/<image>   domain A, one sub-directory per group (e.g. per font or per class).
//	<phase>B/<image>           domain B, flat.
//
// Where phase is usually "train" or "test".
package dataset

import (
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
)

// ImageExtensions accepted when listing a domain, compared case-insensitively.
var ImageExtensions = []string{".png", ".jpg", ".jpeg"}

// ListDomainA returns the sorted image files matching "<datasetDir>/<phase>A/*/*".
func ListDomainA(datasetDir, phase string) ([]string, error) {
	return listImages(datasetDir, phase+"A", "*", "*")
}

// ListDomainB returns the sorted image files matching "<datasetDir>/<phase>B/*".
func ListDomainB(datasetDir, phase string) ([]string, error) {
	return listImages(datasetDir, phase+"B", "*")
}

func listImages(datasetDir string, patternParts ...string) ([]string, error) {
	datasetDir, err := fsutil.ReplaceTildeInDir(datasetDir)
	if err != nil {
		return nil, err
	}
	pattern := filepath.Join(append([]string{datasetDir}, patternParts...)...)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid pattern %q", pattern)
	}
	files := make([]string, 0, len(matches))
	for _, match := range matches {
		if !IsImageFile(match) {
			continue
		}
		info, err := os.Stat(match)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to stat %q", match)
		}
		if info.IsDir() {
			continue
		}
		files = append(files, match)
	}
	slices.Sort(files)
	return files, nil
}

// IsImageFile reports whether the file name has one of the ImageExtensions.
func IsImageFile(name string) bool {
	return slices.Contains(ImageExtensions, strings.ToLower(filepath.Ext(name)))
}

// Shuffled returns a shuffled copy of files.
func Shuffled(rng *rand.Rand, files []string) []string {
	files = slices.Clone(files)
	rng.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })
	return files
}

// Epoch is one pass over both domains: the files of each domain are shuffled independently, and the
// i-th batch pairs the i-th slices of each list. There is no correspondence between A and B images.
type Epoch struct {
	FilesA, FilesB []string
	BatchSize      int
	numBatches     int
}

// NumBatches per epoch for domains with numA and numB images: min(numA, numB, trainSize) examples
// divided by batchSize, rounded down. A trainSize <= 0 means no limit.
func NumBatches(numA, numB, batchSize, trainSize int) int {
	if batchSize <= 0 {
		return 0
	}
	numExamples := min(numA, numB)
	if trainSize > 0 {
		numExamples = min(numExamples, trainSize)
	}
	return numExamples / batchSize
}

// NewEpoch shuffles both domains with rng and limits the epoch to NumBatches batches.
func NewEpoch(rng *rand.Rand, filesA, filesB []string, batchSize, trainSize int) (*Epoch, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("invalid batch size %d", batchSize)
	}
	if len(filesA) == 0 || len(filesB) == 0 {
		return nil, errors.Errorf("both domains need images: got %d images for A and %d for B", len(filesA), len(filesB))
	}
	e := &Epoch{
		FilesA:     Shuffled(rng, filesA),
		FilesB:     Shuffled(rng, filesB),
		BatchSize:  batchSize,
		numBatches: NumBatches(len(filesA), len(filesB), batchSize, trainSize),
	}
	return e, nil
}

// NumBatches in the epoch. It can be 0 if there are fewer examples than the batch size.
func (e *Epoch) NumBatches() int { return e.numBatches }

// Batch returns the files of batch idx for each domain.
func (e *Epoch) Batch(idx int) (filesA, filesB []string) {
	start, end := idx*e.BatchSize, (idx+1)*e.BatchSize
	return e.FilesA[start:end], e.FilesB[start:end]
}
