// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// MaxGridColumns is the maximum number of images per row in a grid.
const MaxGridColumns = 16

// Grid tiles the images, all of the size of the first one, left-to-right and top-to-bottom with up to
// MaxGridColumns images per row.
func Grid(images []image.Image) image.Image {
	if len(images) == 0 {
		return imaging.New(0, 0, color.Black)
	}
	size := images[0].Bounds().Size()
	cols := min(len(images), MaxGridColumns)
	rows := (len(images) + cols - 1) / cols
	grid := imaging.New(cols*size.X, rows*size.Y, color.Black)
	for ii, img := range images {
		pos := image.Pt((ii%cols)*size.X, (ii/cols)*size.Y)
		grid = imaging.Paste(grid, img, pos)
	}
	return grid
}

// SaveGrid saves the images as one grid, see Grid. The format is taken from the file extension.
// The parent directory is created if needed.
func SaveGrid(path string, images []image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %q", path)
	}
	if err := imaging.Save(Grid(images), path, imaging.JPEGQuality(95)); err != nil {
		return errors.Wrapf(err, "failed to save image grid to %q", path)
	}
	return nil
}

// SaveTensorGrid converts the batch of images in t (see ToImages) and saves them as a grid.
func SaveTensorGrid(path string, t *tensors.Tensor) error {
	images, err := ToImages(t)
	if err != nil {
		return errors.WithMessagef(err, "saving %q", path)
	}
	return SaveGrid(path, images)
}
