// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"image"
	"math/rand"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Loader reads image files and prepares them to be fed to the model: converted to the number
// of channels of the domain and resized to a square of fineSize pixels.
//
// With augmentation (see WithAugmentation) images are first resized to loadSize, randomly cropped to
// fineSize and randomly flipped horizontally.
type Loader struct {
	fineSize, channels int

	augment  bool
	loadSize int
	rng      *rand.Rand
}

// NewLoader creates a Loader for square images of fineSize pixels with the given number of
// channels (1 or 3).
func NewLoader(fineSize, channels int) *Loader {
	return &Loader{fineSize: fineSize, channels: channels}
}

// WithAugmentation enables random crop and flip: images are resized to loadSize before cropping.
// If loadSize < fineSize, no cropping happens.
func (l *Loader) WithAugmentation(loadSize int, rng *rand.Rand) *Loader {
	l.augment = true
	l.loadSize = max(loadSize, l.fineSize)
	l.rng = rng
	return l
}

// FineSize is the size of the images returned.
func (l *Loader) FineSize() int { return l.fineSize }

// Channels of the images returned.
func (l *Loader) Channels() int { return l.channels }

// Open reads and decodes the image file.
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read image %q", path)
	}
	return img, nil
}

// Prepare converts and resizes img.
func (l *Loader) Prepare(img image.Image) image.Image {
	if l.channels == 1 {
		img = imaging.Grayscale(img)
	}
	if !l.augment {
		return imaging.Resize(img, l.fineSize, l.fineSize, imaging.Lanczos)
	}
	img = imaging.Resize(img, l.loadSize, l.loadSize, imaging.Lanczos)
	if l.loadSize > l.fineSize {
		x := l.rng.Intn(l.loadSize - l.fineSize + 1)
		y := l.rng.Intn(l.loadSize - l.fineSize + 1)
		img = imaging.Crop(img, image.Rect(x, y, x+l.fineSize, y+l.fineSize))
	}
	if l.rng.Intn(2) == 1 {
		img = imaging.FlipH(img)
	}
	return img
}

// Load reads and prepares the images in paths.
func (l *Loader) Load(paths []string) ([]image.Image, error) {
	images := make([]image.Image, 0, len(paths))
	for _, path := range paths {
		img, err := Open(path)
		if err != nil {
			return nil, err
		}
		images = append(images, l.Prepare(img))
	}
	return images, nil
}

// LoadBatch reads and prepares the images in paths, and returns them as a tensor shaped
// [len(paths), fineSize, fineSize, channels] with values in [-1, 1].
func (l *Loader) LoadBatch(paths []string) (*tensors.Tensor, error) {
	images, err := l.Load(paths)
	if err != nil {
		return nil, err
	}
	return ToTensor(images, l.channels)
}
