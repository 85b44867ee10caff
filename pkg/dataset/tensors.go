// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"image"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// DType of the image tensors.
var DType = dtypes.Float32

// ToTensor converts images of the same size to a tensor shaped [N, H, W, channels], with values
// in [-1, 1]. For channels == 1 the red channel is used, so images are expected to be gray already.
func ToTensor(images []image.Image, channels int) (*tensors.Tensor, error) {
	if len(images) == 0 {
		return nil, errors.New("no images to convert")
	}
	if channels != 1 && channels != 3 {
		return nil, errors.Errorf("images must have 1 or 3 channels, got %d", channels)
	}
	size := images[0].Bounds().Size()
	for ii, img := range images {
		if img.Bounds().Size() != size {
			return nil, errors.Errorf("image #%d has size %v, but image #0 has size %v", ii, img.Bounds().Size(), size)
		}
	}

	// Values in [0, 2], shifted to [-1, 1] below.
	rgb := timage.ToTensor(DType).MaxValue(2).Batch(images)
	if channels == 3 {
		tensors.MutableFlatData[float32](rgb, func(flat []float32) {
			for ii := range flat {
				flat[ii] -= 1
			}
		})
		return rgb, nil
	}
	flatRGB := tensors.CopyFlatData[float32](rgb)
	rgb.FinalizeAll()
	gray := make([]float32, len(flatRGB)/3)
	for ii := range gray {
		gray[ii] = flatRGB[3*ii] - 1
	}
	return tensors.FromFlatDataAndDimensions(gray, len(images), size.Y, size.X, 1), nil
}

// ToImages converts a tensor shaped [N, H, W, C] with values in [-1, 1] back to images. C must be 1 or 3.
// Values outside [-1, 1] are clipped.
func ToImages(t *tensors.Tensor) ([]image.Image, error) {
	if t.DType() != DType || t.Rank() != 4 {
		return nil, errors.Errorf("images tensor must be a rank-4 %s, got %s", DType, t.Shape())
	}
	dims := t.Shape().Dimensions
	channels := dims[3]
	if channels != 1 && channels != 3 {
		return nil, errors.Errorf("images tensor must have 1 or 3 channels, got %s", t.Shape())
	}
	flat := tensors.CopyFlatData[float32](t)
	numPixels := len(flat) / channels
	rgb := make([]float32, 3*numPixels)
	for ii := range numPixels {
		for c := range 3 {
			v := flat[ii*channels+min(c, channels-1)] + 1
			rgb[3*ii+c] = min(max(v, 0), 2)
		}
	}
	rgbTensor := tensors.FromFlatDataAndDimensions(rgb, dims[0], dims[1], dims[2], 3)
	defer rgbTensor.FinalizeAll()
	return timage.ToImage().MaxValue(2).Batch(rgbTensor), nil
}
