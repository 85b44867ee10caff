// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package inference translates the test images of one domain with a trained model, and writes an HTML
// index comparing inputs and outputs.
package inference

import (
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gomlx/cyclegan/pkg/cyclegan"
	"github.com/gomlx/cyclegan/pkg/dataset"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Options configure a Runner.
type Options struct {
	// DatasetDir holds testA and testB, see package dataset.
	DatasetDir string

	// CheckpointDir from where the model is loaded.
	CheckpointDir string

	// TestDir where translated images and the index are written.
	TestDir string

	Direction Direction

	// StyleImage is an optional domain B image whose style code is used for AtoB translations.
	// If empty, the zero style code is used.
	StyleImage string
}

// Translation of one test image.
type Translation struct {
	Input, Output string
}

// Report of a Runner.Run.
type Report struct {
	Direction Direction

	// CheckpointLoaded is false if the model could not be restored, and the translations were done
	// with freshly initialized parameters.
	CheckpointLoaded bool

	Translations []Translation

	// Skipped input images, that could not be read.
	Skipped []string

	// IndexPath is the HTML index comparing inputs and outputs.
	IndexPath string
}

// Runner translates all test images of one domain.
type Runner struct {
	opts             Options
	model            *cyclegan.Model
	checkpointLoaded bool
	loaderA, loaderB *dataset.Loader
}

// New loads the latest checkpoint into ctx and creates the model.
//
// A checkpoint that can't be loaded is not fatal: it is logged and the runner continues with a freshly
// initialized model, see Report.CheckpointLoaded.
func New(backend backends.Backend, ctx *context.Context, opts Options) (*Runner, error) {
	if opts.Direction != AtoB && opts.Direction != BtoA {
		return nil, errors.Errorf("invalid direction %d", opts.Direction)
	}
	var err error
	for _, dir := range []*string{&opts.DatasetDir, &opts.CheckpointDir, &opts.TestDir} {
		if *dir, err = fsutil.ReplaceTildeInDir(*dir); err != nil {
			return nil, err
		}
	}
	r := &Runner{opts: opts}
	if opts.CheckpointDir != "" {
		r.checkpointLoaded = cyclegan.LoadCheckpoint(ctx, opts.CheckpointDir)
	} else {
		klog.Errorf("No checkpoint directory given, using freshly initialized model")
	}
	if !r.checkpointLoaded {
		ctx.RngStateFromSeed(int64(context.GetParamOr(ctx, cyclegan.ParamSeed, 0)))
	}
	if r.model, err = cyclegan.New(backend, ctx); err != nil {
		return nil, err
	}
	cfg := r.model.Config()
	r.loaderA = dataset.NewLoader(cfg.ImageSize, cfg.InputChannels)
	r.loaderB = dataset.NewLoader(cfg.ImageSize, cfg.OutputChannels)
	return r, nil
}

// Model used for the translations.
func (r *Runner) Model() *cyclegan.Model { return r.model }

// Run translates the test images one at a time and writes the outputs and the index to the test directory.
//
// AtoB outputs are grouped as the inputs: testA/<group>/<name> is written to <test_dir>/<group>/<name>.
// BtoA outputs are written to <test_dir>/<name>.
func (r *Runner) Run() (*Report, error) {
	report := &Report{Direction: r.opts.Direction, CheckpointLoaded: r.checkpointLoaded}
	var inputs []string
	var err error
	if r.opts.Direction == AtoB {
		inputs, err = dataset.ListDomainA(r.opts.DatasetDir, "test")
	} else {
		inputs, err = dataset.ListDomainB(r.opts.DatasetDir, "test")
	}
	if err != nil {
		return nil, err
	}
	if err = os.MkdirAll(r.opts.TestDir, checkpoints.DirPermMode); err != nil {
		return nil, errors.Wrapf(err, "failed to create test directory %q", r.opts.TestDir)
	}

	var style *tensors.Tensor
	if r.opts.Direction == AtoB {
		if style, err = r.style(); err != nil {
			return nil, err
		}
	}

	for _, input := range inputs {
		output := filepath.Join(r.opts.TestDir, filepath.Base(input))
		if r.opts.Direction == AtoB {
			groupDir := filepath.Join(r.opts.TestDir, filepath.Base(filepath.Dir(input)))
			if err = os.MkdirAll(groupDir, checkpoints.DirPermMode); err != nil {
				return nil, errors.Wrapf(err, "failed to create directory %q", groupDir)
			}
			output = filepath.Join(groupDir, filepath.Base(input))
		}
		klog.V(1).Infof("Processing image %s", input)

		var img image.Image
		img, err = r.translate(input, style)
		if err != nil {
			if errors.Is(err, errUnreadable) {
				klog.Errorf("Skipping %q: %+v", input, err)
				report.Skipped = append(report.Skipped, input)
				continue
			}
			return nil, err
		}
		if err = imaging.Save(img, output); err != nil {
			return nil, errors.Wrapf(err, "failed to save %q", output)
		}
		report.Translations = append(report.Translations, Translation{Input: input, Output: output})
	}

	report.IndexPath = filepath.Join(r.opts.TestDir, IndexFileName(r.opts.Direction))
	if err = writeIndex(report.IndexPath, report.Translations); err != nil {
		return nil, err
	}
	return report, nil
}

var errUnreadable = errors.New("unreadable image")

// style returns the style code used for AtoB translations, shaped [1, output_style_dim].
func (r *Runner) style() (*tensors.Tensor, error) {
	if r.opts.StyleImage == "" {
		return r.model.ZeroStyle(1), nil
	}
	styleImage, err := r.loaderB.LoadBatch([]string{r.opts.StyleImage})
	if err != nil {
		return nil, errors.WithMessage(err, "style image")
	}
	_, style, err := r.model.TranslateB2A(styleImage)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("Using style of %s", r.opts.StyleImage)
	return style, nil
}

func (r *Runner) translate(input string, style *tensors.Tensor) (image.Image, error) {
	var translated *tensors.Tensor
	if r.opts.Direction == AtoB {
		imagesA, err := r.loaderA.LoadBatch([]string{input})
		if err != nil {
			return nil, errors.Wrap(errUnreadable, err.Error())
		}
		if translated, err = r.model.TranslateA2B(imagesA, style); err != nil {
			return nil, err
		}
	} else {
		imagesB, err := r.loaderB.LoadBatch([]string{input})
		if err != nil {
			return nil, errors.Wrap(errUnreadable, err.Error())
		}
		if translated, _, err = r.model.TranslateB2A(imagesB); err != nil {
			return nil, err
		}
	}
	images, err := dataset.ToImages(translated)
	if err != nil {
		return nil, err
	}
	return images[0], nil
}
