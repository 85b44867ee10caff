// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// cyclegan trains a style-disentangled CycleGAN on an unpaired dataset, or translates the test images
// of one of the domains with a trained model.
//
// Hyperparameters are set with -set, e.g.:
//
//	cyclegan -dataset_dir=~/work/fonts -set="batch_size=4;fine_size=64;input_nc=1"
//	cyclegan -phase=test -which_direction=AtoB -style_image=~/work/fonts/testB/sample.png
package main

import (
	"flag"
	"fmt"

	"github.com/gomlx/cyclegan/pkg/cyclegan"
	"github.com/gomlx/cyclegan/pkg/inference"
	"github.com/gomlx/cyclegan/pkg/trainer"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	flagDatasetDir    = flag.String("dataset_dir", "~/work/cyclegan/datasets", "Directory with trainA, trainB, testA and testB.")
	flagPhase         = flag.String("phase", "train", "Either \"train\" or \"test\".")
	flagCheckpointDir = flag.String("checkpoint_dir", "./checkpoint", "Directory where checkpoints are saved to and loaded from.")
	flagSampleDir     = flag.String("sample_dir", "./sample", "Directory where the sample image grids are saved during training.")
	flagLogDir        = flag.String("log_dir", "", "Directory where the loss plot points are saved. Defaults to -checkpoint_dir.")
	flagTestDir       = flag.String("test_dir", "./test", "Directory where translated test images are saved.")
	flagDirection     = flag.String("which_direction", "AtoB", "Translation direction for the test phase: AtoB or BtoA.")
	flagContinue      = flag.Bool("continue_train", false, "Continue training from the latest checkpoint. Otherwise existing checkpoints are moved aside.")
	flagStyleImage    = flag.String("style_image", "", "Domain B image whose style is used for AtoB test translations. If empty the zero style is used.")
	flagPlot          = flag.Bool("plot", true, "Plot the losses at the end of training.")
	flagQuiet         = flag.Bool("quiet", false, "Disable the progress bar.")
)

func main() {
	ctx := cyclegan.CreateDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()
	paramsSet := must.M1(commandline.ParseContextSettings(ctx, *settings))

	// Validate the phase and direction before anything is written.
	var direction inference.Direction
	switch *flagPhase {
	case "train":
	case "test":
		var err error
		direction, err = inference.ParseDirection(*flagDirection)
		if err != nil {
			klog.Fatalf("Invalid -which_direction: %v", err)
		}
	default:
		klog.Fatalf("Invalid -phase=%q, it must be \"train\" or \"test\"", *flagPhase)
	}

	backend := backends.MustNew()
	fmt.Printf("Backend %q:\t%s\n", backend.Name(), backend.Description())
	if len(paramsSet) > 0 {
		fmt.Printf("Hyperparameters set:\n%s\n", commandline.SprintModifiedContextSettings(ctx, paramsSet))
	}

	err := exceptions.TryCatch[error](func() {
		if *flagPhase == "train" {
			train(backend, ctx, paramsSet)
		} else {
			test(backend, ctx, direction)
		}
	})
	if err != nil {
		klog.Fatalf("Failed with error: %+v", err)
	}
}

func train(backend backends.Backend, ctx *context.Context, paramsSet []string) {
	tr := must.M1(trainer.New(backend, ctx, trainer.Options{
		DatasetDir:    *flagDatasetDir,
		CheckpointDir: *flagCheckpointDir,
		SampleDir:     *flagSampleDir,
		LogDir:        *flagLogDir,
		ContinueTrain: *flagContinue,
		ParamsSet:     paramsSet,
		Plot:          *flagPlot,
		Quiet:         *flagQuiet,
	}))
	defer tr.Model().Finalize()
	if tr.Restored() {
		fmt.Printf("Continuing run %s from step %d (epoch %d)\n", tr.RunID(), tr.Model().Step(), tr.StartEpoch())
	}
	must.M(tr.Run())
}

func test(backend backends.Backend, ctx *context.Context, direction inference.Direction) {
	runner := must.M1(inference.New(backend, ctx, inference.Options{
		DatasetDir:    *flagDatasetDir,
		CheckpointDir: *flagCheckpointDir,
		TestDir:       *flagTestDir,
		Direction:     direction,
		StyleImage:    *flagStyleImage,
	}))
	defer runner.Model().Finalize()
	report := must.M1(runner.Run())
	if report.CheckpointLoaded {
		fmt.Println(" [*] Load SUCCESS")
	} else {
		fmt.Println(" [!] Load failed...")
	}
	fmt.Printf("%d images translated %s, %d skipped: see %s\n",
		len(report.Translations), report.Direction, len(report.Skipped), report.IndexPath)
}
