// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package trainer implements the CycleGAN training loop: for each batch it runs a generator step,
// feeds the generated images through the replay pool, and then runs a discriminator step.
//
// Along the way it writes sample image grids, checkpoints and the loss plot points.
package trainer

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/cyclegan/pkg/cyclegan"
	"github.com/gomlx/cyclegan/pkg/dataset"
	"github.com/gomlx/cyclegan/pkg/imagepool"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/gomlx/ui/plots"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Options of the Trainer that are not hyperparameters.
type Options struct {
	// DatasetDir holds trainA, trainB, testA and testB, see package dataset.
	DatasetDir string

	// CheckpointDir where checkpoints are saved, and restored from if ContinueTrain is set.
	CheckpointDir string

	// SampleDir where the sample image grids are written.
	SampleDir string

	// LogDir where the loss plot points and the losses plot are written.
	LogDir string

	// ContinueTrain restores the latest checkpoint in CheckpointDir. Otherwise, existing checkpoints are
	// moved aside.
	ContinueTrain bool

	// ParamsSet are the hyperparameters set in the command line: they take precedence over the ones
	// restored from a checkpoint.
	ParamsSet []string

	// Plot the loss curves to LogDir/LossesPlotFileName at the end of training.
	Plot bool

	// Quiet disables the progress bar and the final summary.
	Quiet bool
}

// Trainer holds the state of a training session.
type Trainer struct {
	opts       Options
	ctx        *context.Context
	model      *cyclegan.Model
	checkpoint *checkpoints.Handler
	restored   bool
	runID      string

	rng      *rand.Rand
	pool     *imagepool.Pool[*tensors.Tensor]
	schedule LinearDecay

	batchSize, trainSize, numEpochs int
	sampleFreq, saveFreq            int64

	trainA, trainB, testA, testB []string
	loaderA, loaderB             *dataset.Loader
	testLoaderA, testLoaderB     *dataset.Loader

	points     chan<- plots.Point
	pointsErr  <-chan error
	lastLosses []metric
}

// New creates a Trainer for the hyperparameters in ctx, which must be at the root scope.
//
// The checkpoint is opened (and restored, with Options.ContinueTrain) before the model is created, so the
// model reuses the restored variables. A checkpoint that fails to restore is logged, and training starts
// from scratch.
func New(backend backends.Backend, ctx *context.Context, opts Options) (*Trainer, error) {
	var err error
	for _, dir := range []*string{&opts.DatasetDir, &opts.CheckpointDir, &opts.SampleDir, &opts.LogDir} {
		if *dir, err = fsutil.ReplaceTildeInDir(*dir); err != nil {
			return nil, err
		}
	}
	if opts.CheckpointDir == "" {
		return nil, errors.New("a checkpoint directory is required for training")
	}
	if opts.SampleDir == "" {
		opts.SampleDir = filepath.Join(opts.CheckpointDir, "samples")
	}
	if opts.LogDir == "" {
		opts.LogDir = opts.CheckpointDir
	}

	t := &Trainer{opts: opts, ctx: ctx}
	t.checkpoint, t.restored, err = cyclegan.OpenCheckpoint(ctx, cyclegan.CheckpointOptions{
		Dir:           opts.CheckpointDir,
		Keep:          context.GetParamOr(ctx, cyclegan.ParamNumCheckpoints, 3),
		Restore:       opts.ContinueTrain,
		ExcludeParams: append(opts.ParamsSet, cyclegan.ParamsExcludedFromSaving...),
	})
	if err != nil {
		return nil, err
	}
	if opts.ContinueTrain && !t.restored {
		klog.Errorf("No checkpoint restored from %q, training from scratch", opts.CheckpointDir)
	}

	seed := int64(context.GetParamOr(ctx, cyclegan.ParamSeed, 0))
	if !t.restored {
		ctx.RngStateFromSeed(seed)
	}
	t.runID = context.GetParamOr(ctx, cyclegan.ParamRunID, "")
	if t.runID == "" {
		t.runID = uuid.NewString()
		ctx.SetParam(cyclegan.ParamRunID, t.runID)
	}

	t.model, err = cyclegan.New(backend, ctx)
	if err != nil {
		return nil, err
	}
	cfg := t.model.Config()

	t.batchSize = context.GetParamOr(ctx, cyclegan.ParamBatchSize, 1)
	t.trainSize = context.GetParamOr(ctx, cyclegan.ParamTrainSize, 1_000_000)
	t.numEpochs = context.GetParamOr(ctx, cyclegan.ParamEpochs, 200)
	t.sampleFreq = int64(context.GetParamOr(ctx, cyclegan.ParamSampleFreq, 100))
	t.saveFreq = int64(context.GetParamOr(ctx, cyclegan.ParamSaveFreq, 1000))
	if t.batchSize <= 0 || t.sampleFreq <= 0 || t.saveFreq <= 0 {
		return nil, errors.Errorf("%s, %s and %s must be > 0, got %d, %d and %d",
			cyclegan.ParamBatchSize, cyclegan.ParamSampleFreq, cyclegan.ParamSaveFreq,
			t.batchSize, t.sampleFreq, t.saveFreq)
	}
	t.schedule = LinearDecay{
		LearningRate: context.GetParamOr(ctx, cyclegan.ParamLearningRate, 2e-4),
		Epochs:       t.numEpochs,
		EpochStep:    context.GetParamOr(ctx, cyclegan.ParamEpochStep, 100),
	}

	// Seeded from the step, so continued training doesn't repeat the same shuffles.
	t.rng = rand.New(rand.NewSource(seed + t.model.Step()))
	t.pool = imagepool.New[*tensors.Tensor](context.GetParamOr(ctx, cyclegan.ParamPoolSize, 50), seed+t.model.Step()+1).
		WithReplaceProbability(context.GetParamOr(ctx, cyclegan.ParamPoolProbability, imagepool.DefaultReplaceProbability))
	loadSize := context.GetParamOr(ctx, cyclegan.ParamLoadSize, cfg.ImageSize)
	t.loaderA = dataset.NewLoader(cfg.ImageSize, cfg.InputChannels).WithAugmentation(loadSize, t.rng)
	t.loaderB = dataset.NewLoader(cfg.ImageSize, cfg.OutputChannels).WithAugmentation(loadSize, t.rng)
	t.testLoaderA = dataset.NewLoader(cfg.ImageSize, cfg.InputChannels)
	t.testLoaderB = dataset.NewLoader(cfg.ImageSize, cfg.OutputChannels)

	if t.trainA, err = dataset.ListDomainA(opts.DatasetDir, "train"); err != nil {
		return nil, err
	}
	if t.trainB, err = dataset.ListDomainB(opts.DatasetDir, "train"); err != nil {
		return nil, err
	}
	if t.testA, err = dataset.ListDomainA(opts.DatasetDir, "test"); err != nil {
		return nil, err
	}
	if t.testB, err = dataset.ListDomainB(opts.DatasetDir, "test"); err != nil {
		return nil, err
	}
	if t.BatchesPerEpoch() == 0 {
		return nil, errors.Errorf("not enough training images in %q for one batch of %d: found %d A and %d B images",
			opts.DatasetDir, t.batchSize, len(t.trainA), len(t.trainB))
	}

	if err = os.MkdirAll(opts.LogDir, checkpoints.DirPermMode); err != nil {
		return nil, errors.Wrapf(err, "failed to create log directory %q", opts.LogDir)
	}
	// Loss points of a previous run are only kept in the log when continuing it.
	pointsPath := filepath.Join(opts.LogDir, plots.TrainingPlotFileName)
	if !t.restored {
		if err = cyclegan.SetAsideFiles(opts.LogDir, "previous", pointsPath); err != nil {
			return nil, err
		}
	}
	t.points, t.pointsErr = plots.CreatePointsWriter(pointsPath)
	return t, nil
}

// Model being trained.
func (t *Trainer) Model() *cyclegan.Model { return t.model }

// Restored reports whether the model state was restored from a checkpoint.
func (t *Trainer) Restored() bool { return t.restored }

// RunID identifies the training run, it's kept across continued training.
func (t *Trainer) RunID() string { return t.runID }

// BatchesPerEpoch is the number of training batches in one epoch. A train_size <= 0 doesn't limit it.
func (t *Trainer) BatchesPerEpoch() int {
	return dataset.NumBatches(len(t.trainA), len(t.trainB), t.batchSize, t.trainSize)
}

// StartEpoch is the epoch training starts (or continues) from.
func (t *Trainer) StartEpoch() int {
	return int(t.model.Step()) / t.BatchesPerEpoch()
}

// StartBatch is the batch of StartEpoch training starts from: when continuing from a checkpoint saved
// mid-epoch, the number of batches of that epoch already trained.
// The continued epoch is reshuffled, so it trains on the remaining count of batches, not on the same files.
func (t *Trainer) StartBatch() int {
	return int(t.model.Step()) % t.BatchesPerEpoch()
}

// Run trains from StartEpoch until the last epoch, and then saves a final checkpoint and the losses plot.
func (t *Trainer) Run() error {
	pointsClosed := false
	closePoints := func() error {
		if pointsClosed {
			return nil
		}
		pointsClosed = true
		close(t.points)
		return <-t.pointsErr
	}
	defer func() { _ = closePoints() }()

	startEpoch, startBatch := t.StartEpoch(), t.StartBatch()
	klog.Infof("Training run %s: epochs %d to %d, %s batches per epoch",
		t.runID, startEpoch, t.numEpochs, humanize.Comma(int64(t.BatchesPerEpoch())))
	if startBatch > 0 {
		klog.Infof("Continuing epoch %d from batch %d", startEpoch, startBatch)
	}
	start := time.Now()
	for epoch := startEpoch; epoch < t.numEpochs; epoch++ {
		if err := t.runEpoch(epoch, startBatch); err != nil {
			return err
		}
		startBatch = 0
	}
	if err := t.checkpoint.Save(); err != nil {
		return err
	}
	if err := closePoints(); err != nil {
		return err
	}
	if t.opts.Plot && t.model.Step() > 0 {
		if err := PlotLosses(t.opts.LogDir); err != nil {
			return err
		}
	}
	if !t.opts.Quiet {
		fmt.Println(t.summary(time.Since(start)))
	}
	return nil
}

// numParameters counts the scalar values in the trainable variables. Variables are only created once
// the first step runs.
func (t *Trainer) numParameters() int {
	var count int
	for _, group := range cyclegan.ParamGroups {
		for _, v := range t.model.GroupVariables(group) {
			count += v.Shape().Size()
		}
	}
	return count
}

// runEpoch trains the batches of epoch from firstBatch on.
func (t *Trainer) runEpoch(epoch, firstBatch int) error {
	epochData, err := dataset.NewEpoch(t.rng, t.trainA, t.trainB, t.batchSize, t.trainSize)
	if err != nil {
		return err
	}
	learningRate := t.schedule.At(epoch)
	klog.V(1).Infof("Epoch %d: learning rate %g", epoch, learningRate)

	var bar *progress
	if !t.opts.Quiet {
		bar = newProgress(epochData.NumBatches()-firstBatch, fmt.Sprintf("Epoch %d/%d", epoch+1, t.numEpochs))
		defer bar.Close()
	}
	for idx := firstBatch; idx < epochData.NumBatches(); idx++ {
		stepStart := time.Now()
		realA, realB, err := t.loadBatch(epochData.Batch(idx))
		if err != nil {
			klog.Errorf("Skipping batch %d of epoch %d: %+v", idx, epoch, err)
			if bar != nil {
				bar.Add(1, t.statRows(learningRate, time.Since(stepStart))...)
			}
			continue
		}
		step, err := t.trainStep(realA, realB, learningRate)
		if err != nil {
			return errors.WithMessagef(err, "epoch %d, batch %d", epoch, idx)
		}
		if bar != nil {
			bar.Add(1, t.statRows(learningRate, time.Since(stepStart))...)
		}

		if step%t.sampleFreq == 0 {
			if err = t.SaveSamples(epoch, idx); err != nil {
				return err
			}
		}
		if step%t.saveFreq == 0 {
			if err = t.checkpoint.Save(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Trainer) loadBatch(filesA, filesB []string) (realA, realB *tensors.Tensor, err error) {
	if realA, err = t.loaderA.LoadBatch(filesA); err != nil {
		return
	}
	realB, err = t.loaderB.LoadBatch(filesB)
	return
}

// trainStep runs the generator step, passes the generated images through the pool, and runs the
// discriminator step. It returns the updated training counter.
func (t *Trainer) trainStep(realA, realB *tensors.Tensor, learningRate float64) (int64, error) {
	gen, err := t.model.GeneratorStep(realA, realB, learningRate)
	if err != nil {
		return 0, err
	}
	fakes := t.pool.Query(gen.FakeA, gen.FakeB)
	disc, step, err := t.model.DiscriminatorStep(realA, realB, fakes[0], fakes[1], learningRate)
	if err != nil {
		return 0, err
	}
	t.lastLosses = stepMetrics(gen.Losses, disc)
	writePoints(t.points, step, t.lastLosses)
	return step, nil
}

func (t *Trainer) statRows(learningRate float64, stepDuration time.Duration) []statRow {
	rows := []statRow{
		{"Global step", humanize.Comma(t.model.Step())},
		{"Learning rate", fmt.Sprintf("%.3g", learningRate)},
		{"Step duration", commandline.FormatDuration(stepDuration)},
	}
	for _, m := range t.lastLosses {
		if isSummaryMetric(m.Short) {
			rows = append(rows, statRow{m.Name, formatLoss(m.Value)})
		}
	}
	return rows
}
