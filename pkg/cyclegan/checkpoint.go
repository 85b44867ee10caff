// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cyclegan

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CheckpointOptions configure OpenCheckpoint.
type CheckpointOptions struct {
	// Dir holding the checkpoints.
	Dir string

	// Keep is the number of checkpoints to keep. Older ones are removed on Save.
	Keep int

	// Restore the latest checkpoint. If false, existing checkpoints are moved aside (see SetAside)
	// and training starts from scratch.
	Restore bool

	// ExcludeParams are hyperparameters not saved nor restored: usually those set in the command line
	// and ParamsExcludedFromSaving.
	ExcludeParams []string
}

// OpenCheckpoint creates the checkpoints handler attached to ctx (whose scope must be the root scope),
// restoring the latest checkpoint in the directory if so configured.
//
// A checkpoint that fails to load is not fatal: the error is logged, the checkpoint files are
// moved aside, and ctx is left to be freshly initialized. The returned restored flag tells whether
// the model state was restored.
func OpenCheckpoint(ctx *context.Context, opts CheckpointOptions) (handler *checkpoints.Handler, restored bool, err error) {
	dir, err := fsutil.ReplaceTildeInDir(opts.Dir)
	if err != nil {
		return nil, false, err
	}
	existing, err := listCheckpointFiles(dir)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 && !opts.Restore {
		if err = SetAside(dir, "previous"); err != nil {
			return nil, false, err
		}
		existing = nil
	}
	build := func() (*checkpoints.Handler, error) {
		return checkpoints.Build(ctx).
			Dir(dir).
			Keep(max(opts.Keep, 1)).
			ExcludeParams(opts.ExcludeParams...).
			Immediate().
			Done()
	}
	handler, err = build()
	if err == nil {
		return handler, len(existing) > 0, nil
	}
	if len(existing) == 0 {
		return nil, false, err
	}

	klog.Errorf("Failed to restore checkpoint from %q, starting from scratch: %+v", dir, err)
	if err = SetAside(dir, "corrupted"); err != nil {
		return nil, false, err
	}
	handler, err = build()
	if err != nil {
		return nil, false, err
	}
	return handler, false, nil
}

// LoadCheckpoint restores the latest checkpoint in dir into ctx, without configuring it for saving.
//
// Failures are logged and reported by returning false: ctx is then left to be freshly initialized.
func LoadCheckpoint(ctx *context.Context, dir string) bool {
	dir, err := fsutil.ReplaceTildeInDir(dir)
	if err == nil {
		_, err = checkpoints.Load(ctx).Dir(dir).Immediate().Done()
	}
	if err != nil {
		klog.Errorf("Failed to load checkpoint from %q, using freshly initialized model: %+v", dir, err)
		return false
	}
	return true
}

// SetAside moves all checkpoint files in dir to a new sub-directory named "<prefix>-<timestamp>".
func SetAside(dir, prefix string) error {
	files, err := listCheckpointFiles(dir)
	if err != nil {
		return err
	}
	return SetAsideFiles(dir, prefix, files...)
}

// SetAsideFiles moves the given files to the sub-directory "<prefix>-<timestamp>" of dir.
// Files that don't exist are ignored.
func SetAsideFiles(dir, prefix string, files ...string) error {
	var existing []string
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		} else if !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to stat %q", file)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	asideDir := filepath.Join(dir, prefix+"-"+time.Now().Format("20060102-150405"))
	if err := os.MkdirAll(asideDir, checkpoints.DirPermMode); err != nil {
		return errors.Wrapf(err, "failed to create %q", asideDir)
	}
	for _, file := range existing {
		if err := os.Rename(file, filepath.Join(asideDir, filepath.Base(file))); err != nil {
			return errors.Wrapf(err, "failed to move %q to %q", file, asideDir)
		}
	}
	klog.Warningf("Moved %d files from %q to %q", len(existing), dir, asideDir)
	return nil
}

// listCheckpointFiles returns the json and binary files of the checkpoints in dir.
func listCheckpointFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to list checkpoints directory %q", dir)
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "checkpoint-") {
			continue
		}
		if strings.HasSuffix(name, checkpoints.JsonNameSuffix) || strings.Contains(name, checkpoints.BinDataSuffix) {
			files = append(files, filepath.Join(dir, name))
		}
	}
	return files, nil
}
