// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package inference

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/cyclegan/pkg/cyclegan"
	"github.com/gomlx/cyclegan/pkg/dataset"
	"github.com/gomlx/cyclegan/pkg/networks"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("AtoB")
	require.NoError(t, err)
	assert.Equal(t, AtoB, d)
	d, err = ParseDirection("BtoA")
	require.NoError(t, err)
	assert.Equal(t, BtoA, d)
	assert.Equal(t, "BtoA_index.html", IndexFileName(d))

	for _, name := range []string{"", "atob", "AtoA", "BtoA "} {
		_, err = ParseDirection(name)
		require.Errorf(t, err, "direction %q", name)
	}
}

func TestImageSrc(t *testing.T) {
	assert.Equal(t, "/data/testB/x.png", imageSrc("/data/testB/x.png"))
	assert.Equal(t, ".."+string(filepath.Separator)+filepath.Join("datasets", "testB", "x.png"),
		imageSrc(filepath.Join("datasets", "testB", "x.png")))
}

func writeImage(t *testing.T, path string, c color.Color) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, imaging.Save(imaging.New(20, 24, c), path))
}

func createTestSet(t *testing.T) string {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "testA", "font1", "x.png"), color.Gray{Y: 30})
	writeImage(t, filepath.Join(dir, "testA", "font2", "y.jpg"), color.Gray{Y: 200})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testA", "font2", "broken.png"), []byte("not a png"), 0o644))
	writeImage(t, filepath.Join(dir, "testB", "u.png"), color.NRGBA{R: 250, G: 30, B: 30, A: 255})
	writeImage(t, filepath.Join(dir, "testB", "v.png"), color.NRGBA{R: 30, G: 30, B: 250, A: 255})
	return dir
}

func newTestContext() *context.Context {
	ctx := cyclegan.CreateDefaultContext()
	ctx.SetParams(map[string]any{
		networks.ParamImageSize:            32,
		networks.ParamGeneratorFilters:     4,
		networks.ParamDiscriminatorFilters: 4,
		networks.ParamInputChannels:        1,
		networks.ParamOutputChannels:       3,
		networks.ParamStyleDim:             2,
	})
	return ctx
}

func TestRunnerWithoutCheckpoint(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	opts := Options{
		DatasetDir:    createTestSet(t),
		CheckpointDir: t.TempDir(),
		TestDir:       filepath.Join(t.TempDir(), "test"),
		Direction:     AtoB,
	}
	runner, err := New(backend, newTestContext(), opts)
	require.NoError(t, err)
	report, err := runner.Run()
	require.NoError(t, err)
	assert.False(t, report.CheckpointLoaded)
	assert.Equal(t, AtoB, report.Direction)
	assert.Equal(t, []string{filepath.Join(opts.DatasetDir, "testA", "font2", "broken.png")}, report.Skipped)
	require.Len(t, report.Translations, 2)

	// Outputs are grouped as the inputs.
	for _, output := range []string{
		filepath.Join(opts.TestDir, "font1", "x.png"),
		filepath.Join(opts.TestDir, "font2", "y.jpg"),
	} {
		img, err := imaging.Open(output)
		require.NoError(t, err)
		assert.Equal(t, 32, img.Bounds().Dx())
		assert.Equal(t, 32, img.Bounds().Dy())
	}

	index, err := os.ReadFile(filepath.Join(opts.TestDir, "AtoB_index.html"))
	require.NoError(t, err)
	html := string(index)
	assert.Contains(t, html, "<th>name</th><th>input</th><th>output</th>")
	assert.Equal(t, 2, strings.Count(html, "<tr><td>"))
	assert.Contains(t, html, "<td>x.png</td>")
	assert.Contains(t, html, filepath.Join(opts.TestDir, "font2", "y.jpg"))

	// Running again tolerates existing directories.
	_, err = runner.Run()
	require.NoError(t, err)
}

func TestRunnerWithCheckpoint(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	datasetDir := createTestSet(t)
	checkpointDir := t.TempDir()

	// Train for one step and save.
	{
		ctx := newTestContext()
		ctx.RngStateFromSeed(1)
		handler, _, err := cyclegan.OpenCheckpoint(ctx, cyclegan.CheckpointOptions{Dir: checkpointDir, Keep: 1})
		require.NoError(t, err)
		m, err := cyclegan.New(backend, ctx)
		require.NoError(t, err)
		realA, err := dataset.NewLoader(32, 1).LoadBatch([]string{filepath.Join(datasetDir, "testA", "font1", "x.png")})
		require.NoError(t, err)
		realB, err := dataset.NewLoader(32, 3).LoadBatch([]string{filepath.Join(datasetDir, "testB", "u.png")})
		require.NoError(t, err)
		gen, err := m.GeneratorStep(realA, realB, 1e-3)
		require.NoError(t, err)
		_, _, err = m.DiscriminatorStep(realA, realB, gen.FakeA, gen.FakeB, 1e-3)
		require.NoError(t, err)
		require.NoError(t, handler.Save())
		m.Finalize()
	}

	// The configuration is restored from the checkpoint, overriding the default context.
	testDir := t.TempDir()
	runner, err := New(backend, cyclegan.CreateDefaultContext(), Options{
		DatasetDir:    datasetDir,
		CheckpointDir: checkpointDir,
		TestDir:       testDir,
		Direction:     BtoA,
	})
	require.NoError(t, err)
	assert.Equal(t, 32, runner.Model().Config().ImageSize)
	assert.Equal(t, int64(1), runner.Model().Step())
	report, err := runner.Run()
	require.NoError(t, err)
	assert.True(t, report.CheckpointLoaded)
	require.Len(t, report.Translations, 2)
	assert.Equal(t, filepath.Join(testDir, "u.png"), report.Translations[0].Output)
	assert.FileExists(t, filepath.Join(testDir, "v.png"))
	assert.FileExists(t, filepath.Join(testDir, "BtoA_index.html"))
	runner.Model().Finalize()

	// AtoB with the style of a B image.
	runner, err = New(backend, cyclegan.CreateDefaultContext(), Options{
		DatasetDir:    datasetDir,
		CheckpointDir: checkpointDir,
		TestDir:       testDir,
		Direction:     AtoB,
		StyleImage:    filepath.Join(datasetDir, "testB", "v.png"),
	})
	require.NoError(t, err)
	report, err = runner.Run()
	require.NoError(t, err)
	assert.True(t, report.CheckpointLoaded)
	assert.Len(t, report.Translations, 2)
	assert.FileExists(t, filepath.Join(testDir, "AtoB_index.html"))
	assert.FileExists(t, filepath.Join(testDir, "font1", "x.png"))

	// A missing style image is an error.
	runner, err = New(backend, cyclegan.CreateDefaultContext(), Options{
		DatasetDir:    datasetDir,
		CheckpointDir: checkpointDir,
		TestDir:       testDir,
		Direction:     AtoB,
		StyleImage:    filepath.Join(datasetDir, "missing.png"),
	})
	require.NoError(t, err)
	_, err = runner.Run()
	require.Error(t, err)
}
