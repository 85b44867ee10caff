// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, path string, width, height int, c color.Color) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, imaging.Save(imaging.New(width, height, c), path))
}

func TestListDomains(t *testing.T) {
	dir := t.TempDir()
	red := color.NRGBA{R: 255, A: 255}
	writeImage(t, filepath.Join(dir, "trainA", "font1", "a.png"), 8, 8, red)
	writeImage(t, filepath.Join(dir, "trainA", "font2", "b.jpg"), 8, 8, red)
	writeImage(t, filepath.Join(dir, "trainA", "loose.png"), 8, 8, red)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trainA", "font2", "notes.txt"), []byte("x"), 0o644))
	writeImage(t, filepath.Join(dir, "trainB", "x.jpeg"), 8, 8, red)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "trainB", "folder.png"), 0o755))

	filesA, err := ListDomainA(dir, "train")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "trainA", "font1", "a.png"),
		filepath.Join(dir, "trainA", "font2", "b.jpg"),
	}, filesA)

	filesB, err := ListDomainB(dir, "train")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "trainB", "x.jpeg")}, filesB)

	filesB, err = ListDomainB(dir, "test")
	require.NoError(t, err)
	assert.Empty(t, filesB)
}

func TestEpoch(t *testing.T) {
	filesA := []string{"a0", "a1", "a2", "a3", "a4"}
	filesB := []string{"b0", "b1", "b2"}
	rng := rand.New(rand.NewSource(42))

	epoch, err := NewEpoch(rng, filesA, filesB, 2, 1_000_000)
	require.NoError(t, err)
	require.Equal(t, 1, epoch.NumBatches())
	batchA, batchB := epoch.Batch(0)
	assert.Len(t, batchA, 2)
	assert.Len(t, batchB, 2)
	assert.ElementsMatch(t, filesA, epoch.FilesA)
	assert.ElementsMatch(t, filesB, epoch.FilesB)
	assert.Equal(t, []string{"a0", "a1", "a2", "a3", "a4"}, filesA, "input must not be shuffled in place")

	epoch, err = NewEpoch(rng, filesA, filesB, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, epoch.NumBatches())

	epoch, err = NewEpoch(rng, filesA, filesB, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, epoch.NumBatches(), "train size 0 means no limit")

	_, err = NewEpoch(rng, filesA, nil, 1, 10)
	require.Error(t, err)
	_, err = NewEpoch(rng, filesA, filesB, 0, 10)
	require.Error(t, err)
}

func TestNumBatches(t *testing.T) {
	assert.Equal(t, 2, NumBatches(5, 4, 2, 1_000_000))
	assert.Equal(t, 1, NumBatches(5, 4, 2, 3))
	assert.Equal(t, 2, NumBatches(5, 4, 2, 0))
	assert.Equal(t, 2, NumBatches(5, 4, 2, -1))
	assert.Equal(t, 0, NumBatches(1, 4, 2, 0))
	assert.Equal(t, 0, NumBatches(5, 4, 0, 0))
}

func TestShuffledIsSeeded(t *testing.T) {
	files := []string{"0", "1", "2", "3", "4", "5", "6", "7"}
	s1 := Shuffled(rand.New(rand.NewSource(7)), files)
	s2 := Shuffled(rand.New(rand.NewSource(7)), files)
	assert.Equal(t, s1, s2)
	assert.ElementsMatch(t, files, s1)
	assert.True(t, slices.IsSorted(files))
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "wide.png"), filepath.Join(dir, "tall.jpg")}
	writeImage(t, paths[0], 40, 30, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	writeImage(t, paths[1], 10, 50, color.NRGBA{R: 10, G: 10, B: 200, A: 255})

	t.Run("gray with augmentation", func(t *testing.T) {
		loader := NewLoader(16, 1).WithAugmentation(20, rand.New(rand.NewSource(1)))
		batch, err := loader.LoadBatch(paths)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 16, 16, 1}, batch.Shape().Dimensions)
		for _, v := range tensors.CopyFlatData[float32](batch) {
			require.GreaterOrEqual(t, v, float32(-1))
			require.LessOrEqual(t, v, float32(1))
		}
	})

	t.Run("color resized", func(t *testing.T) {
		loader := NewLoader(8, 3)
		batch, err := loader.LoadBatch(paths)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 8, 8, 3}, batch.Shape().Dimensions)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewLoader(8, 3).LoadBatch([]string{filepath.Join(dir, "missing.png")})
		require.Error(t, err)
	})
}

func TestTensorConversion(t *testing.T) {
	img := imaging.New(2, 2, color.NRGBA{R: 255, G: 0, B: 128, A: 255})

	rgb, err := ToTensor([]image.Image{img}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2, 3}, rgb.Shape().Dimensions)
	flat := tensors.CopyFlatData[float32](rgb)
	assert.InDelta(t, 1.0, flat[0], 1e-5)
	assert.InDelta(t, -1.0, flat[1], 1e-5)
	assert.InDelta(t, 0.0, flat[2], 0.01)

	images, err := ToImages(rgb)
	require.NoError(t, err)
	require.Len(t, images, 1)
	r, g, b, _ := images[0].At(1, 1).RGBA()
	assert.Equal(t, []uint32{255, 0, 128}, []uint32{r >> 8, g >> 8, b >> 8})

	gray, err := ToTensor([]image.Image{imaging.Grayscale(img)}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2, 1}, gray.Shape().Dimensions)
	images, err = ToImages(gray)
	require.NoError(t, err)
	r, g, b, _ = images[0].At(0, 0).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)

	// Out of range values are clipped.
	images, err = ToImages(tensors.FromFlatDataAndDimensions([]float32{-3, 5}, 2, 1, 1, 1))
	require.NoError(t, err)
	r, _, _, _ = images[0].At(0, 0).RGBA()
	assert.Equal(t, uint32(0), r>>8)
	r, _, _, _ = images[1].At(0, 0).RGBA()
	assert.Equal(t, uint32(255), r>>8)

	_, err = ToTensor([]image.Image{img, imaging.New(3, 2, color.Black)}, 3)
	require.Error(t, err)
	_, err = ToTensor([]image.Image{img}, 2)
	require.Error(t, err)
	_, err = ToImages(tensors.FromFlatDataAndDimensions([]float32{0, 0}, 1, 1, 1, 2))
	require.Error(t, err)
}

func TestGrid(t *testing.T) {
	images := make([]image.Image, 20)
	for ii := range images {
		c := color.NRGBA{R: uint8(10 * ii), A: 255}
		images[ii] = imaging.New(4, 3, c)
	}
	grid := Grid(images)
	assert.Equal(t, image.Pt(MaxGridColumns*4, 2*3), grid.Bounds().Size())
	r, _, _, _ := grid.At(4*5, 0).RGBA()
	assert.Equal(t, uint32(50), r>>8)
	r, _, _, _ = grid.At(4*1, 3).RGBA()
	assert.Equal(t, uint32(170), r>>8)

	path := filepath.Join(t.TempDir(), "samples", "grid.jpg")
	require.NoError(t, SaveGrid(path, images[:3]))
	saved, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(3*4, 3), saved.Bounds().Size())
}
