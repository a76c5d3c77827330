package measure

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/UWCubeSat/found-integration-testing/internal/camera"
	"github.com/UWCubeSat/found-integration-testing/internal/distance"
	"github.com/UWCubeSat/found-integration-testing/internal/edge"
	"github.com/UWCubeSat/found-integration-testing/internal/fsutil"
	"github.com/UWCubeSat/found-integration-testing/internal/imageio"
	"github.com/UWCubeSat/found-integration-testing/internal/testutil"
)

type stubExtractor struct {
	points edge.PointSet
	err    error

	img            *imageio.Image
	releasedDuring bool
}

func (s *stubExtractor) Extract(img *imageio.Image) (edge.PointSet, error) {
	s.img = img
	s.releasedDuring = img.Released()
	return s.points, s.err
}

type stubSolver struct {
	pos distance.Position
	err error
}

func (s *stubSolver) Solve(points edge.PointSet, cam camera.Model) (distance.Position, error) {
	return s.pos, s.err
}

func memFSWithPNG(t *testing.T, name string, src image.Image) *fsutil.MemoryFileSystem {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))
	memfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, memfs.WriteFile(name, buf.Bytes(), 0644))
	return memfs
}

func validConfig() RunConfig {
	return RunConfig{
		ImagePath:    "frame.png",
		FocalLength:  DefaultFocalLength,
		PixelSize:    DefaultPixelSize,
		GroundTruthM: 10378137,
		OutputPath:   "result.json",
	}
}

func TestRunConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*RunConfig)
		wantErr string
	}{
		{"valid", func(c *RunConfig) {}, ""},
		{"missing image", func(c *RunConfig) { c.ImagePath = "" }, "image path"},
		{"zero ground truth", func(c *RunConfig) { c.GroundTruthM = 0 }, "ground truth"},
		{"negative ground truth", func(c *RunConfig) { c.GroundTruthM = -1 }, "ground truth"},
		{"zero focal length", func(c *RunConfig) { c.FocalLength = 0 }, "focal length"},
		{"zero pixel size", func(c *RunConfig) { c.PixelSize = 0 }, "pixel size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := RunConfig{ImagePath: "a.png", GroundTruthM: 1}
	cfg.ApplyDefaults()
	assert.Equal(t, DefaultFocalLength, cfg.FocalLength)
	assert.Equal(t, DefaultPixelSize, cfg.PixelSize)
	assert.Equal(t, DefaultOutputPath, cfg.OutputPath)
}

func TestRunDistanceIsNormOfEstimate(t *testing.T) {
	t.Parallel()

	e := &Engine{
		FS:        memFSWithPNG(t, "frame.png", testutil.DiscImage(64, 64, 32, 32, 20)),
		Extractor: &stubExtractor{points: edge.PointSet{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 1}}},
		Solver:    &stubSolver{pos: r3.Vec{X: 3e6, Y: 4e6, Z: 12e6}},
	}

	rec := e.Run(validConfig())
	require.True(t, rec.Success, "unexpected failure: %s", rec.Error)
	assert.InEpsilon(t, 13e6, rec.DistanceM, 1e-12)
	assert.Equal(t, 3, rec.NumEdges)
	assert.InDelta(t, 13e6-distance.EarthRadiusM, rec.AltitudeM, 1e-3)
}

func TestRunErrorPercentArithmetic(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	e := &Engine{
		FS:        memFSWithPNG(t, "frame.png", testutil.DiscImage(32, 32, 16, 16, 10)),
		Extractor: &stubExtractor{points: edge.PointSet{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 1}}},
		Solver:    &stubSolver{pos: r3.Vec{Z: 11e6}},
	}

	rec := e.Run(cfg)
	require.True(t, rec.Success)
	assert.InDelta(t, math.Abs(rec.DistanceM-cfg.GroundTruthM), rec.ErrorM, 1e-9)
	assert.InEpsilon(t, rec.ErrorM/cfg.GroundTruthM*100, rec.ErrorPercent, 1e-9)
}

func TestRunMissingImage(t *testing.T) {
	t.Parallel()

	e := &Engine{
		FS:        fsutil.NewMemoryFileSystem(),
		Extractor: &stubExtractor{},
		Solver:    &stubSolver{},
	}

	rec := e.Run(validConfig())
	assert.False(t, rec.Success)
	assert.Contains(t, rec.Error, "image file not found")
	assert.Contains(t, rec.Error, "frame.png")
	assert.Zero(t, rec.NumEdges)
}

func TestRunUndecodableImage(t *testing.T) {
	t.Parallel()

	memfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, memfs.WriteFile("frame.png", []byte("definitely not a png"), 0644))
	e := &Engine{FS: memfs, Extractor: &stubExtractor{}, Solver: &stubSolver{}}

	rec := e.Run(validConfig())
	assert.False(t, rec.Success)
	assert.Contains(t, rec.Error, "could not decode image")
}

func TestRunNoEdges(t *testing.T) {
	t.Parallel()

	e := &Engine{
		FS:        memFSWithPNG(t, "frame.png", image.NewGray(image.Rect(0, 0, 32, 32))),
		Extractor: &stubExtractor{points: nil},
		Solver:    &stubSolver{pos: r3.Vec{Z: 1e7}},
	}

	rec := e.Run(validConfig())
	assert.False(t, rec.Success)
	assert.Equal(t, "no edges detected", rec.Error)
	assert.Zero(t, rec.NumEdges)
}

func TestRunSolverErrorPropagates(t *testing.T) {
	t.Parallel()

	e := &Engine{
		FS:        memFSWithPNG(t, "frame.png", testutil.DiscImage(32, 32, 16, 16, 10)),
		Extractor: &stubExtractor{points: edge.PointSet{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 1}}},
		Solver:    &stubSolver{err: errors.New("spherical solve did not converge")},
	}

	rec := e.Run(validConfig())
	assert.False(t, rec.Success)
	assert.Equal(t, "spherical solve did not converge", rec.Error)
}

func TestRunReleasesImageBuffer(t *testing.T) {
	t.Parallel()

	t.Run("on success", func(t *testing.T) {
		t.Parallel()
		ext := &stubExtractor{points: edge.PointSet{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 1}}}
		e := &Engine{
			FS:        memFSWithPNG(t, "frame.png", testutil.DiscImage(32, 32, 16, 16, 10)),
			Extractor: ext,
			Solver:    &stubSolver{pos: r3.Vec{Z: 1e7}},
		}
		e.Run(validConfig())
		// The buffer is alive during extraction and released after.
		assert.False(t, ext.releasedDuring)
		assert.True(t, ext.img.Released())
	})

	t.Run("on extractor error", func(t *testing.T) {
		t.Parallel()
		ext := &stubExtractor{err: errors.New("boom")}
		e := &Engine{
			FS:        memFSWithPNG(t, "frame.png", testutil.DiscImage(32, 32, 16, 16, 10)),
			Extractor: ext,
			Solver:    &stubSolver{},
		}
		rec := e.Run(validConfig())
		assert.False(t, rec.Success)
		assert.Contains(t, rec.Error, "edge extraction failed")
		assert.True(t, ext.img.Released())
	})
}

func TestRunDeterministic(t *testing.T) {
	t.Parallel()

	memfs := memFSWithPNG(t, "frame.png", testutil.DiscImage(256, 256, 128, 128, 80))
	cfg := validConfig()

	run := func() []byte {
		e := NewEngine()
		e.FS = memfs
		rec := e.Run(cfg)
		data, err := rec.MarshalJSON()
		require.NoError(t, err)
		return data
	}

	first := run()
	second := run()
	assert.Empty(t, cmp.Diff(string(first), string(second)))
}

// TestRunSyntheticHorizonScenario measures a ground-truth-matched disc:
// the disc radius is the forward projection of the horizon at the known
// distance, so the recovered distance must land close to the ground
// truth.
func TestRunSyntheticHorizonScenario(t *testing.T) {
	t.Parallel()
	if testing.Short() {
		t.Skip("large synthetic frame")
	}

	const groundTruth = 10378137.0
	rPixels := testutil.HorizonRadiusPixels(DefaultFocalLength, DefaultPixelSize, distance.EarthRadiusM, groundTruth)
	size := 2*int(rPixels) + 80
	centre := float64(size) / 2

	cfg := validConfig()
	e := NewEngine()
	e.FS = memFSWithPNG(t, "frame.png", testutil.DiscImage(size, size, centre, centre, rPixels))

	rec := e.Run(cfg)
	require.True(t, rec.Success, "unexpected failure: %s", rec.Error)
	assert.Positive(t, rec.NumEdges)
	assert.Less(t, rec.ErrorPercent, 5.0)
	assert.InDelta(t, rec.DistanceM-distance.EarthRadiusM, rec.AltitudeM, 1e-6)
}
