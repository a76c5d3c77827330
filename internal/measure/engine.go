// Package measure implements the measurement engine: one horizon image
// in, one result record out.
//
// The engine composes two swappable collaborators, an edge extractor
// and a distance solver, and runs a straight-line pipeline with
// early-exit failure transitions: stat image → decode → extract edges →
// build camera → solve → compute metrics. Exactly one Result is produced
// per run; every failure along the way becomes a failure record rather
// than an error, so the record file can always be written once the
// engine has started.
package measure

import (
	"errors"
	"fmt"
	"io/fs"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/UWCubeSat/found-integration-testing/internal/camera"
	"github.com/UWCubeSat/found-integration-testing/internal/distance"
	"github.com/UWCubeSat/found-integration-testing/internal/edge"
	"github.com/UWCubeSat/found-integration-testing/internal/fsutil"
	"github.com/UWCubeSat/found-integration-testing/internal/imageio"
)

// EdgeExtractor produces horizon points from a decoded image. It must
// not mutate the image, and an empty point set is a valid outcome, not
// an extractor error.
type EdgeExtractor interface {
	Extract(img *imageio.Image) (edge.PointSet, error)
}

// DistanceSolver produces one position estimate from a non-empty point
// set. The non-empty precondition is enforced by the engine, not the
// solver.
type DistanceSolver interface {
	Solve(points edge.PointSet, cam camera.Model) (distance.Position, error)
}

// Defaults for the optional measurement inputs.
const (
	DefaultFocalLength = 85e-3
	DefaultPixelSize   = 20e-6
	DefaultOutputPath  = "result.json"
)

// RunConfig holds the validated inputs of one measurement run. Validate
// once at the start of a run; the value is immutable thereafter.
type RunConfig struct {
	ImagePath    string
	FocalLength  float64
	PixelSize    float64
	GroundTruthM float64
	OutputPath   string
}

// ApplyDefaults fills the optional fields that were left at zero.
func (c *RunConfig) ApplyDefaults() {
	if c.FocalLength == 0 {
		c.FocalLength = DefaultFocalLength
	}
	if c.PixelSize == 0 {
		c.PixelSize = DefaultPixelSize
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
}

// Validate rejects missing or non-positive inputs. A zero ground truth
// is rejected here so the error-percent division can never divide by
// zero.
func (c RunConfig) Validate() error {
	if c.ImagePath == "" {
		return errors.New("image path is required")
	}
	if c.GroundTruthM <= 0 {
		return fmt.Errorf("ground truth distance must be positive, got %g", c.GroundTruthM)
	}
	if c.FocalLength <= 0 {
		return fmt.Errorf("focal length must be positive, got %g", c.FocalLength)
	}
	if c.PixelSize <= 0 {
		return fmt.Errorf("pixel size must be positive, got %g", c.PixelSize)
	}
	return nil
}

// Engine runs measurements. The zero value is not usable; construct
// with NewEngine and swap the collaborators as needed.
type Engine struct {
	FS        fsutil.FileSystem
	Extractor EdgeExtractor
	Solver    DistanceSolver
}

// NewEngine returns an engine wired to the OS filesystem and the default
// in-process detector and solver.
func NewEngine() *Engine {
	return &Engine{
		FS:        fsutil.OSFileSystem{},
		Extractor: edge.NewThresholdDetector(),
		Solver:    distance.NewIterativeSphericalSolver(),
	}
}

// Run executes one measurement. cfg must have passed Validate. The
// returned record is complete: either the success shape with all
// metrics, or the failure shape with a message naming what went wrong.
func (e *Engine) Run(cfg RunConfig) Result {
	// Stat before decode so "file not found" and "could not decode" stay
	// distinguishable failure messages.
	if _, err := e.FS.Stat(cfg.ImagePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Failure(fmt.Sprintf("image file not found: %s", cfg.ImagePath))
		}
		return Failure(fmt.Sprintf("image file not readable: %s: %v", cfg.ImagePath, err))
	}

	img, err := imageio.Load(e.FS, cfg.ImagePath)
	if err != nil {
		return Failure(fmt.Sprintf("could not decode image %s: %v", cfg.ImagePath, err))
	}

	points, err := e.extract(img)
	if err != nil {
		return Failure(fmt.Sprintf("edge extraction failed: %v", err))
	}
	if len(points) == 0 {
		return Failure("no edges detected")
	}

	// The decoded dimensions are authoritative; a mismatched configured
	// resolution must never corrupt the geometry.
	cam, err := camera.New(cfg.FocalLength, cfg.PixelSize, img.Width, img.Height)
	if err != nil {
		return Failure(fmt.Sprintf("invalid camera: %v", err))
	}

	pos, err := e.Solver.Solve(points, cam)
	if err != nil {
		return Failure(err.Error())
	}

	d := r3.Norm(pos)
	errM := math.Abs(d - cfg.GroundTruthM)
	return Result{
		Success:      true,
		NumEdges:     len(points),
		DistanceM:    d,
		AltitudeM:    d - distance.EarthRadiusM,
		GroundTruthM: cfg.GroundTruthM,
		ErrorM:       errM,
		ErrorPercent: errM / cfg.GroundTruthM * 100,
	}
}

// extract runs the edge extractor with the pixel buffer scoped to the
// call: the buffer is released on every exit path.
func (e *Engine) extract(img *imageio.Image) (edge.PointSet, error) {
	defer img.Release()
	return e.Extractor.Extract(img)
}
