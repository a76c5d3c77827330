// Package pipeline sequences generate → measure → analyze as three
// independently failable stages with a stable on-disk contract: each run
// gets its own directory holding the input image, the result record and
// an analysis subdirectory.
//
// Generate and analyze are external OS-level collaborators; measurement
// runs in-process. A prior stage's failure is terminal — no later stage
// runs after it. The analyze stage is best-effort and never affects the
// overall outcome.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/UWCubeSat/found-integration-testing/internal/fsutil"
	"github.com/UWCubeSat/found-integration-testing/internal/measure"
	"github.com/UWCubeSat/found-integration-testing/internal/runlog"
)

// Options configures one pipeline run. It is validated once at the
// start of Run and immutable thereafter.
type Options struct {
	// Position is the spacecraft position in meters. When no explicit
	// ground truth is given, the ground truth is its Euclidean norm.
	Position *[3]float64

	// Orientation in degrees; passed through to the generator only.
	Orientation [3]float64

	// Camera parameters; zero means the measurement defaults.
	FocalLength float64
	PixelSize   float64

	// Requested generator resolution. The decoded image's dimensions
	// remain authoritative for measurement.
	Width  int
	Height int

	// ImagePath, when set, bypasses the generate stage.
	ImagePath string

	// GroundTruthM overrides the position-derived ground truth.
	GroundTruthM float64

	// OutDir is the root under which run directories are created.
	OutDir string

	// Generator and Analyzer are the external stage commands.
	Generator string
	Analyzer  string

	// DBPath enables run-history recording when non-empty.
	DBPath string

	StageTimeout time.Duration
	DryRun       bool
}

// Validate rejects configurations that cannot produce a run. Nothing is
// written to disk before this passes.
func (o Options) Validate() error {
	if o.ImagePath == "" && o.Position == nil {
		return fmt.Errorf("either an image path or a spacecraft position is required")
	}
	if o.GroundTruthM < 0 {
		return fmt.Errorf("ground truth distance must be positive, got %g", o.GroundTruthM)
	}
	if o.GroundTruthM == 0 {
		if o.Position == nil {
			return fmt.Errorf("ground truth distance is required when no position is supplied")
		}
		if norm3(*o.Position) == 0 {
			return fmt.Errorf("position at the body centre yields a zero ground truth")
		}
	}
	if o.FocalLength < 0 {
		return fmt.Errorf("focal length must be positive, got %g", o.FocalLength)
	}
	if o.PixelSize < 0 {
		return fmt.Errorf("pixel size must be positive, got %g", o.PixelSize)
	}
	if o.OutDir == "" {
		return fmt.Errorf("output directory is required")
	}
	return nil
}

// GroundTruth resolves the comparison baseline: the explicit value when
// given, otherwise exactly the norm of the position vector.
func (o Options) GroundTruth() float64 {
	if o.GroundTruthM > 0 {
		return o.GroundTruthM
	}
	if o.Position != nil {
		return norm3(*o.Position)
	}
	return 0
}

func norm3(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Pipeline drives one run. Collaborators are exported so tests can swap
// the filesystem, the stage runner or the engine's algorithms.
type Pipeline struct {
	Opts   Options
	FS     fsutil.FileSystem
	Runner *StageRunner
	Engine *measure.Engine
}

// New returns a pipeline wired to the OS filesystem and the default
// measurement engine.
func New(opts Options) *Pipeline {
	return &Pipeline{
		Opts:   opts,
		FS:     fsutil.OSFileSystem{},
		Runner: &StageRunner{DryRun: opts.DryRun, Timeout: opts.StageTimeout},
		Engine: measure.NewEngine(),
	}
}

// Run executes the pipeline once. The returned error names the stage
// that failed; nil means the generate stage produced its output and the
// measurement reported success. Analyze never affects the outcome.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Opts.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	groundTruth := p.Opts.GroundTruth()

	// Runs must never share an output directory, so the run directory
	// carries a timestamp plus a uuid fragment.
	runID := time.Now().UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
	runDir := filepath.Join(p.Opts.OutDir, "run-"+runID)
	analysisDir := filepath.Join(runDir, "analysis")
	if err := p.FS.MkdirAll(analysisDir, 0755); err != nil {
		return fmt.Errorf("create run directory %s: %w", runDir, err)
	}

	imagePath, err := p.generate(ctx, runDir)
	if err != nil {
		return err
	}

	if p.Opts.DryRun {
		fmt.Printf("[dry-run] would measure %s against ground truth %g m\n", imagePath, groundTruth)
		fmt.Printf("[dry-run] would analyze into %s\n", analysisDir)
		return nil
	}

	resultPath := filepath.Join(runDir, "result.json")
	cfg := measure.RunConfig{
		ImagePath:    imagePath,
		FocalLength:  p.Opts.FocalLength,
		PixelSize:    p.Opts.PixelSize,
		GroundTruthM: groundTruth,
		OutputPath:   resultPath,
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	rec := p.Engine.Run(cfg)
	if err := rec.WriteFile(p.FS, resultPath); err != nil {
		return fmt.Errorf("measure stage: %w", err)
	}
	fmt.Println(rec.Summary())

	p.record(runID, runDir, imagePath, rec)

	// A written result file and a success flag inside it are separate
	// claims; check both so the user sees which one failed.
	if !p.FS.Exists(resultPath) {
		return fmt.Errorf("measure stage: result file %s was not written", resultPath)
	}
	if !rec.Success {
		return fmt.Errorf("measure stage: run failed: %s", rec.Error)
	}

	p.analyze(ctx, resultPath, analysisDir)
	return nil
}

// generate produces the input image, or validates and imports the
// caller-supplied one. The generator exiting cleanly without producing
// the declared file is a first-class failure.
func (p *Pipeline) generate(ctx context.Context, runDir string) (string, error) {
	if p.Opts.ImagePath != "" {
		if !p.FS.Exists(p.Opts.ImagePath) {
			return "", fmt.Errorf("configuration: image file not found: %s", p.Opts.ImagePath)
		}
		// Each run directory holds its own copy of the input image so
		// the persisted layout is self-contained.
		data, err := p.FS.ReadFile(p.Opts.ImagePath)
		if err != nil {
			return "", fmt.Errorf("read image %s: %w", p.Opts.ImagePath, err)
		}
		copied := filepath.Join(runDir, filepath.Base(p.Opts.ImagePath))
		if err := p.FS.WriteFile(copied, data, 0644); err != nil {
			return "", fmt.Errorf("copy image into %s: %w", runDir, err)
		}
		return copied, nil
	}

	imagePath := filepath.Join(runDir, "horizon.png")
	args := p.generatorArgs(imagePath)
	log.Printf("generate: %s", p.Opts.Generator)
	if _, err := p.Runner.Run(ctx, p.Opts.Generator, args...); err != nil {
		return "", fmt.Errorf("generate stage: %w", err)
	}
	if !p.Opts.DryRun && !p.FS.Exists(imagePath) {
		return "", fmt.Errorf("generate stage: generator exited cleanly but produced no image at %s", imagePath)
	}
	return imagePath, nil
}

func (p *Pipeline) generatorArgs(imagePath string) []string {
	pos := [3]float64{}
	if p.Opts.Position != nil {
		pos = *p.Opts.Position
	}
	focal := p.Opts.FocalLength
	if focal == 0 {
		focal = measure.DefaultFocalLength
	}
	pixel := p.Opts.PixelSize
	if pixel == 0 {
		pixel = measure.DefaultPixelSize
	}
	width, height := p.Opts.Width, p.Opts.Height
	if width == 0 {
		width = DefaultWidth
	}
	if height == 0 {
		height = DefaultHeight
	}
	return []string{
		"--position", formatVec3(pos),
		"--orientation", formatVec3(p.Opts.Orientation),
		"--focal-length", formatFloat(focal),
		"--pixel-size", formatFloat(pixel),
		"--resolution", fmt.Sprintf("%dx%d", width, height),
		"--out", imagePath,
	}
}

// record appends the run to the history database when one is configured.
// History failures are warnings; they never fail a run that already has
// its result on disk.
func (p *Pipeline) record(runID, runDir, imagePath string, rec measure.Result) {
	if p.Opts.DBPath == "" {
		return
	}
	db, err := runlog.NewDB(p.Opts.DBPath)
	if err != nil {
		log.Printf("warning: run history unavailable: %v", err)
		return
	}
	defer db.Close()
	if err := db.RecordRun(runID, runDir, imagePath, rec); err != nil {
		log.Printf("warning: run history not recorded: %v", err)
	}
}

// analyze runs the optional external analyzer. Its absence or failure is
// a warning, never a run failure.
func (p *Pipeline) analyze(ctx context.Context, resultPath, analysisDir string) {
	if p.Opts.Analyzer == "" || !p.Runner.Available(p.Opts.Analyzer) {
		log.Printf("warning: analyzer %q not found; skipping analysis stage", p.Opts.Analyzer)
		return
	}
	log.Printf("analyze: %s", p.Opts.Analyzer)
	if _, err := p.Runner.Run(ctx, p.Opts.Analyzer, "--result", resultPath, "--out", analysisDir); err != nil {
		log.Printf("warning: analysis stage failed: %v", err)
	}
}

func formatVec3(v [3]float64) string {
	return formatFloat(v[0]) + "," + formatFloat(v[1]) + "," + formatFloat(v[2])
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
