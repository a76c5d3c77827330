// Command pipeline drives a full validation run: generate a synthetic
// horizon image (unless one is supplied), measure the distance against
// ground truth, and hand the result to the external analysis tool when
// it is installed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/UWCubeSat/found-integration-testing/internal/pipeline"
)

func main() {
	var (
		positionStr    string
		orientationStr string
		resolutionStr  string
		imagePath      string
		groundTruth    float64
		focalLength    float64
		pixelSize      float64
		outDir         string
		configPath     string
		generator      string
		analyzer       string
		dbPath         string
		timeout        time.Duration
		dryRun         bool
	)

	flag.StringVar(&positionStr, "position", "", "spacecraft position in meters as x,y,z; its norm is the default ground truth")
	flag.StringVar(&orientationStr, "orientation", "0,0,0", "spacecraft orientation in degrees as roll,pitch,yaw (generator only)")
	flag.StringVar(&resolutionStr, "resolution", "", "generator frame size as WIDTHxHEIGHT")
	flag.StringVar(&imagePath, "image", "", "pre-existing horizon image; skips the generate stage")
	flag.Float64Var(&groundTruth, "ground-truth", 0, "explicit ground truth distance in meters (overrides the position norm)")
	flag.Float64Var(&focalLength, "focal-length", 0, "camera focal length in meters")
	flag.Float64Var(&pixelSize, "pixel-size", 0, "camera pixel size in meters")
	flag.StringVar(&outDir, "out-dir", "", "root directory for run output")
	flag.StringVar(&configPath, "config", "", "optional JSON pipeline config file")
	flag.StringVar(&generator, "generator", "", "image generator command")
	flag.StringVar(&analyzer, "analyzer", "", "analysis command (optional stage)")
	flag.StringVar(&dbPath, "db", "", "sqlite run-history database")
	flag.DurationVar(&timeout, "timeout", 0, "wall-clock limit per external stage")
	flag.BoolVar(&dryRun, "dry-run", false, "echo external stages instead of executing them")
	flag.Parse()

	if flag.NArg() > 0 {
		log.Fatalf("unknown argument %q", flag.Arg(0))
	}

	var fileCfg *pipeline.FileConfig
	if configPath != "" {
		var err error
		fileCfg, err = pipeline.LoadFileConfig(configPath)
		if err != nil {
			log.Fatalf("invalid configuration: %v", err)
		}
	}

	opts := pipeline.Options{
		FocalLength:  pick(focalLength, fileCfg.GetFocalLength()),
		PixelSize:    pick(pixelSize, fileCfg.GetPixelSize()),
		ImagePath:    imagePath,
		GroundTruthM: groundTruth,
		OutDir:       pickStr(outDir, fileCfg.GetOutDir()),
		Generator:    pickStr(generator, fileCfg.GetGenerator()),
		Analyzer:     pickStr(analyzer, fileCfg.GetAnalyzer()),
		DBPath:       pickStr(dbPath, fileCfg.GetDBPath()),
		StageTimeout: timeout,
		DryRun:       dryRun,
	}
	if opts.StageTimeout == 0 {
		opts.StageTimeout = fileCfg.GetStageTimeout()
	}
	opts.Width = fileCfg.GetWidth()
	opts.Height = fileCfg.GetHeight()

	if positionStr != "" {
		pos, err := parseVec3(positionStr)
		if err != nil {
			log.Fatalf("invalid -position: %v", err)
		}
		opts.Position = &pos
	}
	orientation, err := parseVec3(orientationStr)
	if err != nil {
		log.Fatalf("invalid -orientation: %v", err)
	}
	opts.Orientation = orientation

	if resolutionStr != "" {
		w, h, err := parseResolution(resolutionStr)
		if err != nil {
			log.Fatalf("invalid -resolution: %v", err)
		}
		opts.Width, opts.Height = w, h
	}

	if err := pipeline.New(opts).Run(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}
}

// pick returns the flag value when set, else the config file value.
func pick(flagVal, cfgVal float64) float64 {
	if flagVal != 0 {
		return flagVal
	}
	return cfgVal
}

func pickStr(flagVal, cfgVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return cfgVal
}

func parseVec3(s string) ([3]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return [3]float64{}, fmt.Errorf("expected x,y,z, got %q", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return [3]float64{}, fmt.Errorf("component %d of %q: %w", i+1, s, err)
		}
		v[i] = f
	}
	return v, nil
}

func parseResolution(s string) (int, int, error) {
	wStr, hStr, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected WIDTHxHEIGHT, got %q", s)
	}
	w, err := strconv.Atoi(wStr)
	if err != nil {
		return 0, 0, fmt.Errorf("width in %q: %w", s, err)
	}
	h, err := strconv.Atoi(hStr)
	if err != nil {
		return 0, 0, fmt.Errorf("height in %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("resolution must be positive, got %q", s)
	}
	return w, h, nil
}
