// Command measure runs one horizon measurement: it decodes an image,
// extracts horizon edges, solves for the spacecraft distance and writes
// the result record compared against the supplied ground truth.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/UWCubeSat/found-integration-testing/internal/fsutil"
	"github.com/UWCubeSat/found-integration-testing/internal/measure"
)

func main() {
	var cfg measure.RunConfig
	flag.StringVar(&cfg.ImagePath, "image", "", "path to the horizon image (required)")
	flag.Float64Var(&cfg.GroundTruthM, "ground-truth", 0, "known distance to the body centre in meters (required)")
	flag.Float64Var(&cfg.FocalLength, "focal-length", measure.DefaultFocalLength, "camera focal length in meters")
	flag.Float64Var(&cfg.PixelSize, "pixel-size", measure.DefaultPixelSize, "camera pixel size in meters")
	flag.StringVar(&cfg.OutputPath, "out", measure.DefaultOutputPath, "where to write the result record")
	flag.Parse()

	// Configuration errors exit before any decode is attempted and
	// before any output is written.
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	engine := measure.NewEngine()
	rec := engine.Run(cfg)

	if err := rec.WriteFile(fsutil.OSFileSystem{}, cfg.OutputPath); err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Println(rec.Summary())
	if !rec.Success {
		os.Exit(1)
	}
}
