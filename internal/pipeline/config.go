package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Defaults for pipeline configuration.
const (
	DefaultGenerator    = "found-image-generator"
	DefaultAnalyzer     = "found-analysis"
	DefaultOutDir       = "runs"
	DefaultWidth        = 1024
	DefaultHeight       = 1024
	DefaultStageTimeout = 2 * time.Minute
)

// FileConfig is the optional JSON configuration file for the pipeline
// CLI. All fields are pointers so partial configs are safe: fields
// omitted from the file keep their defaults, served by the Get methods.
// Unknown keys are rejected so a misspelled option never silently
// disappears.
type FileConfig struct {
	FocalLength  *float64 `json:"focal_length,omitempty"`
	PixelSize    *float64 `json:"pixel_size,omitempty"`
	Width        *int     `json:"width,omitempty"`
	Height       *int     `json:"height,omitempty"`
	Generator    *string  `json:"generator,omitempty"`
	Analyzer     *string  `json:"analyzer,omitempty"`
	OutDir       *string  `json:"out_dir,omitempty"`
	DBPath       *string  `json:"db,omitempty"`
	StageTimeout *string  `json:"stage_timeout,omitempty"` // duration string like "90s"
}

// LoadFileConfig loads a FileConfig from a JSON file. The path must have
// a .json extension and the file must be under 1MB.
func LoadFileConfig(path string) (*FileConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &FileConfig{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", cleanPath, err)
	}

	if cfg.StageTimeout != nil {
		if _, err := time.ParseDuration(*cfg.StageTimeout); err != nil {
			return nil, fmt.Errorf("invalid stage_timeout %q: %w", *cfg.StageTimeout, err)
		}
	}

	return cfg, nil
}

// GetFocalLength returns the configured focal length or zero when unset
// (the measurement default applies downstream).
func (c *FileConfig) GetFocalLength() float64 {
	if c != nil && c.FocalLength != nil {
		return *c.FocalLength
	}
	return 0
}

// GetPixelSize returns the configured pixel size or zero when unset.
func (c *FileConfig) GetPixelSize() float64 {
	if c != nil && c.PixelSize != nil {
		return *c.PixelSize
	}
	return 0
}

// GetWidth returns the generator frame width.
func (c *FileConfig) GetWidth() int {
	if c != nil && c.Width != nil {
		return *c.Width
	}
	return DefaultWidth
}

// GetHeight returns the generator frame height.
func (c *FileConfig) GetHeight() int {
	if c != nil && c.Height != nil {
		return *c.Height
	}
	return DefaultHeight
}

// GetGenerator returns the image generator command.
func (c *FileConfig) GetGenerator() string {
	if c != nil && c.Generator != nil {
		return *c.Generator
	}
	return DefaultGenerator
}

// GetAnalyzer returns the analysis command.
func (c *FileConfig) GetAnalyzer() string {
	if c != nil && c.Analyzer != nil {
		return *c.Analyzer
	}
	return DefaultAnalyzer
}

// GetOutDir returns the root output directory.
func (c *FileConfig) GetOutDir() string {
	if c != nil && c.OutDir != nil {
		return *c.OutDir
	}
	return DefaultOutDir
}

// GetDBPath returns the run-history database path, empty when disabled.
func (c *FileConfig) GetDBPath() string {
	if c != nil && c.DBPath != nil {
		return *c.DBPath
	}
	return ""
}

// GetStageTimeout returns the per-stage wall-clock limit.
func (c *FileConfig) GetStageTimeout() time.Duration {
	if c != nil && c.StageTimeout != nil {
		d, err := time.ParseDuration(*c.StageTimeout)
		if err == nil {
			return d
		}
	}
	return DefaultStageTimeout
}
