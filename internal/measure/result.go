package measure

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/UWCubeSat/found-integration-testing/internal/fsutil"
	"github.com/UWCubeSat/found-integration-testing/internal/units"
)

// Result is the single output record of a measurement run. It is a
// tagged union on Success: a failure record carries only the error
// message, a success record carries only the metrics. The JSON schema is
// consumed by the external analysis tool, so field names and presence
// rules are fixed.
type Result struct {
	Success bool
	Error   string

	NumEdges     int
	DistanceM    float64
	AltitudeM    float64
	GroundTruthM float64
	ErrorM       float64
	ErrorPercent float64
}

// Failure returns a failure record with the given message.
func Failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

type failureJSON struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type successJSON struct {
	Success      bool    `json:"success"`
	NumEdges     int     `json:"num_edges"`
	DistanceM    float64 `json:"distance_m"`
	AltitudeM    float64 `json:"altitude_m"`
	GroundTruthM float64 `json:"ground_truth_m"`
	ErrorM       float64 `json:"error_m"`
	ErrorPercent float64 `json:"error_percent"`
}

// MarshalJSON emits exactly one of the two record shapes.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(failureJSON{Success: false, Error: r.Error})
	}
	return json.Marshal(successJSON{
		Success:      true,
		NumEdges:     r.NumEdges,
		DistanceM:    r.DistanceM,
		AltitudeM:    r.AltitudeM,
		GroundTruthM: r.GroundTruthM,
		ErrorM:       r.ErrorM,
		ErrorPercent: r.ErrorPercent,
	})
}

// UnmarshalJSON parses a record and rejects mixed shapes: a failure
// record must not carry metric fields and a success record must not
// carry an error.
func (r *Result) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	rawSuccess, ok := probe["success"]
	if !ok {
		return fmt.Errorf("result record missing \"success\" field")
	}
	var success bool
	if err := json.Unmarshal(rawSuccess, &success); err != nil {
		return fmt.Errorf("result record \"success\" field: %w", err)
	}

	if !success {
		if _, ok := probe["error"]; !ok {
			return fmt.Errorf("failure record missing \"error\" field")
		}
		for _, key := range []string{"num_edges", "distance_m", "altitude_m", "ground_truth_m", "error_m", "error_percent"} {
			if _, ok := probe[key]; ok {
				return fmt.Errorf("failure record must not carry %q", key)
			}
		}
		var f failureJSON
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*r = Result{Success: false, Error: f.Error}
		return nil
	}

	if _, ok := probe["error"]; ok {
		return fmt.Errorf("success record must not carry \"error\"")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var s successJSON
	if err := dec.Decode(&s); err != nil {
		return err
	}
	*r = Result{
		Success:      true,
		NumEdges:     s.NumEdges,
		DistanceM:    s.DistanceM,
		AltitudeM:    s.AltitudeM,
		GroundTruthM: s.GroundTruthM,
		ErrorM:       s.ErrorM,
		ErrorPercent: s.ErrorPercent,
	}
	return nil
}

// WriteFile renders the record as indented JSON at path. A write failure
// is fatal to the run and is returned wrapped; it is never downgraded to
// a failure record, since the record itself could not be persisted.
func (r Result) WriteFile(fsys fsutil.FileSystem, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result record: %w", err)
	}
	data = append(data, '\n')
	if err := fsys.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write result record to %s: %w", path, err)
	}
	return nil
}

// Summary returns the human-readable block printed after a run.
func (r Result) Summary() string {
	if !r.Success {
		return fmt.Sprintf("measurement FAILED: %s", r.Error)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "edges:        %d\n", r.NumEdges)
	fmt.Fprintf(&b, "distance:     %s  (%s alt)\n", units.Megameters(r.DistanceM), units.Kilometers(r.AltitudeM))
	fmt.Fprintf(&b, "ground truth: %s\n", units.Megameters(r.GroundTruthM))
	fmt.Fprintf(&b, "error:        %s  (%.4f%%)", units.Kilometers(r.ErrorM), r.ErrorPercent)
	return b.String()
}
