package models

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

func init() {
	// Context rule bags hold scalars behind interface values; gob needs the
	// concrete types registered up front.
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register(false)
	gob.Register([]string(nil))
	gob.Register(time.Duration(0))
	gob.Register(map[string]any(nil))
}

// SaveBinary writes the result in the binary round-trip format: fast, full
// fidelity, zone sub-series included.
func (r *AnalysisResult) SaveBinary(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(r); err != nil {
		return fmt.Errorf("encode analysis result: %w", err)
	}
	return nil
}

// LoadBinaryResult reads a result written by SaveBinary. The loaded result is
// equal in every observable field to the original.
func LoadBinaryResult(rd io.Reader) (*AnalysisResult, error) {
	var result AnalysisResult
	if err := gob.NewDecoder(rd).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode analysis result: %w", err)
	}
	// gob encodes empty maps as absent; restore the never-nil Features
	// guarantee for zones serialized before analysis populated them.
	for _, zone := range result.Zones {
		if zone != nil && zone.Features == nil {
			zone.Features = make(map[string]float64)
		}
	}
	return &result, nil
}

// SaveText writes the result as indented JSON. Zone sub-series are omitted
// for compactness; boundaries, labels, durations, feature maps and indicator
// contexts round-trip losslessly.
func (r *AnalysisResult) SaveText(w io.Writer) error {
	slim := *r
	slim.Zones = make([]*Zone, len(r.Zones))
	for i, zone := range r.Zones {
		z := *zone
		z.Slice = nil
		slim.Zones[i] = &z
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&slim); err != nil {
		return fmt.Errorf("encode analysis result as JSON: %w", err)
	}
	return nil
}

// LoadTextResult reads a result written by SaveText. Numeric values inside
// Context.Rules come back as float64: JSON has a single number type, so an
// int rule like smooth=3 loads as float64(3). Callers needing the original
// static type should use the binary format.
func LoadTextResult(rd io.Reader) (*AnalysisResult, error) {
	var result AnalysisResult
	if err := json.NewDecoder(rd).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode analysis result from JSON: %w", err)
	}
	return &result, nil
}

// SaveBinaryFile writes the binary format to the given path.
func (r *AnalysisResult) SaveBinaryFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return r.SaveBinary(f)
}

// LoadBinaryFile reads the binary format from the given path.
func LoadBinaryFile(path string) (*AnalysisResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return LoadBinaryResult(f)
}

// SaveTextFile writes the JSON format to the given path.
func (r *AnalysisResult) SaveTextFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return r.SaveText(f)
}

// LoadTextFile reads the JSON format from the given path.
func LoadTextFile(path string) (*AnalysisResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return LoadTextResult(f)
}
