// Package config reads and writes simulation documents. A document holds the
// simulation settings and the model tree as a sim.Node; it is stored as YAML
// or TOML, chosen by file extension.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/simblox/simblox/sim"
)

// ErrUnknownFormat is returned for file extensions other than .yaml, .yml and .toml.
var ErrUnknownFormat = errors.New("unknown document format")

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Document is the top level of a simulation file.
type Document struct {
	Simulation SimulationNode `yaml:"simulation" toml:"simulation"`
	Models     sim.Node       `yaml:"models" toml:"models"`
}

// SimulationNode holds the simulation settings. Pointer fields distinguish
// "not set" from the zero value so the simulation defaults apply.
type SimulationNode struct {
	Traversal         string   `yaml:"traversal,omitempty" toml:"traversal,omitempty"`
	RealTime          *bool    `yaml:"realtime,omitempty" toml:"realtime"`
	EndTime           float64  `yaml:"endtime,omitempty" toml:"endtime,omitempty"`
	Step              float64  `yaml:"step,omitempty" toml:"step,omitempty"`
	Frequency         int      `yaml:"frequency,omitempty" toml:"frequency,omitempty"`
	Paused            bool     `yaml:"paused,omitempty" toml:"paused,omitempty"`
	ContinuousDisplay *bool    `yaml:"continuous_display,omitempty" toml:"continuous_display"`
	RatioWindow       uint64   `yaml:"ratio_window,omitempty" toml:"ratio_window,omitempty"`
	Statistics        bool     `yaml:"statistics,omitempty" toml:"statistics,omitempty"`
	Plugins           []string `yaml:"plugins,omitempty" toml:"plugins,omitempty"`
}

// Load reads the document at path.
func Load(path string) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading simulation document: %w", err)
	}
	return Decode(data, format)
}

// Decode parses data. Unrecognized keys are rejected in both formats.
func Decode(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing simulation document: %w", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return nil, fmt.Errorf("parsing simulation document: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("parsing simulation document: unknown keys %s", strings.Join(keys, ", "))
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &doc, nil
}

// Encode renders doc in format.
func Encode(doc *Document, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encoding simulation document: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding simulation document: %w", err)
		}
	case FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, fmt.Errorf("encoding simulation document: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return buf.Bytes(), nil
}

// Save writes doc to path in the format its extension names.
func Save(doc *Document, path string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Encode(doc, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing simulation document: %w", err)
	}
	return nil
}
