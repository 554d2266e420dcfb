// Package smartreader drives an ingestion run: it turns the configured
// overrides into the initial metadata, finds a handler for the input,
// reconciles what header discovery learned and transfers every chunk into
// a Pgh MRI dataset.
package smartreader

import (
	"bytes"
	"os"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-smartreader/handler"
	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/meta"
)

// Config holds the user's overrides. Pointer fields distinguish "not given"
// from a zero value.
type Config struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Tag    string `yaml:"tag,omitempty"`

	PhaseRef string `yaml:"phaseref,omitempty"`
	Bandpass string `yaml:"bandpass,omitempty"`
	RampFile string `yaml:"rampfile,omitempty"`
	AuxFile  string `yaml:"auxfile,omitempty"`

	XChop          bool     `yaml:"xchop,omitempty"`
	YChop          bool     `yaml:"ychop,omitempty"`
	Autoscale      bool     `yaml:"autoscale,omitempty"`
	AutoscaleRange *float64 `yaml:"autoscale_range,omitempty"`

	Debug   bool `yaml:"debug,omitempty"`
	Verbose bool `yaml:"verbose,omitempty"`

	BigEndian    bool `yaml:"bigendian,omitempty"`
	LittleEndian bool `yaml:"littleendian,omitempty"`

	IgnoreHeader bool `yaml:"ignoreheader,omitempty"`
	Multi        bool `yaml:"multi,omitempty"`

	Type      string `yaml:"type,omitempty"`
	Offset    *int64 `yaml:"offset,omitempty"`
	Skip      *int64 `yaml:"skip,omitempty"`
	SliceSkip *int64 `yaml:"sliceskip,omitempty"`
	Reorder   string `yaml:"reorder,omitempty"`

	DimOrder string   `yaml:"dimorder,omitempty"`
	Dims     string   `yaml:"dims,omitempty"`
	Skips    string   `yaml:"skips,omitempty"`
	Defs     []string `yaml:"def,omitempty"`
}

// DefaultConfig returns the configuration used when nothing is given.
func DefaultConfig() *Config {
	return &Config{Input: "input.mri", Output: "output.mri"}
}

// LoadConfig reads a YAML configuration file over the defaults. Unknown
// fields are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, &handler.Error{Kind: handler.Config, Op: "config", Path: path,
			Err: errors.Errorf("parsing YAML: %w", err)}
	}
	return cfg, nil
}

// ValidDimString reports whether no axis letter repeats in s.
func ValidDimString(s string) bool {
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(s[i+1:], s[i]) >= 0 {
			return false
		}
	}
	return true
}

func configError(format string, args ...any) error {
	return handler.Errorf(handler.Config, "config", "", format, args...)
}

// Info builds the initial metadata of the first chunk: the lookup tables,
// the defaults and every override as its cl_* or plain key.
func (c *Config) Info() (*meta.Info, error) {
	info := meta.New()
	handler.InitInfo(info)
	defs := info.Hash(handler.KeyDefinitions)

	info.SetBool(handler.KeyBigEndian, true)
	handler.SetDatatype(info, handler.KeyDatatypeIn, dtype.Int16)
	info.SetDouble("autoscale_range", 1.0)
	info.SetInt(handler.KeyStartOffset, 0)
	info.SetString("chunkname", "images")
	info.SetString("chunkfile", ".dat")

	for _, s := range []struct{ value, key, def string }{
		{c.Tag, "tag", "an ID string associated with this data"},
		{c.PhaseRef, "phasereffile", "filename for phase reference info"},
		{c.Bandpass, "bandpassdir", "directory for scanner band pass info"},
		{c.RampFile, "rampfile", "filename for ramp sampling info"},
		{c.AuxFile, "auxfile", "auxiliary format-specific info file"},
	} {
		if s.value != "" {
			info.SetString(s.key, s.value)
			defs.SetString(s.key, s.def)
		}
	}

	info.SetBool("xchop", c.XChop)
	defs.SetString("xchop", "phase chop in X?")
	info.SetBool("ychop", c.YChop)
	defs.SetString("ychop", "phase chop in Y?")
	if c.Autoscale {
		info.SetBool("cl_autoscale", true)
	}
	defs.SetString("autoscale", "perform autoscaling?")
	if c.AutoscaleRange != nil {
		info.SetDouble("cl_autoscale_range", *c.AutoscaleRange)
	}

	switch {
	case c.BigEndian:
		info.SetBool("cl_big_endian_input", true)
	case c.LittleEndian:
		info.SetBool("cl_big_endian_input", false)
	}

	info.SetBool("ignoreheader", c.IgnoreHeader)
	defs.SetString("ignoreheader", "ignore info in the file header?")
	info.SetBool("multi", c.Multi)
	defs.SetString("multi", "read multiple files")

	if c.Type != "" {
		d, err := dtype.ParseOption(c.Type)
		if err != nil {
			return nil, configError("data type unrecognized: %s", c.Type)
		}
		handler.SetDatatype(info, handler.KeyDatatypeIn, d)
	}

	if c.Offset != nil {
		info.SetInt(handler.KeyStartOffset, *c.Offset)
	}
	if c.Skip != nil {
		info.SetInt("cl_skip", *c.Skip)
	}
	if c.SliceSkip != nil {
		info.SetInt("cl_sliceskip", *c.SliceSkip)
	}

	if c.Reorder != "" {
		if r := c.Reorder[0]; r >= '0' && r <= '9' {
			info.SetBool("cl_reorder", leadingInt(c.Reorder) != 0)
		} else {
			info.SetBool("cl_reorder", r == 'T' || r == 't')
		}
	}

	if c.DimOrder != "" {
		if !ValidDimString(c.DimOrder) {
			return nil, configError("<%s> is not a legitimate data order", c.DimOrder)
		}
		info.SetString("cl_dim_string", c.DimOrder)
		defs.SetString("cl_dim_string", "order of dimensions according to command line")
	}
	if c.Dims != "" {
		info.SetString("cl_extent_string", c.Dims)
		defs.SetString("cl_extent_string", "extents of dimensions according to command line")
	}
	if c.Skips != "" {
		info.SetString("cl_skipstr", c.Skips)
		defs.SetString("cl_skipstr", "skip lengths of dimensions according to command line")
	}

	for _, d := range c.Defs {
		if err := Define(info, d); err != nil {
			return nil, err
		}
	}

	handler.SetDatatype(info, handler.KeyHandlerOut, handler.Datatype(info, handler.KeyDatatypeIn))
	return info, nil
}

// Define applies one key=value definition, guessing the value's kind from
// its text. A bare key is set true.
func Define(info *meta.Info, def string) error {
	key, value, ok := strings.Cut(def, "=")
	if !ok {
		info.SetBool(key, true)
		return nil
	}
	if value == "" {
		return configError("empty definition value for %s", key)
	}
	switch {
	case strings.EqualFold(value, "T"), strings.EqualFold(value, "TRUE"):
		info.SetBool(key, true)
	case strings.EqualFold(value, "F"), strings.EqualFold(value, "FALSE"):
		info.SetBool(key, false)
	case onlyChars(value, "0123456789+-"):
		info.SetInt(key, leadingInt(value))
	case onlyChars(value, "0123456789+-.eE"):
		info.SetDouble(key, leadingFloat(value))
	default:
		info.SetString(key, value)
	}
	return nil
}

func onlyChars(s, set string) bool {
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(set, s[i]) < 0 {
			return false
		}
	}
	return true
}

// leadingInt parses the longest integer prefix of s, or returns 0.
func leadingInt(s string) int64 {
	end := 0
	if end < len(s) && (s[0] == '+' || s[0] == '-') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.ParseInt(s[:end], 10, 64)
	return n
}

// leadingFloat parses the longest floating point prefix of s, or returns 0.
func leadingFloat(s string) float64 {
	for end := len(s); end > 0; end-- {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return f
		}
	}
	return 0
}
