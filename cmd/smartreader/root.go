package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/robert-malhotra/go-smartreader/smartreader"
)

// flagAliases maps the historical option spellings onto flag names.
var flagAliases = map[string]string{
	"out":       "output",
	"dataorder": "dimorder",
	"do":        "dimorder",
	"di":        "dims",
	"ss":        "sliceskip",
}

func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if alias, ok := flagAliases[name]; ok {
		name = alias
	}
	return pflag.NormalizedName(name)
}

type rootFlags struct {
	config string
	cfg    smartreader.Config

	autoscaleRange          float64
	offset, skip, sliceSkip int64
}

// NewRootCommand returns the smartreader command. The process arguments
// are recorded in the output history.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *rootFlags) {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "smartreader [input [output]]",
		Short: "Convert imaging data to a Pittsburgh MRI dataset",
		Long: `smartreader recognizes the format of its input (Pittsburgh MRI, DICOM,
NIfTI-1, ANALYZE, PNG, optionally compressed, or raw samples), works out the
layout of the data and writes it with its metadata to a Pgh MRI dataset.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd.Flags(), args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if cfg.Debug || cfg.Verbose {
				logger := zerolog.Ctx(ctx).Level(zerolog.DebugLevel)
				ctx = logger.WithContext(ctx)
			}
			return smartreader.Run(ctx, cfg, os.Args)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalizeFlag)
	c := &f.cfg
	fs.StringVarP(&f.config, "config", "c", "", "YAML file of option values; flags take precedence")
	fs.StringVarP(&c.Input, "input", "i", "input.mri", "input file, or a wildcard pattern with --multi")
	fs.StringVarP(&c.Output, "output", "o", "output.mri", "output Pgh MRI dataset")
	fs.StringVar(&c.Tag, "tag", "", "scan ID string")
	fs.StringVar(&c.PhaseRef, "phaseref", "", "phase reference file")
	fs.StringVar(&c.Bandpass, "bandpass", "", "band pass info directory")
	fs.StringVar(&c.RampFile, "rampfile", "", "ramp sampling info file")
	fs.StringVar(&c.AuxFile, "auxfile", "", "auxiliary format-specific info file")
	fs.BoolVar(&c.XChop, "xchop", false, "phase chop in X")
	fs.BoolVar(&c.YChop, "ychop", false, "phase chop in Y")
	fs.BoolVar(&c.Autoscale, "autoscale", false, "autoscale the output")
	fs.Float64Var(&f.autoscaleRange, "autoscale_range", 1.0, "approximate range for autoscaling")
	fs.BoolVar(&c.Debug, "debug", false, "log conversion decisions")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "dump the metadata of every chunk")
	fs.BoolVar(&c.BigEndian, "bigendian", false, "input samples are big-endian")
	fs.BoolVar(&c.LittleEndian, "littleendian", false, "input samples are little-endian")
	fs.BoolVar(&c.IgnoreHeader, "ignoreheader", false, "treat the input as raw samples")
	fs.BoolVar(&c.Multi, "multi", false, "read every file matching the input pattern")
	fs.StringVarP(&c.Type, "type", "t", "", "input sample type (short, ushort, uchar, int, long, float, double)")
	fs.Int64Var(&f.offset, "offset", 0, "byte offset of the first sample")
	fs.Int64VarP(&f.skip, "skip", "s", 0, "bytes to skip after each slice row block")
	fs.Int64Var(&f.sliceSkip, "sliceskip", 0, "bytes to skip after each slice")
	fs.StringVarP(&c.Reorder, "reorder", "r", "", "slices require reordering (T/F or 1/0)")
	fs.StringVar(&c.DimOrder, "dimorder", "", "order of dimensions, fastest first (e.g. vxyzt)")
	fs.StringVar(&c.Dims, "dims", "", "extents in dimension order (e.g. 2:64:64)")
	fs.StringVar(&c.Skips, "skips", "", "skip lengths in dimension order, fields may be empty")
	fs.StringArrayVar(&c.Defs, "def", nil, "define a key, as key=value or key (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("bigendian", "littleendian")

	return cmd, f
}

// resolve loads the config file, if any, and lays the changed flags and
// positional arguments over it.
func (f *rootFlags) resolve(fs *pflag.FlagSet, args []string) (*smartreader.Config, error) {
	cfg := smartreader.DefaultConfig()
	if f.config != "" {
		loaded, err := smartreader.LoadConfig(f.config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs.Visit(func(flag *pflag.Flag) {
		c := &f.cfg
		switch flag.Name {
		case "input":
			cfg.Input = c.Input
		case "output":
			cfg.Output = c.Output
		case "tag":
			cfg.Tag = c.Tag
		case "phaseref":
			cfg.PhaseRef = c.PhaseRef
		case "bandpass":
			cfg.Bandpass = c.Bandpass
		case "rampfile":
			cfg.RampFile = c.RampFile
		case "auxfile":
			cfg.AuxFile = c.AuxFile
		case "xchop":
			cfg.XChop = c.XChop
		case "ychop":
			cfg.YChop = c.YChop
		case "autoscale":
			cfg.Autoscale = c.Autoscale
		case "autoscale_range":
			cfg.AutoscaleRange = &f.autoscaleRange
		case "debug":
			cfg.Debug = c.Debug
		case "verbose":
			cfg.Verbose = c.Verbose
		case "bigendian":
			cfg.BigEndian, cfg.LittleEndian = c.BigEndian, false
		case "littleendian":
			cfg.LittleEndian, cfg.BigEndian = c.LittleEndian, false
		case "ignoreheader":
			cfg.IgnoreHeader = c.IgnoreHeader
		case "multi":
			cfg.Multi = c.Multi
		case "type":
			cfg.Type = c.Type
		case "offset":
			cfg.Offset = &f.offset
		case "skip":
			cfg.Skip = &f.skip
		case "sliceskip":
			cfg.SliceSkip = &f.sliceSkip
		case "reorder":
			cfg.Reorder = c.Reorder
		case "dimorder":
			cfg.DimOrder = c.DimOrder
		case "dims":
			cfg.Dims = c.Dims
		case "skips":
			cfg.Skips = c.Skips
		case "def":
			cfg.Defs = append(cfg.Defs, c.Defs...)
		}
	})

	if len(args) > 0 && !fs.Changed("input") {
		cfg.Input = args[0]
	}
	if len(args) > 1 && !fs.Changed("output") {
		cfg.Output = args[1]
	}
	return cfg, nil
}
