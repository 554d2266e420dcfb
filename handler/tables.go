package handler

import "github.com/robert-malhotra/go-smartreader/meta"

// KeyExpectedTypes names the sub-map of value kinds used when parsing text
// headers.
const KeyExpectedTypes = "expected_types"

// Definitions describes the commonly used keys for verbose dumps.
var Definitions = map[string]string{
	"dv":              "values per sample",
	"ds":              "number of shots per slice",
	"dz":              "number of slices",
	"dt":              "number of time points",
	"dx_resampled":    "intended x grid dimension after resampling",
	"dx":              "x grid dimension",
	"dy":              "y grid dimension",
	"dq":              "q grid dimension",
	"dp":              "number of samples per shot",
	"start_offset":    "starting byte offset in data file",
	"autoscale_range": "range for autoscaling",
	"dimstr":          "order of data dimensions (left fastest)",
	"reorder":         "slices require reordering",
	"reorder_pattern": "slice acquisition order",
	"voxel_x":         "X voxel size (mm)",
	"voxel_y":         "Y voxel size (mm)",
	"voxel_z":         "Z voxel size including gap (mm)",
	"slice_gap":       "Unscanned space btwn adjacent slices (mm)",
	"slice_thickness": "Scanned thickness of a slice (mm)",
	"flip":            "flip angle (degrees)",
}

// ExternalNames maps internal keys to the names written to the output
// container. An empty name suppresses the key.
var ExternalNames = map[string]string{
	"skip":                 "",
	"sliceskip":            "",
	"start_offset":         "",
	"chunkname":            "",
	"datatype_in":          "",
	"datatype_out":         "",
	"handler_datatype_out": "",
	"big_endian_input":     "",
	"big_endian_output":    "",
	"definitions":          "",
	"external_names":       "",
	"expected_types":       "",
	"dimstr":               "",
	"ignoreheader":         "",
	"cl_extent_string":     "",
	"cl_dim_string":        "",
	"cl_skipstr":           "",
	"cl_skip":              "",
	"cl_sliceskip":         "",
	"cl_reorder":           "",
	"cl_big_endian_input":  "",
	"cl_autoscale":         "",
	"cl_autoscale_range":   "",
	"voxel_x":              "voxel_spacing.x",
	"voxel_y":              "voxel_spacing.y",
	"voxel_z":              "voxel_spacing.z",
	"slice_thickness":      "voxel_size.z",
	"fov_x":                "fov.x",
	"fov_y":                "fov.y",
	"fov_z":                "fov.z",
	"TR":                   "tr",
	"TE":                   "te",
	"tag":                  "scan.id",
	"chunkfile":            "",
	"multi":                "",
	"multi_hash":           "",
}

// ExpectedTypes records the value kind of keys whose text form is
// ambiguous. Extents are always ints and skips always longs.
var ExpectedTypes = map[string]meta.Kind{
	"datatype":             meta.KindInt,
	"datatype_out":         meta.KindInt,
	"handler_datatype_out": meta.KindInt,
	"datatype_in":          meta.KindInt,
	"dimstr":               meta.KindString,
	"cl_dim_string":        meta.KindString,
	"cl_extent_string":     meta.KindString,
	"chunkname":            meta.KindString,
	"chunkfile":            meta.KindString,
	"start_offset":         meta.KindInt,
	"skip":                 meta.KindInt,
	"sliceskip":            meta.KindInt,
	"tag":                  meta.KindString,
	"big_endian_input":     meta.KindBool,
	"big_endian_output":    meta.KindBool,
	"cl_big_endian_input":  meta.KindBool,
	"pulse_seq":            meta.KindString,
	"plane":                meta.KindString,
	"dx_resampled":         meta.KindInt,
	"TR":                   meta.KindInt,
	"TE":                   meta.KindInt,
	"TE2":                  meta.KindInt,
	"TI":                   meta.KindInt,
	"image_x":              meta.KindDouble,
	"image_y":              meta.KindDouble,
	"fov_x":                meta.KindDouble,
	"fov_y":                meta.KindDouble,
	"fov_z":                meta.KindDouble,
	"voxel_x":              meta.KindDouble,
	"voxel_y":              meta.KindDouble,
	"voxel_z":              meta.KindDouble,
	"overscan":             meta.KindInt,
	"slice_thickness":      meta.KindDouble,
	"slice_gap":            meta.KindDouble,
	"date":                 meta.KindString,
	"time":                 meta.KindString,
	"xchop":                meta.KindBool,
	"ychop":                meta.KindBool,
	"autoscale":            meta.KindBool,
	"autoscale_range":      meta.KindDouble,
	"reorder":              meta.KindBool,
	"cl_reorder":           meta.KindBool,
	"ignoreheader":         meta.KindBool,
	"multi":                meta.KindBool,
	"flip":                 meta.KindDouble,
	"nifti_qform_code":     meta.KindInt,
	"nifti_sform_code":     meta.KindInt,
}

// CornerNames lists the eight bounding corners of a volume.
var CornerNames = []string{"tlf", "trf", "tlb", "trb", "blf", "brf", "blb", "brb"}

var cornerWords = map[byte]string{
	't': "top", 'b': "bottom", 'l': "left", 'r': "right", 'f': "front",
}

func init() {
	for _, c := range CornerNames {
		desc := "scan volume " + cornerWords[c[0]] + " " + cornerWords[c[1]] + " "
		if c[2] == 'b' {
			desc += "back"
		} else {
			desc += "front"
		}
		for i, axis := range []string{"X", "Y", "Z"} {
			key := c + "." + string(rune('0'+i))
			Definitions[key] = desc + " " + axis + " (mm)"
			ExpectedTypes[key] = meta.KindDouble
		}
	}
}

// InitInfo installs the definitions, external name and expected type
// tables into info. Existing entries of those tables are replaced.
func InitInfo(info *meta.Info) {
	defs := meta.New()
	for k, v := range Definitions {
		defs.SetString(k, v)
	}
	info.SetHash(KeyDefinitions, defs)

	names := meta.New()
	for k, v := range ExternalNames {
		names.SetString(k, v)
	}
	info.SetHash(KeyExternalName, names)

	types := meta.New()
	for k, v := range ExpectedTypes {
		types.SetInt(k, int64(v))
	}
	info.SetHash(KeyExpectedTypes, types)
}
