package formats

import (
	"bufio"
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-smartreader/handler"
	"github.com/robert-malhotra/go-smartreader/internal/dtype"
	"github.com/robert-malhotra/go-smartreader/meta"
	"github.com/robert-malhotra/go-smartreader/pghmri"
)

// pghNames translates chunk-relative Pgh MRI key names that have no
// entry in the external name table. An empty translation drops the key.
var pghNames = map[string]string{
	"datatype":            handler.KeyDatatypeIn,
	"dimensions":          handler.KeyDimstr,
	"file":                "chunkfile",
	"!format":             "",
	"!version":            "",
	"offset":              "",
	"size":                "",
	"little_endian":       "",
	"pghmri_subtype":      "",
	"te2":                 "TE2",
	"ti":                  "TI",
	"scan.date":           "date",
	"scan.time":           "time",
	"flip_angle":          "flip",
	"normal.x":            "slice_norm.0",
	"normal.y":            "slice_norm.1",
	"normal.z":            "slice_norm.2",
	"cl_extent_string":    "",
	"cl_dim_string":       "",
	"cl_reorder":          "",
	"cl_big_endian_input": "",
	"cl_autoscale":        "",
}

// pghTypes supplements the expected type table with keys that other tools
// write into Pgh MRI headers.
var pghTypes = map[string]meta.Kind{
	"TE2":              meta.KindInt,
	"TI":               meta.KindInt,
	"nifti_sform_code": meta.KindInt,
	"nifti_qform_code": meta.KindInt,
}

func init() {
	for _, axis := range []string{"x", "y", "z"} {
		pghTypes["origin."+axis] = meta.KindDouble
		pghTypes["translate."+axis] = meta.KindDouble
		for i := 0; i < 4; i++ {
			pghTypes["nifti_srow_"+axis+"_"+strconv.Itoa(i)] = meta.KindDouble
		}
	}
}

const pghSubtypeLX = "lxconvert"

// Pgh reads chunks of an existing Pittsburgh MRI dataset. The first chunk
// is described into the caller's info; every later chunk is pushed onto the
// work stack with its own info and a secondary handler.
type Pgh struct {
	*handler.Base
	ds        *pghmri.File
	secondary bool
}

// NewPgh creates a handler for the dataset header at path.
func NewPgh(path string, info *meta.Info) (handler.Handler, error) {
	b, err := handler.NewBase(path, "Pittsburgh MRI")
	if err != nil {
		return nil, err
	}
	return &Pgh{Base: b}, nil
}

func newPghSecondary(path string) (*Pgh, error) {
	b, err := handler.NewBase(path, "Pittsburgh MRI (secondary chunk)")
	if err != nil {
		return nil, err
	}
	return &Pgh{Base: b, secondary: true}, nil
}

var pghFormatLine = regexp.MustCompile(`(?i)^!format ?= ?pgh`)

// PghTest accepts files whose first line declares the pgh format.
func PghTest(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return pghFormatLine.MatchString(line)
}

// DescribeStructure walks the header keys in sorted order, translating the
// keys of each chunk into the internal vocabulary.
func (p *Pgh) DescribeStructure(ctx context.Context, info *meta.Info, stack *handler.Stack) error {
	if err := p.Base.DescribeStructure(ctx, info, stack); err != nil {
		return err
	}
	if p.secondary {
		return nil
	}
	log := zerolog.Ctx(ctx)

	names := internalNames(info.Hash(handler.KeyExternalName))
	addPghTypes(info)

	ds, err := pghmri.Open(p.Name())
	if err != nil {
		return &handler.Error{Kind: handler.Structural, Op: "pghmri header", Path: p.Name(), Err: err}
	}
	defer ds.Close()

	current := ""
	for _, key := range ds.Keys() {
		value := ds.Get(key)
		switch {
		case value == pghmri.ChunkMarker:
			if current != "" {
				if err := p.finishChunk(info, current); err != nil {
					return err
				}
				next := startChunk(key)
				if info.Has("pghmri_subtype") {
					next.SetString("pghmri_subtype", info.String("pghmri_subtype"))
				}
				h, err := newPghSecondary(p.Name())
				if err != nil {
					return err
				}
				stack.Push(h, next)
				info = next
			} else {
				info.SetString("chunkname", key)
			}
			log.Debug().Str("chunk", key).Msg("found chunk")
			current = key

		case strings.HasPrefix(key, "history."):
			info.SetString(key, value)

		case strings.HasPrefix(key, "!origin"):
			if strings.Contains(value, pghSubtypeLX) {
				info.SetString("pghmri_subtype", pghSubtypeLX)
			}

		case current == "" || !strings.HasPrefix(key, current+"."):
			log.Trace().Str("key", key).Msg("orphan key")

		default:
			name := translateKey(strings.TrimPrefix(key, current+"."), names)
			if name == "" {
				continue
			}
			if err := defineKVP(info, name, value); err != nil {
				return &handler.Error{Kind: handler.Structural, Op: "pghmri header", Path: p.Name(), Err: err}
			}
		}
	}
	if current == "" {
		return handler.Errorf(handler.Structural, "pghmri header", p.Name(), "dataset defines no chunks")
	}
	return p.finishChunk(info, current)
}

// internalNames inverts the external name table and adds the Pgh MRI
// specific translations.
func internalNames(external *meta.Info) map[string]string {
	out := make(map[string]string)
	if external != nil {
		for _, k := range external.Keys() {
			if v := external.String(k); v != "" {
				out[v] = k
			}
		}
	}
	for k, v := range pghNames {
		out[k] = v
	}
	return out
}

func translateKey(key string, names map[string]string) string {
	if t, ok := names[key]; ok {
		key = t
	}
	if len(key) == len("extent.x") && strings.HasPrefix(key, "extent.") {
		return handler.ExtentKey(key[len(key)-1])
	}
	return key
}

func isExtentKey(key string) bool {
	return len(key) == 2 && key[0] == 'd'
}

// defineKVP stores a header value under its expected type, guessing the
// type of unknown keys from the text.
func defineKVP(info *meta.Info, key, value string) error {
	if strings.Contains(key, "datatype") {
		d, err := dtype.FromName(value)
		if err != nil {
			return err
		}
		handler.SetDatatype(info, key, d)
		return nil
	}
	if v, ok := info.Hash(handler.KeyExpectedTypes).Lookup(key); ok {
		switch meta.Kind(v.Int()) {
		case meta.KindString:
			info.SetString(key, value)
		case meta.KindInt:
			info.SetInt(key, atoi(value))
		case meta.KindDouble:
			f, _ := strconv.ParseFloat(strings.TrimSpace(value), 64)
			info.SetDouble(key, f)
		case meta.KindBool:
			info.SetBool(key, atoi(value) != 0)
		default:
			info.SetString(key, value)
		}
		return nil
	}
	if isExtentKey(key) {
		info.SetInt(key, atoi(value))
		return nil
	}
	s := strings.TrimSpace(value)
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		info.SetInt(key, n)
	} else if f, err := strconv.ParseFloat(s, 64); err == nil {
		info.SetDouble(key, f)
	} else {
		info.SetString(key, value)
	}
	return nil
}

// atoi parses the leading integer of s, ignoring trailing text.
func atoi(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && (s[0] == '-' || s[0] == '+')) {
		end++
	}
	n, _ := strconv.ParseInt(s[:end], 10, 64)
	return n
}

func addPghTypes(info *meta.Info) {
	types := info.EnsureHash(handler.KeyExpectedTypes)
	for k, v := range pghTypes {
		types.SetInt(k, int64(v))
	}
}

func startChunk(name string) *meta.Info {
	info := meta.New()
	handler.InitInfo(info)
	addPghTypes(info)
	info.SetString("chunkname", name)
	info.SetInt(handler.KeyStartOffset, 0)
	info.SetString("chunkfile", "")
	return info
}

func (p *Pgh) finishChunk(info *meta.Info, chunk string) error {
	if !info.Has(handler.KeyDatatypeIn) {
		return handler.Errorf(handler.Structural, "pghmri header", p.Name(),
			"chunk %s fails to define datatype", chunk)
	}
	handler.SetDatatype(info, handler.KeyHandlerOut, handler.Datatype(info, handler.KeyDatatypeIn))
	if strings.EqualFold(info.String("pghmri_subtype"), pghSubtypeLX) {
		translateLX(info)
	}
	return nil
}

// translateLX adjusts datasets converted from GE LX files, which store
// times in milliseconds and give the volume as origin and field of view.
func translateLX(info *meta.Info) {
	for _, key := range []string{"TE", "TR", "TE2", "TI"} {
		if info.Has(key) {
			info.SetInt(key, 1000*info.Int(key))
		}
	}
	if !info.Has("rowflip") {
		info.SetInt("rowflip", 0)
	}
	if !info.Has("rowflip_pattern") {
		info.SetString("rowflip_pattern", "none")
	}
	if info.Has("voxel_z") && info.Has("slice_thickness") {
		info.SetDouble("slice_gap", info.Double("voxel_z")-info.Double("slice_thickness"))
	}
	for _, k := range []string{"origin.x", "origin.y", "origin.z", "fov_x", "fov_y", "fov_z"} {
		if !info.Has(k) {
			return
		}
	}
	ctr := [3]float64{info.Double("origin.x"), info.Double("origin.y"), info.Double("origin.z")}
	half := [3]float64{0.5 * info.Double("fov_x"), 0.5 * info.Double("fov_y"), 0.5 * info.Double("fov_z")}
	for _, name := range handler.CornerNames {
		sign := [3]float64{-1, 1, 1}
		if name[1] == 'r' {
			sign[0] = 1
		}
		if name[2] == 'b' {
			sign[1] = -1
		}
		if name[0] == 'b' {
			sign[2] = -1
		}
		for i := range ctr {
			info.SetDouble(name+"."+strconv.Itoa(i), ctr[i]+sign[i]*half[i])
		}
	}
}

// Reopen opens the dataset if it is closed.
func (p *Pgh) Reopen() error {
	if p.ds != nil {
		return nil
	}
	ds, err := pghmri.Open(p.Name())
	if err != nil {
		return &handler.Error{Kind: handler.IO, Op: "pghmri open", Path: p.Name(), Err: err}
	}
	p.ds = ds
	return nil
}

// Close closes the dataset.
func (p *Pgh) Close() error {
	if p.ds == nil {
		return nil
	}
	err := p.ds.Close()
	p.ds = nil
	return handler.WrapIO("pghmri close", p.Name(), err)
}

func (p *Pgh) Destroy() error { return p.Close() }

// Read reads from the chunk named by chunkname. Offsets count bytes of the
// chunk's own datatype.
func (p *Pgh) Read(info *meta.Info, offset int64, n int, want dtype.Datatype, dst []byte) error {
	if nat := handler.Datatype(info, handler.KeyHandlerOut); want != nat {
		return handler.Errorf(handler.UnsupportedConversion, "pghmri read", p.Name(),
			"asked to translate %s to %s", nat, want)
	}
	if err := p.Reopen(); err != nil {
		return err
	}
	chunk := info.String("chunkname")
	if err := p.ds.ReadChunk(chunk, n, offset/int64(want.Size()), want, dst); err != nil {
		return &handler.Error{Kind: handler.Structural, Op: "pghmri read", Path: p.Name(), Err: err}
	}
	return nil
}
