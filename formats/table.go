// Package formats implements the input format handlers and the dispatch
// table that picks one for a path.
package formats

import "github.com/robert-malhotra/go-smartreader/handler"

// Entries of the default table.
var (
	PghEntry     = handler.Entry{Name: "Pittsburgh MRI", Test: PghTest, Create: NewPgh}
	DICOMEntry   = handler.Entry{Name: "DICOM", Test: DICOMTest, Create: NewDICOM}
	NIfTIEntry   = handler.Entry{Name: "NIfTI-1", Test: NIfTITest, Create: NewNIfTI}
	AnalyzeEntry = handler.Entry{Name: "ANALYZE", Test: AnalyzeTest, Create: NewAnalyze}
	PNGEntry     = handler.Entry{Name: "PNG", Test: PNGTest, Create: NewPNG}
	RawEntry     = handler.Entry{Name: "raw", Test: handler.RawTest, Create: handler.NewRaw}
)

// Default returns the dispatch table in recognition order. NIfTI precedes
// ANALYZE because NIfTI pairs also pass the ANALYZE test. The compressed
// entry dispatches decompressed content through the same table without
// itself.
func Default() handler.Table {
	plain := handler.Table{PghEntry, DICOMEntry, NIfTIEntry, AnalyzeEntry, PNGEntry, RawEntry}
	t := handler.Table{PghEntry, compressedEntry(plain)}
	return append(t, plain[1:]...)
}
