package filter

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

var original = []byte("!format = pgh\n!version = 1.0\nimages = [chunk]\n")

func encode(t *testing.T, name string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch name {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "zlib":
		w = zlib.NewWriter(&buf)
	case "zstd":
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatalf("zstd writer: %v", err)
		}
		w = enc
	case "s2":
		w = s2.NewWriter(&buf)
	case "snappy":
		w = snappy.NewBufferedWriter(&buf)
	default:
		t.Fatalf("unknown encoder %s", name)
	}
	if _, err := w.Write(original); err != nil {
		t.Fatalf("%s write: %v", name, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("%s close: %v", name, err)
	}
	return buf.Bytes()
}

func TestDetectAndDecode(t *testing.T) {
	tests := []struct {
		encoder string
		filter  string
	}{
		{"gzip", "gzip"},
		{"zlib", "zlib"},
		{"zstd", "zstd"},
		{"s2", "s2"},
		{"snappy", "s2"},
	}

	for _, tt := range tests {
		t.Run(tt.encoder, func(t *testing.T) {
			data := encode(t, tt.encoder)

			f := Detect(data[:MagicLen])
			if f == nil {
				t.Fatalf("no filter detected for %s", tt.encoder)
			}
			if f.Name() != tt.filter {
				t.Fatalf("expected filter %s, got %s", tt.filter, f.Name())
			}

			var out bytes.Buffer
			if _, err := Decode(&out, bytes.NewReader(data), f); err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !bytes.Equal(out.Bytes(), original) {
				t.Errorf("decoded mismatch:\ngot:  %q\nwant: %q", out.Bytes(), original)
			}
		})
	}
}

func TestDetectPlainData(t *testing.T) {
	if f := Detect(original[:MagicLen]); f != nil {
		t.Errorf("plain text detected as %s", f.Name())
	}
	if f := Detect([]byte{0x78, 0x00}); f != nil {
		t.Errorf("bad zlib check value detected as %s", f.Name())
	}
	if f := Detect(nil); f != nil {
		t.Errorf("empty prefix detected as %s", f.Name())
	}
}

func TestDetectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slice.gz")
	if err := os.WriteFile(path, encode(t, "gzip"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := DetectFile(path)
	if err != nil {
		t.Fatalf("DetectFile failed: %v", err)
	}
	if f == nil || f.Name() != "gzip" {
		t.Fatalf("expected gzip, got %v", f)
	}

	short := filepath.Join(dir, "short")
	if err := os.WriteFile(short, []byte{1}, 0o644); err != nil {
		t.Fatal(err)
	}
	f, err = DetectFile(short)
	if err != nil {
		t.Fatalf("DetectFile on short file failed: %v", err)
	}
	if f != nil {
		t.Errorf("short file detected as %s", f.Name())
	}
}
