package wildcard

import (
	"os"
	"path/filepath"
	"testing"

	"gitlab.com/tozd/go/errors"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"slice*.dcm", "slice001.dcm", true},
		{"slice^.dcm", "slice001.dcm", true},
		{"slice???.dcm", "slice001.dcm", true},
		{"slice###.dcm", "slice001.dcm", true},
		{"slice##.dcm", "slice001.dcm", false},
		{"slice*.dcm", "slice001.dcm.bak", false},
		{"slice*.dcm", "xslice001.dcm", false},
		{"*", "anything", true},
		{"s*e*.img", "sliceone.img", true},
		{"data[1].raw", "data[1].raw", true},
		{"data[1].raw", "data1.raw", false},
		{"exact", "exact", true},
		{"exact", "exac", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.name, func(t *testing.T) {
			got, err := Match(tt.pattern, tt.name)
			if err != nil {
				t.Fatalf("Match failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	dir, base := Split("slice*.raw")
	if dir != "." || base != "slice*.raw" {
		t.Errorf("got %q %q", dir, base)
	}
	dir, base = Split("/data/run1/slice*.raw")
	if dir != "/data/run1" || base != "slice*.raw" {
		t.Errorf("got %q %q", dir, base)
	}
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"s3.raw", "s1.raw", "s2.raw", "other.txt", "s10.raw"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := Expand(dir + "/s*.raw")
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	want := []string{dir + "/s1.raw", dir + "/s10.raw", dir + "/s2.raw", dir + "/s3.raw"}
	if len(got) != len(want) {
		t.Fatalf("expected %d names, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("name %d: got %s, want %s", i, got[i], want[i])
		}
	}

	_, err = Expand(dir + "/nothing*")
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}
