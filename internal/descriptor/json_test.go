package descriptor

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFileTypeRoundTrip(t *testing.T) {
	for _, ft := range []FileType{FileTypePE, FileTypeELF, FileTypeMach} {
		data, err := json.Marshal(ft)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var got FileType
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got != ft {
			t.Fatalf("round-trip mismatch: got %v, want %v", got, ft)
		}
	}
}

func TestArchitectureRoundTripKnown(t *testing.T) {
	for _, arch := range []Architecture{ArchX86, ArchX86_64, ArchARM, ArchARM64} {
		data, err := json.Marshal(arch)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var got Architecture
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got != arch {
			t.Fatalf("round-trip mismatch: got %+v, want %+v", got, arch)
		}
	}
}

func TestArchitectureRoundTripUnknown(t *testing.T) {
	arch := ArchUnknown(0xdeadbeef)
	data, err := json.Marshal(arch)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"name":"unknown","raw":3735928559}` {
		t.Fatalf("unexpected wire form: %s", data)
	}

	var got Architecture
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.IsUnknown() || got.Raw() != 0xdeadbeef {
		t.Fatalf("round-trip mismatch: got %+v", got)
	}
}

func TestVariantJSONOmitsTimeZone(t *testing.T) {
	v := Variant{
		Digest:    "ab12",
		Signature: "FF00",
		CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 890000000, time.UTC),
		Descriptor: Descriptor{
			FileType:      FileTypeELF,
			Architecture:  ArchX86_64,
			PluginVersion: 3,
			Name:          "coreimport",
			Version:       "1.0.0",
			Description:   "core plugin",
		},
	}

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if want := `"created_at":"2026-03-04T05:06:07.890000"`; !strings.Contains(string(data), want) {
		t.Fatalf("expected %s in %s", want, data)
	}

	var got Variant
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(v, got, cmp.AllowUnexported(Architecture{})); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}
