// Package descriptor holds the data types shared by the binary inspector,
// the object store and the catalog: the self-describing metadata extracted
// from a plugin binary's export table, and the records built on top of it.
package descriptor

import "time"

// FileType identifies the binary container format a plugin was compiled into.
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypePE
	FileTypeELF
	FileTypeMach
)

func (t FileType) String() string {
	switch t {
	case FileTypePE:
		return "pe"
	case FileTypeELF:
		return "elf"
	case FileTypeMach:
		return "mach"
	default:
		return "unknown"
	}
}

// ParseFileType parses the snake_case wire representation of a FileType.
func ParseFileType(s string) (FileType, bool) {
	switch s {
	case "pe":
		return FileTypePE, true
	case "elf":
		return FileTypeELF, true
	case "mach":
		return FileTypeMach, true
	default:
		return FileTypeUnknown, false
	}
}

// Architecture identifies the CPU architecture a plugin variant targets.
// Unrecognized machine/cputype values are preserved via Raw rather than
// discarded, matching spec.md's Unknown(u32) variant.
type Architecture struct {
	kind archKind
	raw  uint32
}

type archKind int

const (
	archUnknown archKind = iota
	archX86
	archX86_64
	archARM
	archARM64
)

var (
	ArchX86    = Architecture{kind: archX86}
	ArchX86_64 = Architecture{kind: archX86_64}
	ArchARM    = Architecture{kind: archARM}
	ArchARM64  = Architecture{kind: archARM64}
)

// ArchUnknown builds an Architecture carrying an unrecognized raw machine value.
func ArchUnknown(raw uint32) Architecture {
	return Architecture{kind: archUnknown, raw: raw}
}

// IsUnknown reports whether this architecture did not map to a known enum value.
func (a Architecture) IsUnknown() bool { return a.kind == archUnknown }

// Raw returns the original machine/cputype value for an unknown architecture.
func (a Architecture) Raw() uint32 { return a.raw }

func (a Architecture) String() string {
	switch a.kind {
	case archX86:
		return "x86"
	case archX86_64:
		return "x86_64"
	case archARM:
		return "arm"
	case archARM64:
		return "arm64"
	default:
		return "unknown"
	}
}

// ParseArchitecture parses the snake_case wire representation of an Architecture.
// Unknown raw values have no textual form and cannot round-trip through this
// function: "unknown" and any other unlisted string report ok=false, so the
// gateway rejects a query filtering on them as an invalid parameter.
func ParseArchitecture(s string) (Architecture, bool) {
	switch s {
	case "x86":
		return ArchX86, true
	case "x86_64":
		return ArchX86_64, true
	case "arm":
		return ArchARM, true
	case "arm64":
		return ArchARM64, true
	default:
		return Architecture{}, false
	}
}

// Descriptor is the fixed set of fields decoded from one exported plugin
// descriptor record inside a binary. Two descriptors are equal iff all six
// fields are equal.
type Descriptor struct {
	FileType      FileType     `json:"file_type"`
	Architecture  Architecture `json:"architecture"`
	PluginVersion int32        `json:"plugin_version"`
	Name          string       `json:"name"`
	Version       string       `json:"version"`
	Description   string       `json:"description"`
}

// Variant is one catalog entry: a single (digest, descriptor) pair extracted
// from an uploaded binary.
type Variant struct {
	Digest     string     `json:"digest"`
	Signature  string     `json:"signature"`
	CreatedAt  time.Time  `json:"created_at"`
	Descriptor Descriptor `json:"descriptor"`
}

// Metadata is the sidecar persisted alongside each uploaded binary.
// Descriptors is always non-empty, and every entry shares the same
// PluginVersion since they all originate from one binary compiled against
// one ABI.
type Metadata struct {
	Digest      string       `json:"digest"`
	Signature   string       `json:"signature"`
	CreatedAt   time.Time    `json:"created_at"`
	Descriptors []Descriptor `json:"descriptors"`
}

// Info is the public per-name summary returned by GET /plugins.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
