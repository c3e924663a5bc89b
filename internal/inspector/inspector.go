// Package inspector implements BinaryInspector: format detection and
// descriptor extraction from PE, ELF and Mach-O (including fat Mach-O)
// shared libraries, per spec.md §4.1.
//
// Dispatch is a tagged switch over a format kind rather than an interface
// hierarchy — each format's extractor is a set of free functions, matching
// spec.md §9's design note and the teacher's own style of hand-rolled
// packed-struct byte readers in internal/cmd/codesign/codesign.go.
package inspector

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/memflow/memflow-registry/internal/apperror"
	"github.com/memflow/memflow-registry/internal/descriptor"
)

// exportPrefix is the symbol name prefix a descriptor-bearing export must
// carry. Mach-O additionally carries the platform's leading underscore.
const exportPrefix = "MEMFLOW_"
const machoExportPrefix = "_MEMFLOW_"

// magic byte sequences recognized by IsBinary.
var (
	peMagic  = [2]byte{'M', 'Z'}
	elfMagic = [4]byte{0x7F, 'E', 'L', 'F'}
)

const (
	machMagic32 uint32 = 0xFEEDFACE
	machCigam32 uint32 = 0xCEFAEDFE
	machMagic64 uint32 = 0xFEEDFACF
	machCigam64 uint32 = 0xCFFAEDFE
)

// IsBinary peeks the first bytes of a buffer (the caller must have
// buffered at least 5 bytes, the threshold spec.md's streaming upload path
// uses) and reports whether the prefix matches a known container format.
func IsBinary(buf []byte) (bool, error) {
	if len(buf) < 4 {
		return false, apperror.Parse("need at least 4 bytes to detect binary format, got %d", len(buf))
	}
	if buf[0] == peMagic[0] && buf[1] == peMagic[1] {
		return true, nil
	}
	if buf[0] == elfMagic[0] && buf[1] == elfMagic[1] && buf[2] == elfMagic[2] && buf[3] == elfMagic[3] {
		return true, nil
	}
	magic := binary.LittleEndian.Uint32(buf[:4])
	switch magic {
	case machMagic32, machCigam32, machMagic64, machCigam64:
		return true, nil
	}
	return false, nil
}

// ParseDescriptors identifies the container format of bytes and extracts
// every MEMFLOW_-prefixed plugin descriptor it exports.
func ParseDescriptors(bytes []byte) ([]descriptor.Descriptor, error) {
	// A fat Mach-O container starts with the big-endian 0xCAFEBABE header,
	// which IsBinary does not list; it goes straight to the Mach-O
	// extractor, which recurses over each slice.
	if len(bytes) >= 4 && binary.BigEndian.Uint32(bytes[:4]) == 0xCAFEBABE {
		return parseMachO(bytes)
	}

	ok, err := IsBinary(bytes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.Parse("unrecognized binary format")
	}

	switch {
	case bytes[0] == peMagic[0] && bytes[1] == peMagic[1]:
		return parsePE(bytes)
	case bytes[0] == elfMagic[0] && bytes[1] == elfMagic[1] && bytes[2] == elfMagic[2] && bytes[3] == elfMagic[3]:
		return parseELF(bytes)
	default:
		return parseMachO(bytes)
	}
}

// readString decodes a length-prefixed string at a file offset, applying
// the bounds and UTF-8 validity checks spec.md §4.1 requires of every
// pointer-resolved field.
func readString(data []byte, offset, length int) (string, error) {
	if offset <= 0 {
		return "", apperror.Parse("pointer resolved to offset 0")
	}
	if offset+length > len(data) || offset < 0 || length < 0 {
		return "", apperror.Parse("string field out of bounds: offset=%d length=%d filelen=%d", offset, length, len(data))
	}
	raw := data[offset : offset+length]
	if !utf8.Valid(raw) {
		return "", apperror.Parse("string field is not valid utf-8")
	}
	return string(raw), nil
}
