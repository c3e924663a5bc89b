package inspector

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/memflow/memflow-registry/internal/apperror"
)

// newReaderAt adapts a byte slice to io.ReaderAt for the stdlib debug/pe,
// debug/elf and debug/macho parsers, which all accept one.
func newReaderAt(data []byte) io.ReaderAt {
	return bytes.NewReader(data)
}

// rawDescriptor is the decoded form of the fixed-layout descriptor record
// described in spec.md §4.1, independent of which pointer width it was read
// from. Pointer fields are widened to uint64 uniformly; 32-bit records zero-
// extend theirs, matching what every format-specific sliceref reader in the
// original source did.
type rawDescriptor struct {
	pluginVersion  int32
	namePtr        uint64
	nameLen        uint32
	versionPtr     uint64
	versionLen     uint32
	descriptionPtr uint64
	descriptionLen uint32
}

const (
	descriptorSize32 = 0x34
	descriptorSize64 = 0x60
)

func readU32LE(data []byte, offset int) (uint32, error) {
	if offset < 0 || offset+4 > len(data) {
		return 0, apperror.Parse("read u32 out of bounds at offset %d", offset)
	}
	return binary.LittleEndian.Uint32(data[offset : offset+4]), nil
}

func readU64LE(data []byte, offset int) (uint64, error) {
	if offset < 0 || offset+8 > len(data) {
		return 0, apperror.Parse("read u64 out of bounds at offset %d", offset)
	}
	return binary.LittleEndian.Uint64(data[offset : offset+8]), nil
}

func readI32LE(data []byte, offset int) (int32, error) {
	v, err := readU32LE(data, offset)
	return int32(v), err
}

// readDescriptor32 decodes the 32-bit descriptor record layout at offset:
//
//	plugin_version   i32 @0x00
//	accept_input     u8  @0x04
//	input_layout     u32 @0x08
//	output_layout    u32 @0x0C
//	name             u32 @0x10
//	name_length      u32 @0x14
//	version          u32 @0x18
//	version_length   u32 @0x1C
//	description      u32 @0x20
//	description_length u32 @0x24
//	help_callback, target_list_callback, create: u32 @0x28, 0x2C, 0x30
//
// Record size 0x34, 4-byte aligned throughout.
func readDescriptor32(data []byte, offset int) (rawDescriptor, error) {
	if offset < 0 || offset+descriptorSize32 > len(data) {
		return rawDescriptor{}, apperror.Parse("descriptor record out of bounds at offset %d", offset)
	}

	pluginVersion, err := readI32LE(data, offset+0x00)
	if err != nil {
		return rawDescriptor{}, err
	}
	namePtr, err := readU32LE(data, offset+0x10)
	if err != nil {
		return rawDescriptor{}, err
	}
	nameLen, err := readU32LE(data, offset+0x14)
	if err != nil {
		return rawDescriptor{}, err
	}
	versionPtr, err := readU32LE(data, offset+0x18)
	if err != nil {
		return rawDescriptor{}, err
	}
	versionLen, err := readU32LE(data, offset+0x1C)
	if err != nil {
		return rawDescriptor{}, err
	}
	descriptionPtr, err := readU32LE(data, offset+0x20)
	if err != nil {
		return rawDescriptor{}, err
	}
	descriptionLen, err := readU32LE(data, offset+0x24)
	if err != nil {
		return rawDescriptor{}, err
	}

	return rawDescriptor{
		pluginVersion:  pluginVersion,
		namePtr:        uint64(namePtr),
		nameLen:        nameLen,
		versionPtr:     uint64(versionPtr),
		versionLen:     versionLen,
		descriptionPtr: uint64(descriptionPtr),
		descriptionLen: descriptionLen,
	}, nil
}

// readDescriptor64 decodes the 64-bit descriptor record layout at offset:
//
//	plugin_version   i32 @0x00
//	accept_input     u8  @0x04
//	input_layout     u64 @0x08
//	output_layout    u64 @0x10
//	name             u64 @0x18
//	name_length      u32 @0x20
//	version          u64 @0x28
//	version_length   u32 @0x30
//	description      u64 @0x38
//	description_length u32 @0x40
//	help_callback, target_list_callback, create: u64 @0x48, 0x50, 0x58
//
// Record size 0x60.
func readDescriptor64(data []byte, offset int) (rawDescriptor, error) {
	if offset < 0 || offset+descriptorSize64 > len(data) {
		return rawDescriptor{}, apperror.Parse("descriptor record out of bounds at offset %d", offset)
	}

	pluginVersion, err := readI32LE(data, offset+0x00)
	if err != nil {
		return rawDescriptor{}, err
	}
	namePtr, err := readU64LE(data, offset+0x18)
	if err != nil {
		return rawDescriptor{}, err
	}
	nameLen, err := readU32LE(data, offset+0x20)
	if err != nil {
		return rawDescriptor{}, err
	}
	versionPtr, err := readU64LE(data, offset+0x28)
	if err != nil {
		return rawDescriptor{}, err
	}
	versionLen, err := readU32LE(data, offset+0x30)
	if err != nil {
		return rawDescriptor{}, err
	}
	descriptionPtr, err := readU64LE(data, offset+0x38)
	if err != nil {
		return rawDescriptor{}, err
	}
	descriptionLen, err := readU32LE(data, offset+0x40)
	if err != nil {
		return rawDescriptor{}, err
	}

	return rawDescriptor{
		pluginVersion:  pluginVersion,
		namePtr:        namePtr,
		nameLen:        nameLen,
		versionPtr:     versionPtr,
		versionLen:     versionLen,
		descriptionPtr: descriptionPtr,
		descriptionLen: descriptionLen,
	}, nil
}

// writeU32LE / writeU64LE patch a field in-place at a byte offset — used by
// the ELF relocation pass, which must mutate specific fields of an
// in-memory descriptor copy before the pointers inside it are resolved.
func writeU32LE(data []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(data[offset:offset+4], v)
}

func writeU64LE(data []byte, offset int, v uint64) {
	binary.LittleEndian.PutUint64(data[offset:offset+8], v)
}
