package inspector

import (
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/memflow/memflow-registry/internal/apperror"
	"github.com/memflow/memflow-registry/internal/descriptor"
)

func TestIsBinaryRecognizesKnownMagics(t *testing.T) {
	cases := map[string][]byte{
		"pe":       {'M', 'Z', 0, 0},
		"elf":      {0x7F, 'E', 'L', 'F'},
		"macho32":  {0xCE, 0xFA, 0xED, 0xFE},
		"macho64":  {0xCF, 0xFA, 0xED, 0xFE},
		"machobe":  {0xFE, 0xED, 0xFA, 0xCE},
		"machobe2": {0xFE, 0xED, 0xFA, 0xCF},
	}
	for name, magic := range cases {
		ok, err := IsBinary(magic)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !ok {
			t.Fatalf("%s: expected IsBinary to recognize magic %x", name, magic)
		}
	}
}

func TestIsBinaryRejectsUnknown(t *testing.T) {
	ok, err := IsBinary([]byte{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected unknown magic to be rejected")
	}
}

func TestIsBinaryRequiresFourBytes(t *testing.T) {
	_, err := IsBinary([]byte{'M', 'Z'})
	if !apperror.Is(err, apperror.KindParse) {
		t.Fatalf("expected a Parse error for a too-short buffer, got %v", err)
	}
}

func TestReadStringValidatesBoundsAndUTF8(t *testing.T) {
	data := []byte("hello world")

	s, err := readString(data, 6, 5)
	if err != nil || s != "world" {
		t.Fatalf("readString(6,5) = %q, %v", s, err)
	}

	if _, err := readString(data, 6, 100); err == nil {
		t.Fatalf("expected out-of-bounds read to fail")
	}

	if _, err := readString(data, 0, 1); err == nil {
		t.Fatalf("expected offset 0 (treated as unresolved pointer) to fail")
	}

	invalidUTF8 := []byte{0x00, 0xff, 0xfe, 0xfd}
	if _, err := readString(invalidUTF8, 1, len(invalidUTF8)-1); err == nil {
		t.Fatalf("expected invalid utf-8 to be rejected")
	}
}

func buildDescriptor32(pluginVersion int32, namePtr, nameLen, versionPtr, versionLen, descriptionPtr, descriptionLen uint32) []byte {
	buf := make([]byte, descriptorSize32)
	binary.LittleEndian.PutUint32(buf[0x00:], uint32(pluginVersion))
	binary.LittleEndian.PutUint32(buf[0x10:], namePtr)
	binary.LittleEndian.PutUint32(buf[0x14:], nameLen)
	binary.LittleEndian.PutUint32(buf[0x18:], versionPtr)
	binary.LittleEndian.PutUint32(buf[0x1C:], versionLen)
	binary.LittleEndian.PutUint32(buf[0x20:], descriptionPtr)
	binary.LittleEndian.PutUint32(buf[0x24:], descriptionLen)
	return buf
}

func TestReadDescriptor32DecodesFields(t *testing.T) {
	buf := buildDescriptor32(7, 0x100, 4, 0x200, 5, 0x300, 6)

	raw, err := readDescriptor32(buf, 0)
	if err != nil {
		t.Fatalf("readDescriptor32: %v", err)
	}
	if raw.pluginVersion != 7 || raw.namePtr != 0x100 || raw.nameLen != 4 ||
		raw.versionPtr != 0x200 || raw.versionLen != 5 ||
		raw.descriptionPtr != 0x300 || raw.descriptionLen != 6 {
		t.Fatalf("unexpected decode: %+v", raw)
	}
}

func TestReadDescriptor32OutOfBounds(t *testing.T) {
	buf := make([]byte, descriptorSize32-1)
	if _, err := readDescriptor32(buf, 0); err == nil {
		t.Fatalf("expected out-of-bounds error")
	}
}

func buildDescriptor64(pluginVersion int32, namePtr uint64, nameLen uint32, versionPtr uint64, versionLen uint32, descriptionPtr uint64, descriptionLen uint32) []byte {
	buf := make([]byte, descriptorSize64)
	binary.LittleEndian.PutUint32(buf[0x00:], uint32(pluginVersion))
	binary.LittleEndian.PutUint64(buf[0x18:], namePtr)
	binary.LittleEndian.PutUint32(buf[0x20:], nameLen)
	binary.LittleEndian.PutUint64(buf[0x28:], versionPtr)
	binary.LittleEndian.PutUint32(buf[0x30:], versionLen)
	binary.LittleEndian.PutUint64(buf[0x38:], descriptionPtr)
	binary.LittleEndian.PutUint32(buf[0x40:], descriptionLen)
	return buf
}

func TestReadDescriptor64DecodesFields(t *testing.T) {
	buf := buildDescriptor64(9, 0x1000, 10, 0x2000, 11, 0x3000, 12)

	raw, err := readDescriptor64(buf, 0)
	if err != nil {
		t.Fatalf("readDescriptor64: %v", err)
	}
	if raw.pluginVersion != 9 || raw.namePtr != 0x1000 || raw.nameLen != 10 ||
		raw.versionPtr != 0x2000 || raw.versionLen != 11 ||
		raw.descriptionPtr != 0x3000 || raw.descriptionLen != 12 {
		t.Fatalf("unexpected decode: %+v", raw)
	}
}

func TestReadU32LEAndU64LEBounds(t *testing.T) {
	buf := make([]byte, 4)
	if _, err := readU32LE(buf, 1); err == nil {
		t.Fatalf("expected out-of-bounds error")
	}
	if _, err := readU64LE(buf, 0); err == nil {
		t.Fatalf("expected out-of-bounds error reading u64 from a 4-byte buffer")
	}
}

func TestApplyRelocationsPatchesZeroFieldsOnly(t *testing.T) {
	record := buildDescriptor64(1, 0, 4, 0x5000, 5, 0, 6)

	relocs := []elfReloc{
		{offset: 0x1000 + 0x18, typ: relocType386OrAMD64Relative, addend: 0x9000},
		{offset: 0x1000 + 0x28, typ: relocType386OrAMD64Relative, addend: 0x7000},
		{offset: 0x1000 + 0x38, typ: relocType386OrAMD64Relative, addend: -10},
	}

	if err := applyRelocations(record, relocs, 0x1000, 0x60, true); err != nil {
		t.Fatalf("applyRelocations: %v", err)
	}

	raw, err := readDescriptor64(record, 0)
	if err != nil {
		t.Fatalf("readDescriptor64: %v", err)
	}
	if raw.namePtr != 0x9000 {
		t.Fatalf("namePtr = %#x, want 0x9000", raw.namePtr)
	}
	if raw.versionPtr != 0x5000 {
		t.Fatalf("versionPtr should be untouched since it was already non-zero, got %#x", raw.versionPtr)
	}
	wantDescPtr := ^uint64(0) - 9 // 0 - 10, wrapped at 64 bits
	if raw.descriptionPtr != wantDescPtr {
		t.Fatalf("descriptionPtr = %#x, want %#x (wrapping subtraction)", raw.descriptionPtr, wantDescPtr)
	}
}

func TestApplyRelocationsRejectsNonRelativeType(t *testing.T) {
	record := buildDescriptor64(1, 0, 4, 0, 5, 0, 6)
	relocs := []elfReloc{{offset: 0x1000 + 0x18, typ: 99, addend: 1}}

	if err := applyRelocations(record, relocs, 0x1000, 0x60, true); err == nil {
		t.Fatalf("expected non-relative relocation type to be rejected")
	}
}

func TestElfFileOffsetFindsContainingSegment(t *testing.T) {
	f := &elf.File{
		FileHeader: elf.FileHeader{},
		Progs: []*elf.Prog{
			{ProgHeader: elf.ProgHeader{Type: elf.PT_LOAD, Vaddr: 0x1000, Memsz: 0x1000, Off: 0x2000}},
		},
	}

	offset, err := elfFileOffset(f, 0x1010)
	if err != nil {
		t.Fatalf("elfFileOffset: %v", err)
	}
	if offset != 0x2010 {
		t.Fatalf("offset = %#x, want 0x2010", offset)
	}

	if _, err := elfFileOffset(f, 0x5000); err == nil {
		t.Fatalf("expected an address outside every segment to fail")
	}
}

func TestPeRVAToFileOffset(t *testing.T) {
	sections := []peSection{
		{virtualAddress: 0x1000, virtualSize: 0x500, rawOffset: 0x400, rawSize: 0x500},
	}

	offset, ok := peRVAToFileOffset(0x1010, sections, 512)
	if !ok || offset != 0x410 {
		t.Fatalf("peRVAToFileOffset = %#x, %v, want 0x410, true", offset, ok)
	}

	if _, ok := peRVAToFileOffset(0x9000, sections, 512); ok {
		t.Fatalf("expected an RVA outside every section to fail")
	}
}

func TestArchitectureMappings(t *testing.T) {
	if peArchitecture(0x8664) != descriptor.ArchX86_64 {
		t.Fatalf("peArchitecture(0x8664) mismatch")
	}
	if arch := peArchitecture(0x9999); !arch.IsUnknown() || arch.Raw() != 0x9999 {
		t.Fatalf("peArchitecture(0x9999) should be unknown with raw preserved, got %+v", arch)
	}

	if elfArchitecture(elf.EM_AARCH64) != descriptor.ArchARM64 {
		t.Fatalf("elfArchitecture(EM_AARCH64) mismatch")
	}
	if arch := elfArchitecture(elf.Machine(9999)); !arch.IsUnknown() {
		t.Fatalf("elfArchitecture(9999) should be unknown")
	}
}

func TestIsRelativeRelocType(t *testing.T) {
	for _, typ := range []uint32{relocType386OrAMD64Relative, relocTypeARMRelative, relocTypeARM64Relative} {
		if !isRelativeRelocType(typ) {
			t.Fatalf("expected %d to be a relative relocation type", typ)
		}
	}
	if isRelativeRelocType(1) {
		t.Fatalf("expected type 1 to not be a relative relocation type")
	}
}
