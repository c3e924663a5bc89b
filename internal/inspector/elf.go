package inspector

import (
	"debug/elf"
	"encoding/binary"
	"strings"

	"github.com/memflow/memflow-registry/internal/apperror"
	"github.com/memflow/memflow-registry/internal/descriptor"
)

// relative relocation types accepted across the architectures this registry
// targets: R_386_RELATIVE/R_X86_64_RELATIVE (8), R_ARM_RELATIVE (23),
// R_AARCH64_RELATIVE (1027). Any other relocation type touching a
// descriptor field is rejected per spec.md §4.1.
const (
	relocType386OrAMD64Relative = 8
	relocTypeARMRelative        = 23
	relocTypeARM64Relative      = 1027
)

func isRelativeRelocType(t uint32) bool {
	switch t {
	case relocType386OrAMD64Relative, relocTypeARMRelative, relocTypeARM64Relative:
		return true
	default:
		return false
	}
}

// parseELF extracts every MEMFLOW_-prefixed dynamic symbol's descriptor
// from an ELF shared object.
func parseELF(data []byte) ([]descriptor.Descriptor, error) {
	f, err := elf.NewFile(newReaderAt(data))
	if err != nil {
		return nil, apperror.Parse("parse ELF: %v", err)
	}
	if f.ByteOrder == binary.BigEndian {
		return nil, apperror.NotImplemented("big endian ELF binaries are not supported")
	}

	is64 := f.Class == elf.ELFCLASS64
	arch := elfArchitecture(f.Machine)

	syms, err := f.DynamicSymbols()
	if err != nil {
		// No dynamic symbol table means no exported MEMFLOW_ descriptors.
		return nil, nil
	}

	relocs, err := elfRelocations(f, is64)
	if err != nil {
		return nil, err
	}

	var out []descriptor.Descriptor
	for _, sym := range syms {
		if sym.Section == elf.SHN_UNDEF {
			continue // undefined symbol: an import, not a definition
		}
		if sym.Section == elf.SHN_XINDEX {
			return nil, apperror.Parse("unsupported elf SHN_XINDEX header flag")
		}
		if !strings.HasPrefix(sym.Name, exportPrefix) {
			continue
		}

		fileOffset, err := elfFileOffset(f, sym.Value)
		if err != nil {
			return nil, err
		}

		var raw rawDescriptor
		var recordSize int
		if is64 {
			recordSize = descriptorSize64
		} else {
			recordSize = descriptorSize32
		}
		if fileOffset+recordSize > len(data) {
			return nil, apperror.Parse("descriptor record out of bounds at offset %d", fileOffset)
		}
		record := make([]byte, recordSize)
		copy(record, data[fileOffset:fileOffset+recordSize])

		if err := applyRelocations(record, relocs, sym.Value, sym.Size, is64); err != nil {
			return nil, err
		}

		if is64 {
			raw, err = readDescriptor64(record, 0)
		} else {
			raw, err = readDescriptor32(record, 0)
		}
		if err != nil {
			return nil, err
		}

		name, err := elfReadString(data, raw.namePtr, raw.nameLen)
		if err != nil {
			return nil, err
		}
		version, err := elfReadString(data, raw.versionPtr, raw.versionLen)
		if err != nil {
			return nil, err
		}
		desc, err := elfReadString(data, raw.descriptionPtr, raw.descriptionLen)
		if err != nil {
			return nil, err
		}

		out = append(out, descriptor.Descriptor{
			FileType:      descriptor.FileTypeELF,
			Architecture:  arch,
			PluginVersion: raw.pluginVersion,
			Name:          name,
			Version:       version,
			Description:   desc,
		})
	}
	return out, nil
}

// elfFileOffset finds the program header whose virtual address range
// contains vaddr and translates it to a file offset.
func elfFileOffset(f *elf.File, vaddr uint64) (int, error) {
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if vaddr >= prog.Vaddr && vaddr < prog.Vaddr+prog.Memsz {
			return int(prog.Off + (vaddr - prog.Vaddr)), nil
		}
	}
	return 0, apperror.Parse("could not find any section containing the plugin descriptor")
}

// elfReadString resolves a pointer field to a file offset: for ELF this is
// the pointer value directly, after relocations have already been applied.
func elfReadString(data []byte, ptr uint64, length uint32) (string, error) {
	if ptr == 0 {
		return "", apperror.Parse("unable to read referenced string in binary")
	}
	return readString(data, int(ptr), int(length))
}

type elfReloc struct {
	offset uint64
	typ    uint32
	addend int64
}

// elfRelocations collects every RELA entry across all SHT_RELA sections in
// the file — spec.md requires applying any relocation whose r_offset falls
// inside a symbol's range, not just ones in a specific named section.
// SHT_REL sections are not read.
func elfRelocations(f *elf.File, is64 bool) ([]elfReloc, error) {
	var out []elfReloc
	for _, sec := range f.Sections {
		switch sec.Type {
		case elf.SHT_RELA:
			data, err := sec.Data()
			if err != nil {
				continue
			}
			entrySize := 24
			if !is64 {
				entrySize = 12
			}
			for off := 0; off+entrySize <= len(data); off += entrySize {
				if is64 {
					offset := binary.LittleEndian.Uint64(data[off:])
					info := binary.LittleEndian.Uint64(data[off+8:])
					addend := int64(binary.LittleEndian.Uint64(data[off+16:]))
					out = append(out, elfReloc{offset: offset, typ: uint32(info & 0xffffffff), addend: addend})
				} else {
					offset := uint64(binary.LittleEndian.Uint32(data[off:]))
					info := binary.LittleEndian.Uint32(data[off+4:])
					addend := int64(int32(binary.LittleEndian.Uint32(data[off+8:])))
					out = append(out, elfReloc{offset: offset, typ: info & 0xff, addend: addend})
				}
			}
		case elf.SHT_REL:
			// REL relocations carry no explicit addend; none of the relative
			// relocation types this registry accepts are emitted as REL by
			// any toolchain it targets, so these sections never contribute
			// fields to a descriptor and are skipped.
		}
	}
	return out, nil
}

// applyRelocations patches zero-valued pointer fields of an in-memory
// descriptor record copy using every relocation whose r_offset falls
// inside [st_value, st_value+st_size), per spec.md §4.1.
func applyRelocations(record []byte, relocs []elfReloc, stValue, stSize uint64, is64 bool) error {
	rangeEnd := stValue + stSize
	for _, r := range relocs {
		if r.offset < stValue || r.offset >= rangeEnd {
			continue
		}
		fieldOffset := int(r.offset - stValue)

		if is64 {
			current, err := readU64LE(record, fieldOffset)
			if err != nil {
				continue // relocation targets outside the record we copied
			}
			if current != 0 {
				continue // already bound, do not double-apply
			}
			if !isRelativeRelocType(r.typ) {
				return apperror.Parse("only relative relocations are supported right now")
			}
			var value uint64
			if r.addend >= 0 {
				value = current + uint64(r.addend)
			} else {
				value = current - uint64(-r.addend)
			}
			writeU64LE(record, fieldOffset, value)
		} else {
			current, err := readU32LE(record, fieldOffset)
			if err != nil {
				continue
			}
			if current != 0 {
				continue
			}
			if !isRelativeRelocType(r.typ) {
				return apperror.Parse("only relative relocations are supported right now")
			}
			var value uint32
			if r.addend >= 0 {
				value = current + uint32(r.addend)
			} else {
				value = current - uint32(-r.addend)
			}
			writeU32LE(record, fieldOffset, value)
		}
	}
	return nil
}

// elfArchitecture maps an e_machine value to the plugin architecture enum.
// https://refspecs.linuxfoundation.org/elf/gabi4+/ch4.eheader.html
func elfArchitecture(machine elf.Machine) descriptor.Architecture {
	switch machine {
	case elf.EM_386:
		return descriptor.ArchX86
	case elf.EM_X86_64:
		return descriptor.ArchX86_64
	case elf.EM_ARM:
		return descriptor.ArchARM
	case elf.EM_AARCH64:
		return descriptor.ArchARM64
	default:
		return descriptor.ArchUnknown(uint32(machine))
	}
}
