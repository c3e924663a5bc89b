package inspector

import (
	"debug/macho"
	"encoding/binary"
	"strings"

	"github.com/memflow/memflow-registry/internal/apperror"
	"github.com/memflow/memflow-registry/internal/descriptor"
)

// parseMachO extracts every _MEMFLOW_-prefixed symbol's descriptor from a
// Mach-O image, single-architecture or fat. debug/macho does not surface the
// modern dyld export trie the original implementation reads through
// goblin::mach::MachO::exports() (LC_DYLD_INFO isn't parsed by the stdlib at
// all), so this walks the classic LC_SYMTAB symbol table instead — every
// toolchain this registry targets still emits one alongside the trie.
func parseMachO(data []byte) ([]descriptor.Descriptor, error) {
	if fat, err := macho.NewFatFile(newReaderAt(data)); err == nil {
		var out []descriptor.Descriptor
		for _, arch := range fat.Arches {
			end := uint64(arch.Offset) + uint64(arch.Size)
			if end > uint64(len(data)) {
				return nil, apperror.Parse("fat mach-o slice out of bounds")
			}
			slice := data[arch.Offset:end]
			descs, err := parseMachOSlice(slice, arch.File)
			if err != nil {
				return nil, err
			}
			out = append(out, descs...)
		}
		return out, nil
	}

	f, err := macho.NewFile(newReaderAt(data))
	if err != nil {
		return nil, apperror.Parse("parse mach-o: %v", err)
	}
	return parseMachOSlice(data, f)
}

// parseMachOSlice extracts descriptors from a single (non-fat) Mach-O image,
// where data is exactly the byte range that f was parsed from — required
// since every file offset f reports is relative to the start of that slice.
func parseMachOSlice(data []byte, f *macho.File) ([]descriptor.Descriptor, error) {
	if f.ByteOrder == binary.BigEndian {
		return nil, apperror.NotImplemented("big endian mach-o binaries are not supported")
	}
	if f.Symtab == nil {
		return nil, nil
	}

	is64 := f.Magic == macho.Magic64
	arch := machoArchitecture(f.Cpu)

	var out []descriptor.Descriptor
	for _, sym := range f.Symtab.Syms {
		if sym.Sect == 0 {
			continue // N_UNDF: an import, not a definition
		}
		if !strings.HasPrefix(sym.Name, machoExportPrefix) {
			continue
		}

		fileOffset, err := machoFileOffset(f, sym.Value)
		if err != nil {
			return nil, err
		}

		var raw rawDescriptor
		if is64 {
			raw, err = readDescriptor64(data, fileOffset)
		} else {
			raw, err = readDescriptor32(data, fileOffset)
		}
		if err != nil {
			return nil, err
		}

		name, err := machoReadString(data, raw.namePtr, raw.nameLen)
		if err != nil {
			return nil, err
		}
		version, err := machoReadString(data, raw.versionPtr, raw.versionLen)
		if err != nil {
			return nil, err
		}
		desc, err := machoReadString(data, raw.descriptionPtr, raw.descriptionLen)
		if err != nil {
			return nil, err
		}

		out = append(out, descriptor.Descriptor{
			FileType:      descriptor.FileTypeMach,
			Architecture:  arch,
			PluginVersion: raw.pluginVersion,
			Name:          name,
			Version:       version,
			Description:   desc,
		})
	}
	return out, nil
}

// machoFileOffset finds the segment whose virtual address range contains
// vaddr and translates it to a file offset.
func machoFileOffset(f *macho.File, vaddr uint64) (int, error) {
	for _, load := range f.Loads {
		seg, ok := load.(*macho.Segment)
		if !ok {
			continue
		}
		if vaddr >= seg.Addr && vaddr < seg.Addr+seg.Filesz {
			return int(seg.Offset + (vaddr - seg.Addr)), nil
		}
	}
	return 0, apperror.Parse("could not find any segment containing the plugin descriptor")
}

// machoReadString resolves a pointer field the same approximate way the
// original implementation does: the low 32 bits of the pointer are treated
// directly as a file offset, rather than being translated through the
// segment table like the symbol address above is. This is a known
// imprecision carried over deliberately per spec.md §9.1's open question —
// it works because memflow plugins are built with the string pool placed
// early enough in the image that file offset and the truncated virtual
// address coincide, and "fixing" it would diverge from binaries already
// signed against the documented behavior.
func machoReadString(data []byte, ptr uint64, length uint32) (string, error) {
	if ptr == 0 {
		return "", apperror.Parse("unable to read referenced string in binary")
	}
	offset := ptr & 0xFFFFFFFF
	return readString(data, int(offset), int(length))
}

// machoArchitecture maps a Mach-O cputype to the plugin architecture enum.
func machoArchitecture(cpu macho.Cpu) descriptor.Architecture {
	switch cpu {
	case macho.Cpu386:
		return descriptor.ArchX86
	case macho.CpuAmd64:
		return descriptor.ArchX86_64
	case macho.CpuArm:
		return descriptor.ArchARM
	case macho.CpuArm64:
		return descriptor.ArchARM64
	default:
		return descriptor.ArchUnknown(uint32(cpu))
	}
}
