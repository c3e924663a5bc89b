package inspector

import (
	"debug/pe"
	"encoding/binary"
	"strings"

	"github.com/memflow/memflow-registry/internal/apperror"
	"github.com/memflow/memflow-registry/internal/descriptor"
)

const defaultFileAlignment = 512

// parsePE extracts every MEMFLOW_-prefixed export's descriptor from a PE
// image. debug/pe gives us the section table and optional header; export
// table walking and the VA→file-offset translation are hand-rolled since
// the standard library does not expose either.
func parsePE(data []byte) ([]descriptor.Descriptor, error) {
	f, err := pe.NewFile(newReaderAt(data))
	if err != nil {
		return nil, apperror.Parse("parse PE: %v", err)
	}

	is64, imageBase, fileAlignment, err := peOptionalHeaderInfo(f)
	if err != nil {
		return nil, err
	}

	exports, err := peExports(f, data)
	if err != nil {
		return nil, err
	}

	arch := peArchitecture(f.Machine)

	var out []descriptor.Descriptor
	for _, exp := range exports {
		if !strings.HasPrefix(exp.name, exportPrefix) {
			continue
		}
		d, err := decodePEDescriptor(data, f, exp.fileOffset, is64, imageBase, fileAlignment, arch)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func peOptionalHeaderInfo(f *pe.File) (is64 bool, imageBase uint64, fileAlignment uint32, err error) {
	fileAlignment = defaultFileAlignment
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		imageBase = uint64(oh.ImageBase)
		fileAlignment = oh.FileAlignment
		return false, imageBase, fileAlignment, nil
	case *pe.OptionalHeader64:
		imageBase = oh.ImageBase
		fileAlignment = oh.FileAlignment
		return true, imageBase, fileAlignment, nil
	default:
		// No optional header: fall back to the default file alignment per
		// spec.md §4.1 and assume 32-bit, the common case for headerless
		// object-style PE fragments.
		return false, 0, defaultFileAlignment, nil
	}
}

type peExport struct {
	name       string
	fileOffset int
}

// peExports walks the export directory table directly: debug/pe does not
// surface exports at all, only sections and symbols, so this reads the
// IMAGE_EXPORT_DIRECTORY by hand.
func peExports(f *pe.File, data []byte) ([]peExport, error) {
	var exportDirRVA, exportDirSize uint32
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if len(oh.DataDirectory) > pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
			exportDirRVA = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT].VirtualAddress
			exportDirSize = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT].Size
		}
	case *pe.OptionalHeader64:
		if len(oh.DataDirectory) > pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
			exportDirRVA = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT].VirtualAddress
			exportDirSize = oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT].Size
		}
	default:
		return nil, nil
	}
	if exportDirRVA == 0 || exportDirSize == 0 {
		return nil, nil
	}

	sections := peSections(f)
	dirOff, ok := peRVAToFileOffset(exportDirRVA, sections, defaultFileAlignment)
	if !ok || dirOff+40 > len(data) {
		return nil, apperror.Parse("PE export directory out of bounds")
	}

	numberOfNames := binary.LittleEndian.Uint32(data[dirOff+24:])
	addressOfFunctions := binary.LittleEndian.Uint32(data[dirOff+28:])
	addressOfNames := binary.LittleEndian.Uint32(data[dirOff+32:])
	addressOfNameOrdinals := binary.LittleEndian.Uint32(data[dirOff+36:])

	funcsOff, ok := peRVAToFileOffset(addressOfFunctions, sections, defaultFileAlignment)
	if !ok {
		return nil, apperror.Parse("PE export address table out of bounds")
	}
	namesOff, ok := peRVAToFileOffset(addressOfNames, sections, defaultFileAlignment)
	if !ok {
		return nil, apperror.Parse("PE export name table out of bounds")
	}
	ordOff, ok := peRVAToFileOffset(addressOfNameOrdinals, sections, defaultFileAlignment)
	if !ok {
		return nil, apperror.Parse("PE export ordinal table out of bounds")
	}

	var out []peExport
	for i := uint32(0); i < numberOfNames; i++ {
		nameRVAOff := namesOff + int(i)*4
		if nameRVAOff+4 > len(data) {
			return nil, apperror.Parse("PE export name table out of bounds")
		}
		nameRVA := binary.LittleEndian.Uint32(data[nameRVAOff:])
		nameOff, ok := peRVAToFileOffset(nameRVA, sections, defaultFileAlignment)
		if !ok {
			continue
		}
		name := readCString(data, nameOff)

		ordOffI := ordOff + int(i)*2
		if ordOffI+2 > len(data) {
			return nil, apperror.Parse("PE export ordinal table out of bounds")
		}
		ordinal := binary.LittleEndian.Uint16(data[ordOffI:])

		funcOffI := funcsOff + int(ordinal)*4
		if funcOffI+4 > len(data) {
			continue
		}
		funcRVA := binary.LittleEndian.Uint32(data[funcOffI:])
		fileOffset, ok := peRVAToFileOffset(funcRVA, sections, defaultFileAlignment)
		if !ok {
			continue
		}

		out = append(out, peExport{name: name, fileOffset: fileOffset})
	}
	return out, nil
}

func readCString(data []byte, offset int) string {
	if offset < 0 || offset >= len(data) {
		return ""
	}
	end := offset
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[offset:end])
}

type peSection struct {
	virtualAddress uint32
	virtualSize    uint32
	rawOffset      uint32
	rawSize        uint32
}

func peSections(f *pe.File) []peSection {
	out := make([]peSection, 0, len(f.Sections))
	for _, s := range f.Sections {
		out = append(out, peSection{
			virtualAddress: s.VirtualAddress,
			virtualSize:    s.VirtualSize,
			rawOffset:      s.Offset,
			rawSize:        s.Size,
		})
	}
	return out
}

// peRVAToFileOffset finds the section containing rva and translates it to a
// file offset, the equivalent of goblin's pe::utils::find_offset used by
// the original implementation this spec was distilled from.
func peRVAToFileOffset(rva uint32, sections []peSection, fileAlignment uint32) (int, bool) {
	if fileAlignment == 0 {
		fileAlignment = defaultFileAlignment
	}
	for _, s := range sections {
		size := s.virtualSize
		if size == 0 {
			size = s.rawSize
		}
		if rva >= s.virtualAddress && rva < s.virtualAddress+size {
			delta := rva - s.virtualAddress
			return int(s.rawOffset + delta), true
		}
	}
	return 0, false
}

func decodePEDescriptor(data []byte, f *pe.File, fileOffset int, is64 bool, imageBase uint64, fileAlignment uint32, arch descriptor.Architecture) (descriptor.Descriptor, error) {
	sections := peSections(f)

	var raw rawDescriptor
	var err error
	if is64 {
		raw, err = readDescriptor64(data, fileOffset)
	} else {
		raw, err = readDescriptor32(data, fileOffset)
	}
	if err != nil {
		return descriptor.Descriptor{}, err
	}

	resolve := func(ptr uint64, length uint32) (string, error) {
		if ptr == 0 {
			return "", apperror.Parse("unable to read referenced string in binary")
		}
		if ptr < imageBase {
			return "", apperror.Parse("pointer %#x below image base %#x", ptr, imageBase)
		}
		va := uint32(ptr - imageBase)
		offset, ok := peRVAToFileOffset(va, sections, fileAlignment)
		if !ok || offset == 0 {
			return "", apperror.Parse("could not find any section containing the referenced string")
		}
		return readString(data, offset, int(length))
	}

	name, err := resolve(raw.namePtr, raw.nameLen)
	if err != nil {
		return descriptor.Descriptor{}, err
	}
	version, err := resolve(raw.versionPtr, raw.versionLen)
	if err != nil {
		return descriptor.Descriptor{}, err
	}
	desc, err := resolve(raw.descriptionPtr, raw.descriptionLen)
	if err != nil {
		return descriptor.Descriptor{}, err
	}

	return descriptor.Descriptor{
		FileType:      descriptor.FileTypePE,
		Architecture:  arch,
		PluginVersion: raw.pluginVersion,
		Name:          name,
		Version:       version,
		Description:   desc,
	}, nil
}

// peArchitecture maps a COFF machine type to the plugin architecture enum.
// https://learn.microsoft.com/en-us/windows/win32/debug/pe-format#machine-types
func peArchitecture(machine uint16) descriptor.Architecture {
	switch machine {
	case 0x14c:
		return descriptor.ArchX86
	case 0x8664:
		return descriptor.ArchX86_64
	case 0x1c0, 0x1c4:
		return descriptor.ArchARM
	case 0xAA64:
		return descriptor.ArchARM64
	default:
		return descriptor.ArchUnknown(uint32(machine))
	}
}
