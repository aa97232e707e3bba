package rpf

import (
	"encoding/binary"
	"fmt"
)

// Entry record constants
const (
	EntrySize = 16 // every entry variant occupies exactly 16 bytes

	// Second dword of a directory entry record
	directoryIdent = 0x7FFFFF00

	// BlockSize converts entry block offsets to byte offsets
	BlockSize = 512

	// UnknownResourceSize marks a resource entry whose 24-bit size field
	// is all ones; the real size must be derived from the embedded
	// container header instead.
	UnknownResourceSize = 0xFFFFFF
)

// Entry is one of DirEntry, BinaryEntry or ResourceEntry. The three kinds
// share a 16-byte footprint but diverge completely in interpretation, so
// they are modelled as a closed set of variants rather than one struct
// with maybe-valid fields.
type Entry interface {
	EntryName() string
	entry()
}

// DirEntry is a directory: its children are the entries at
// [EntriesIndex, EntriesIndex+EntriesCount) in the archive entry list.
type DirEntry struct {
	Name         string
	NameOffset   uint32
	EntriesIndex uint32
	EntriesCount uint32
}

// BinaryEntry is an ordinary file, optionally deflate-compressed and
// optionally NG-encrypted. Offsets are in 512-byte blocks from archive
// start.
type BinaryEntry struct {
	Name             string
	NameOffset       uint16
	Size             uint32 // compressed size; 0 means stored uncompressed
	BlockOffset      uint32
	UncompressedSize uint32
	Encrypted        bool
}

// ResourceEntry is an embedded RSC7 resource container.
type ResourceEntry struct {
	Name          string
	NameOffset    uint16
	Size          uint32
	BlockOffset   uint32
	SystemFlags   uint32
	GraphicsFlags uint32
}

func (*DirEntry) entry()      {}
func (*BinaryEntry) entry()   {}
func (*ResourceEntry) entry() {}

func (e *DirEntry) EntryName() string      { return e.Name }
func (e *BinaryEntry) EntryName() string   { return e.Name }
func (e *ResourceEntry) EntryName() string { return e.Name }

// parseEntry classifies and decodes one 16-byte entry record. The second
// dword discriminates the variants: the directory ident, or the top bit
// distinguishing resource from binary entries. Binary and resource
// entries pack name offset, size and block offset into the leading 64
// bits with different widths; the exact bit layout matters because
// downstream tooling depends on byte-identical reconstruction.
func parseEntry(record []byte) (Entry, error) {
	if len(record) < EntrySize {
		return nil, fmt.Errorf("entry record truncated: %d bytes", len(record))
	}

	second := binary.LittleEndian.Uint32(record[4:])
	if second == directoryIdent {
		return &DirEntry{
			NameOffset:   binary.LittleEndian.Uint32(record[0:]),
			EntriesIndex: binary.LittleEndian.Uint32(record[8:]),
			EntriesCount: binary.LittleEndian.Uint32(record[12:]),
		}, nil
	}

	packed := binary.LittleEndian.Uint64(record[0:])
	nameOffset := uint16(packed & 0xFFFF)
	size := uint32(packed >> 16 & 0xFFFFFF)

	if second&0x80000000 == 0 {
		return &BinaryEntry{
			NameOffset:       nameOffset,
			Size:             size,
			BlockOffset:      uint32(packed >> 40 & 0xFFFFFF),
			UncompressedSize: binary.LittleEndian.Uint32(record[8:]),
			Encrypted:        binary.LittleEndian.Uint32(record[12:]) != 0,
		}, nil
	}

	return &ResourceEntry{
		NameOffset:    nameOffset,
		Size:          size,
		BlockOffset:   uint32(packed >> 40 & 0x7FFFFF),
		SystemFlags:   binary.LittleEndian.Uint32(record[8:]),
		GraphicsFlags: binary.LittleEndian.Uint32(record[12:]),
	}, nil
}

// nameAt reads a null-terminated name from the decrypted name table
func nameAt(names []byte, offset uint32) string {
	if int(offset) >= len(names) {
		return ""
	}
	end := int(offset)
	for end < len(names) && names[end] != 0 {
		end++
	}
	return string(names[offset:end])
}
