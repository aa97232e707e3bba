// Package rpf reads RPF7 nested archives: a 16-byte header, a table of
// 16-byte entries in one of three variants, and a name table, with the
// entry and name tables optionally encrypted with either AES-256-ECB or
// the NG block cipher keyed per archive.
package rpf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"golang.org/x/exp/mmap"

	"ytd-unpacker/internal/keys"
	"ytd-unpacker/internal/ng"
	"ytd-unpacker/internal/rsc7"
)

// Archive header constants
const (
	Magic      = 0x52504637 // "RPF7" read as little-endian u32
	HeaderSize = 16

	EncryptionNone = 0x0
	EncryptionOpen = 0x4E45504F // "OPEN", produced by modding tools
	EncryptionAES  = 0x0FFFFFF9
	EncryptionNG   = 0x0FEFFFFF
)

// MaxNestedDepth caps nested-archive descent. The format does not bound
// nesting; malformed or adversarial archives must not recurse forever.
const MaxNestedDepth = 8

var (
	ErrTooSmall              = errors.New("archive too small")
	ErrBadMagic              = errors.New("invalid RPF7 magic")
	ErrDecryptionKeyRequired = errors.New("archive is encrypted but no key material was supplied")
	ErrEntryTableTruncated   = errors.New("entry table exceeds archive length")
	ErrNestingTooDeep        = errors.New("nested archive depth limit reached")
)

// Header is the 16-byte RPF7 archive header.
type Header struct {
	Magic       uint32
	EntryCount  uint32
	NamesLength uint32
	Encryption  uint32
}

// Archive is an opened RPF7 archive. The entry list is ordered as stored;
// the parent/child tree is derived from directory entries and recomputed
// whenever entries are parsed.
type Archive struct {
	Name    string
	Size    uint32
	Header  Header
	Entries []Entry

	children map[int][]int
	src      io.ReaderAt
	closer   io.Closer
	keys     *keys.Store
}

// Open memory-maps an archive file and parses its entry table. The
// store may be nil for unencrypted archives.
func Open(path string, store *keys.Store) (*Archive, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	a, err := parseArchive(filepath.Base(path), r, uint32(r.Len()), store)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.closer = r
	return a, nil
}

// OpenBytes parses an archive held in memory, typically one extracted
// from a parent archive. The name and byte length feed per-archive cipher
// key selection, so they must be the nested archive's own.
func OpenBytes(name string, data []byte, store *keys.Store) (*Archive, error) {
	a, err := parseArchive(name, bytes.NewReader(data), uint32(len(data)), store)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return a, nil
}

// Close releases the underlying file mapping, if any.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

func parseArchive(name string, src io.ReaderAt, size uint32, store *keys.Store) (*Archive, error) {
	if size < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooSmall, size)
	}

	var headerBytes [HeaderSize]byte
	if _, err := src.ReadAt(headerBytes[:], 0); err != nil {
		return nil, fmt.Errorf("failed to read archive header: %w", err)
	}

	header := Header{
		Magic:       binary.LittleEndian.Uint32(headerBytes[0:]),
		EntryCount:  binary.LittleEndian.Uint32(headerBytes[4:]),
		NamesLength: binary.LittleEndian.Uint32(headerBytes[8:]),
		Encryption:  binary.LittleEndian.Uint32(headerBytes[12:]),
	}
	if header.Magic != Magic {
		return nil, fmt.Errorf("%w: 0x%08X", ErrBadMagic, header.Magic)
	}
	if uint64(header.EntryCount)*EntrySize+uint64(header.NamesLength) > uint64(size) {
		return nil, fmt.Errorf("%w: %d entries + %d name bytes in a %d byte archive",
			ErrEntryTableTruncated, header.EntryCount, header.NamesLength, size)
	}

	entryData := make([]byte, int(header.EntryCount)*EntrySize)
	if _, err := src.ReadAt(entryData, HeaderSize); err != nil {
		return nil, fmt.Errorf("failed to read entry table: %w", err)
	}
	nameData := make([]byte, header.NamesLength)
	if _, err := src.ReadAt(nameData, HeaderSize+int64(len(entryData))); err != nil {
		return nil, fmt.Errorf("failed to read name table: %w", err)
	}

	switch header.Encryption {
	case EncryptionNone, EncryptionOpen:
		// tables are stored in the clear
	case EncryptionAES:
		if store == nil {
			return nil, ErrDecryptionKeyRequired
		}
		if err := ng.DecryptAES(entryData, store.AESKey); err != nil {
			return nil, fmt.Errorf("failed to decrypt entry table: %w", err)
		}
		if err := ng.DecryptAES(nameData, store.AESKey); err != nil {
			return nil, fmt.Errorf("failed to decrypt name table: %w", err)
		}
	case EncryptionNG:
		if store == nil {
			return nil, ErrDecryptionKeyRequired
		}
		ng.DecryptBuffer(entryData, name, size, store)
		ng.DecryptBuffer(nameData, name, size, store)
	default:
		return nil, fmt.Errorf("unrecognized archive encryption scheme 0x%08X", header.Encryption)
	}

	a := &Archive{
		Name:   name,
		Size:   size,
		Header: header,
		src:    src,
		keys:   store,
	}
	if err := a.parseEntries(entryData, nameData); err != nil {
		return nil, err
	}
	return a, nil
}

// parseEntries classifies every 16-byte record, resolves names, and
// rebuilds the directory tree.
func (a *Archive) parseEntries(entryData, nameData []byte) error {
	count := int(a.Header.EntryCount)
	a.Entries = make([]Entry, 0, count)
	a.children = make(map[int][]int)

	for i := 0; i < count; i++ {
		entry, err := parseEntry(entryData[i*EntrySize : (i+1)*EntrySize])
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		switch e := entry.(type) {
		case *DirEntry:
			e.Name = nameAt(nameData, e.NameOffset)
		case *BinaryEntry:
			e.Name = nameAt(nameData, uint32(e.NameOffset))
		case *ResourceEntry:
			e.Name = nameAt(nameData, uint32(e.NameOffset))
		}
		a.Entries = append(a.Entries, entry)
	}

	for i, entry := range a.Entries {
		dir, ok := entry.(*DirEntry)
		if !ok {
			continue
		}
		first := int(dir.EntriesIndex)
		last := first + int(dir.EntriesCount)
		if first > len(a.Entries) || last > len(a.Entries) {
			return fmt.Errorf("directory %q children [%d,%d) out of range", dir.Name, first, last)
		}
		indices := make([]int, 0, dir.EntriesCount)
		for child := first; child < last; child++ {
			indices = append(indices, child)
		}
		a.children[i] = indices
	}
	return nil
}

// Children returns the ordered child entries of the directory at index.
func (a *Archive) Children(index int) []Entry {
	indices := a.children[index]
	entries := make([]Entry, 0, len(indices))
	for _, i := range indices {
		entries = append(entries, a.Entries[i])
	}
	return entries
}

// ExtractBinary reads a binary entry, decrypting and decompressing as the
// entry flags require, and returns its uncompressed bytes.
func (a *Archive) ExtractBinary(e *BinaryEntry) ([]byte, error) {
	readLen := e.Size
	if readLen == 0 {
		readLen = e.UncompressedSize
	}
	data := make([]byte, readLen)
	if _, err := a.src.ReadAt(data, int64(e.BlockOffset)*BlockSize); err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", e.Name, err)
	}

	if e.Encrypted {
		if a.keys == nil {
			return nil, fmt.Errorf("%q: %w", e.Name, ErrDecryptionKeyRequired)
		}
		ng.DecryptBuffer(data, e.Name, e.UncompressedSize, a.keys)
	}

	if e.Size > 0 && e.Size != e.UncompressedSize {
		reader := flate.NewReader(bytes.NewReader(data))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %q: %w", e.Name, err)
		}
		reader.Close()
		return decompressed, nil
	}
	return data, nil
}

// ExtractResourceRaw reads a resource entry's raw bytes, including the
// leading RSC7 header. When the entry carries the unknown-size sentinel
// the entry table cannot be trusted; the size is instead bounded by the
// segment sizes decoded from the embedded container's own header, clamped
// to what remains of the archive.
func (a *Archive) ExtractResourceRaw(e *ResourceEntry) ([]byte, error) {
	offset := int64(e.BlockOffset) * BlockSize
	readLen := int64(e.Size)

	if e.Size == UnknownResourceSize {
		var containerHeader [rsc7.HeaderSize]byte
		if _, err := a.src.ReadAt(containerHeader[:], offset); err != nil {
			return nil, fmt.Errorf("failed to read container header of %q: %w", e.Name, err)
		}
		systemFlags := binary.LittleEndian.Uint32(containerHeader[8:])
		graphicsFlags := binary.LittleEndian.Uint32(containerHeader[12:])
		readLen = rsc7.HeaderSize + int64(rsc7.SizeFromFlags(systemFlags)) + int64(rsc7.SizeFromFlags(graphicsFlags))
		if remaining := int64(a.Size) - offset; readLen > remaining {
			readLen = remaining
		}
	}

	data := make([]byte, readLen)
	if _, err := a.src.ReadAt(data, offset); err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", e.Name, err)
	}
	return data, nil
}

// OpenNested extracts a binary entry and opens it as an archive of its
// own, with independent cipher key parameters.
func (a *Archive) OpenNested(e *BinaryEntry) (*Archive, error) {
	data, err := a.ExtractBinary(e)
	if err != nil {
		return nil, err
	}
	return OpenBytes(e.Name, data, a.keys)
}

// Walk visits a and every archive nested inside it, breadth-first over an
// explicit worklist so malformed inputs cannot blow the call stack. The
// visitor receives each archive with its nesting depth; descent stops at
// MaxNestedDepth, reported through onError as ErrNestingTooDeep. Nested
// archives that fail to open are reported the same way and skipped, never
// aborting the walk.
func Walk(a *Archive, visit func(depth int, a *Archive) error, onError func(name string, err error)) error {
	type workItem struct {
		archive *Archive
		depth   int
	}
	worklist := []workItem{{a, 0}}

	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]

		if err := visit(item.depth, item.archive); err != nil {
			return err
		}
		if item.depth >= MaxNestedDepth {
			if onError != nil {
				onError(item.archive.Name, ErrNestingTooDeep)
			}
			continue
		}
		for _, entry := range item.archive.Entries {
			bin, ok := entry.(*BinaryEntry)
			if !ok || !strings.HasSuffix(strings.ToLower(bin.Name), ".rpf") {
				continue
			}
			nested, err := item.archive.OpenNested(bin)
			if err != nil {
				if onError != nil {
					onError(bin.Name, err)
				}
				continue
			}
			worklist = append(worklist, workItem{nested, item.depth + 1})
		}
	}
	return nil
}
