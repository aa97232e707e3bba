package rpf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/klauspost/compress/flate"

	"ytd-unpacker/internal/rsc7"
)

func dirRecord(nameOffset, entriesIndex, entriesCount uint32) []byte {
	record := make([]byte, EntrySize)
	binary.LittleEndian.PutUint32(record[0:], nameOffset)
	binary.LittleEndian.PutUint32(record[4:], directoryIdent)
	binary.LittleEndian.PutUint32(record[8:], entriesIndex)
	binary.LittleEndian.PutUint32(record[12:], entriesCount)
	return record
}

func binaryRecord(nameOffset uint16, size, blockOffset, uncompressedSize uint32, encrypted bool) []byte {
	record := make([]byte, EntrySize)
	packed := uint64(nameOffset) | uint64(size)<<16 | uint64(blockOffset)<<40
	binary.LittleEndian.PutUint64(record[0:], packed)
	binary.LittleEndian.PutUint32(record[8:], uncompressedSize)
	if encrypted {
		binary.LittleEndian.PutUint32(record[12:], 1)
	}
	return record
}

func resourceRecord(nameOffset uint16, size, blockOffset, systemFlags, graphicsFlags uint32) []byte {
	record := make([]byte, EntrySize)
	packed := uint64(nameOffset) | uint64(size)<<16 | uint64(blockOffset)<<40 | 1<<63
	binary.LittleEndian.PutUint64(record[0:], packed)
	binary.LittleEndian.PutUint32(record[8:], systemFlags)
	binary.LittleEndian.PutUint32(record[12:], graphicsFlags)
	return record
}

// buildArchive assembles an unencrypted archive from entry records, a
// name table and per-block-index payloads.
func buildArchive(t *testing.T, records [][]byte, names []byte, blocks map[uint32][]byte) []byte {
	t.Helper()

	size := HeaderSize + len(records)*EntrySize + len(names)
	for blockIndex, payload := range blocks {
		if end := int(blockIndex)*BlockSize + len(payload); end > size {
			size = end
		}
	}

	data := make([]byte, size)
	binary.LittleEndian.PutUint32(data[0:], Magic)
	binary.LittleEndian.PutUint32(data[4:], uint32(len(records)))
	binary.LittleEndian.PutUint32(data[8:], uint32(len(names)))
	binary.LittleEndian.PutUint32(data[12:], EncryptionNone)

	pos := HeaderSize
	for _, record := range records {
		copy(data[pos:], record)
		pos += EntrySize
	}
	copy(data[pos:], names)

	for blockIndex, payload := range blocks {
		copy(data[int(blockIndex)*BlockSize:], payload)
	}
	return data
}

// buildResourceRaw assembles a minimal RSC7 container holding body as its
// virtual segment.
func buildResourceRaw(t *testing.T, systemFlags, graphicsFlags uint32, body []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	header := make([]byte, rsc7.HeaderSize)
	binary.LittleEndian.PutUint32(header[0:], rsc7.Magic)
	binary.LittleEndian.PutUint32(header[4:], rsc7.ExpectedVersion)
	binary.LittleEndian.PutUint32(header[8:], systemFlags)
	binary.LittleEndian.PutUint32(header[12:], graphicsFlags)
	buf.Write(header)

	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(body); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	// Small bodies deflate below the minimum container size; pad the
	// tail, which the decompressor never reads.
	for buf.Len() < rsc7.MinimumFileSize {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func TestOpenBytesTooSmall(t *testing.T) {
	_, err := OpenBytes("tiny.rpf", make([]byte, 8), nil)
	if !errors.Is(err, ErrTooSmall) {
		t.Errorf("OpenBytes = %v, want ErrTooSmall", err)
	}
}

func TestOpenBytesBadMagic(t *testing.T) {
	data := make([]byte, 64)
	binary.LittleEndian.PutUint32(data, 0x12345678)

	_, err := OpenBytes("bad.rpf", data, nil)
	if !errors.Is(err, ErrBadMagic) {
		t.Errorf("OpenBytes = %v, want ErrBadMagic", err)
	}
}

func TestOpenBytesTruncatedEntryTable(t *testing.T) {
	data := make([]byte, 64)
	binary.LittleEndian.PutUint32(data[0:], Magic)
	binary.LittleEndian.PutUint32(data[4:], 1000) // far more entries than fit
	binary.LittleEndian.PutUint32(data[12:], EncryptionNone)

	_, err := OpenBytes("trunc.rpf", data, nil)
	if !errors.Is(err, ErrEntryTableTruncated) {
		t.Errorf("OpenBytes = %v, want ErrEntryTableTruncated", err)
	}
}

func TestOpenBytesEncryptedWithoutKeys(t *testing.T) {
	for _, encryption := range []uint32{EncryptionAES, EncryptionNG} {
		data := make([]byte, 64)
		binary.LittleEndian.PutUint32(data[0:], Magic)
		binary.LittleEndian.PutUint32(data[12:], encryption)

		_, err := OpenBytes("locked.rpf", data, nil)
		if !errors.Is(err, ErrDecryptionKeyRequired) {
			t.Errorf("encryption 0x%08X: OpenBytes = %v, want ErrDecryptionKeyRequired", encryption, err)
		}
	}
}

func TestOpenBytesUnknownEncryption(t *testing.T) {
	data := make([]byte, 64)
	binary.LittleEndian.PutUint32(data[0:], Magic)
	binary.LittleEndian.PutUint32(data[12:], 0xDEADBEEF)

	if _, err := OpenBytes("odd.rpf", data, nil); err == nil {
		t.Error("expected error for unrecognized encryption scheme")
	}
}

func TestEntryClassification(t *testing.T) {
	names := []byte("\x00data.bin\x00tex.ytd\x00")
	stored := []byte("stored payload, not compressed..")
	resourceRaw := buildResourceRaw(t, 0x08000000, 0, make([]byte, 0x200))

	records := [][]byte{
		dirRecord(0, 1, 2),
		binaryRecord(1, 0, 1, uint32(len(stored)), false),
		resourceRecord(10, uint32(len(resourceRaw)), 2, 0x08000000, 0),
	}
	blocks := map[uint32][]byte{1: stored, 2: resourceRaw}

	archive, err := OpenBytes("test.rpf", buildArchive(t, records, names, blocks), nil)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	if len(archive.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(archive.Entries))
	}

	dir, ok := archive.Entries[0].(*DirEntry)
	if !ok {
		t.Fatalf("entry 0 is %T, want *DirEntry", archive.Entries[0])
	}
	if dir.EntriesIndex != 1 || dir.EntriesCount != 2 {
		t.Errorf("directory children [%d,+%d), want [1,+2)", dir.EntriesIndex, dir.EntriesCount)
	}

	bin, ok := archive.Entries[1].(*BinaryEntry)
	if !ok {
		t.Fatalf("entry 1 is %T, want *BinaryEntry", archive.Entries[1])
	}
	if bin.Name != "data.bin" {
		t.Errorf("binary name = %q, want data.bin", bin.Name)
	}
	if bin.BlockOffset != 1 || bin.Size != 0 || bin.UncompressedSize != uint32(len(stored)) {
		t.Errorf("binary fields: size=%d block=%d uncompressed=%d", bin.Size, bin.BlockOffset, bin.UncompressedSize)
	}

	res, ok := archive.Entries[2].(*ResourceEntry)
	if !ok {
		t.Fatalf("entry 2 is %T, want *ResourceEntry", archive.Entries[2])
	}
	if res.Name != "tex.ytd" {
		t.Errorf("resource name = %q, want tex.ytd", res.Name)
	}
	if res.BlockOffset != 2 || res.SystemFlags != 0x08000000 {
		t.Errorf("resource fields: block=%d sys=0x%08X", res.BlockOffset, res.SystemFlags)
	}

	children := archive.Children(0)
	if len(children) != 2 {
		t.Fatalf("Children(0) = %d entries, want 2", len(children))
	}
	if children[0].EntryName() != "data.bin" || children[1].EntryName() != "tex.ytd" {
		t.Errorf("child names: %q, %q", children[0].EntryName(), children[1].EntryName())
	}
}

func TestExtractBinaryStored(t *testing.T) {
	names := []byte("\x00data.bin\x00")
	stored := []byte("stored payload, not compressed..")

	records := [][]byte{
		dirRecord(0, 1, 1),
		binaryRecord(1, 0, 1, uint32(len(stored)), false),
	}
	archive, err := OpenBytes("test.rpf",
		buildArchive(t, records, names, map[uint32][]byte{1: stored}), nil)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	data, err := archive.ExtractBinary(archive.Entries[1].(*BinaryEntry))
	if err != nil {
		t.Fatalf("ExtractBinary: %v", err)
	}
	if !bytes.Equal(data, stored) {
		t.Errorf("extracted %q, want %q", data, stored)
	}
}

func TestExtractBinaryCompressed(t *testing.T) {
	plain := bytes.Repeat([]byte("texture dictionary "), 50)

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(plain); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	compressed := buf.Bytes()

	names := []byte("\x00packed.bin\x00")
	records := [][]byte{
		dirRecord(0, 1, 1),
		binaryRecord(1, uint32(len(compressed)), 1, uint32(len(plain)), false),
	}
	archive, err := OpenBytes("test.rpf",
		buildArchive(t, records, names, map[uint32][]byte{1: compressed}), nil)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	data, err := archive.ExtractBinary(archive.Entries[1].(*BinaryEntry))
	if err != nil {
		t.Fatalf("ExtractBinary: %v", err)
	}
	if !bytes.Equal(data, plain) {
		t.Errorf("decompressed %d bytes mismatch, want %d", len(data), len(plain))
	}
}

func TestExtractResourceRaw(t *testing.T) {
	resourceRaw := buildResourceRaw(t, 0x08000000, 0, make([]byte, 0x200))

	names := []byte("\x00tex.ytd\x00")
	records := [][]byte{
		dirRecord(0, 1, 1),
		resourceRecord(1, uint32(len(resourceRaw)), 1, 0x08000000, 0),
	}
	archive, err := OpenBytes("test.rpf",
		buildArchive(t, records, names, map[uint32][]byte{1: resourceRaw}), nil)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	raw, err := archive.ExtractResourceRaw(archive.Entries[1].(*ResourceEntry))
	if err != nil {
		t.Fatalf("ExtractResourceRaw: %v", err)
	}
	if !bytes.Equal(raw, resourceRaw) {
		t.Error("extracted resource bytes mismatch")
	}

	resource, err := rsc7.Parse(raw)
	if err != nil {
		t.Fatalf("parsing extracted resource: %v", err)
	}
	if len(resource.VirtualData) != 0x200 {
		t.Errorf("virtual segment = %d bytes, want %d", len(resource.VirtualData), 0x200)
	}
}

func TestExtractResourceUnknownSizeSentinel(t *testing.T) {
	resourceRaw := buildResourceRaw(t, 0x08000000, 0, make([]byte, 0x200))

	names := []byte("\x00tex.ytd\x00")
	records := [][]byte{
		dirRecord(0, 1, 1),
		resourceRecord(1, UnknownResourceSize, 1, 0x08000000, 0),
	}
	blocks := map[uint32][]byte{
		1: resourceRaw,
		// Padding so the derived bound stays inside the archive
		3: make([]byte, BlockSize),
	}
	archive, err := OpenBytes("test.rpf", buildArchive(t, records, names, blocks), nil)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	raw, err := archive.ExtractResourceRaw(archive.Entries[1].(*ResourceEntry))
	if err != nil {
		t.Fatalf("ExtractResourceRaw: %v", err)
	}

	// Bound derived from the embedded header: 16 + 512 virtual + 0 physical
	if len(raw) != rsc7.HeaderSize+0x200 {
		t.Errorf("bounded read = %d bytes, want %d", len(raw), rsc7.HeaderSize+0x200)
	}

	resource, err := rsc7.Parse(raw)
	if err != nil {
		t.Fatalf("parsing extracted resource: %v", err)
	}
	if len(resource.VirtualData) != 0x200 {
		t.Errorf("virtual segment = %d bytes, want %d", len(resource.VirtualData), 0x200)
	}
}

func TestWalkNestedArchives(t *testing.T) {
	resourceRaw := buildResourceRaw(t, 0x08000000, 0, make([]byte, 0x200))

	innerNames := []byte("\x00tex.ytd\x00")
	innerRecords := [][]byte{
		dirRecord(0, 1, 1),
		resourceRecord(1, uint32(len(resourceRaw)), 1, 0x08000000, 0),
	}
	inner := buildArchive(t, innerRecords, innerNames, map[uint32][]byte{1: resourceRaw})

	outerNames := []byte("\x00inner.rpf\x00")
	outerRecords := [][]byte{
		dirRecord(0, 1, 1),
		binaryRecord(1, 0, 1, uint32(len(inner)), false),
	}
	outer, err := OpenBytes("outer.rpf",
		buildArchive(t, outerRecords, outerNames, map[uint32][]byte{1: inner}), nil)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	var visited []string
	var resources int
	visit := func(depth int, a *Archive) error {
		visited = append(visited, a.Name)
		for _, entry := range a.Entries {
			if _, ok := entry.(*ResourceEntry); ok {
				resources++
			}
		}
		return nil
	}
	if err := Walk(outer, visit, nil); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	if len(visited) != 2 || visited[0] != "outer.rpf" || visited[1] != "inner.rpf" {
		t.Errorf("visited %v, want [outer.rpf inner.rpf]", visited)
	}
	if resources != 1 {
		t.Errorf("found %d resource entries, want 1", resources)
	}
}

func TestWalkReportsBrokenNested(t *testing.T) {
	// The nested "archive" is garbage, so the walk must report it and
	// carry on rather than fail.
	garbage := []byte("not an archive at all, just padding bytes")

	names := []byte("\x00broken.rpf\x00")
	records := [][]byte{
		dirRecord(0, 1, 1),
		binaryRecord(1, 0, 1, uint32(len(garbage)), false),
	}
	outer, err := OpenBytes("outer.rpf",
		buildArchive(t, records, names, map[uint32][]byte{1: garbage}), nil)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	var reported []string
	visit := func(depth int, a *Archive) error { return nil }
	onError := func(name string, err error) { reported = append(reported, name) }
	if err := Walk(outer, visit, onError); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(reported) != 1 || reported[0] != "broken.rpf" {
		t.Errorf("reported %v, want [broken.rpf]", reported)
	}
}

func TestWalkStopsAtDepthLimit(t *testing.T) {
	// Archives nested one level past the descent cap: the deepest
	// visited archive still holds a nested entry, which must be
	// reported instead of descended into.
	names := []byte("\x00a.rpf\x00")
	inner := buildArchive(t, [][]byte{dirRecord(0, 1, 0)}, []byte{0}, nil)
	for i := 0; i <= MaxNestedDepth; i++ {
		records := [][]byte{
			dirRecord(0, 1, 1),
			binaryRecord(1, 0, 1, uint32(len(inner)), false),
		}
		inner = buildArchive(t, records, names, map[uint32][]byte{1: inner})
	}
	outer, err := OpenBytes("outer.rpf", inner, nil)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	visits := 0
	depthErrs := 0
	visit := func(depth int, a *Archive) error {
		visits++
		if depth > MaxNestedDepth {
			t.Errorf("visited depth %d, cap is %d", depth, MaxNestedDepth)
		}
		return nil
	}
	onError := func(name string, err error) {
		if !errors.Is(err, ErrNestingTooDeep) {
			t.Errorf("onError(%s) = %v, want ErrNestingTooDeep", name, err)
		}
		depthErrs++
	}
	if err := Walk(outer, visit, onError); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if visits != MaxNestedDepth+1 {
		t.Errorf("visited %d archives, want %d", visits, MaxNestedDepth+1)
	}
	if depthErrs != 1 {
		t.Errorf("depth limit reported %d times, want once", depthErrs)
	}
}
