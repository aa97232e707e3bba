// Package rsc7 parses RSC7 resource containers: a 16-byte header followed
// by a raw-deflate-compressed body that splits into a virtual segment
// (struct data) and a physical segment (raw pixel data).
//
// RSC7 header (16 bytes, little-endian):
//
//	0x00  magic           0x37435352 ("RSC7")
//	0x04  version         13 observed on PC
//	0x08  system flags    encodes the virtual segment size
//	0x0C  graphics flags  encodes the physical segment size
package rsc7

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/flate"
)

const (
	Magic           = 0x37435352
	HeaderSize      = 16
	MinimumFileSize = 32
	ExpectedVersion = 13
)

var (
	ErrTooSmall            = errors.New("resource container too small")
	ErrBadMagic            = errors.New("invalid RSC7 magic")
	ErrSegmentSizeOverflow = errors.New("segment sizes exceed decompressed data")
	ErrDecompressionFailed = errors.New("failed to decompress resource body")
)

// Resource is a decompressed RSC7 container. VirtualData holds struct
// records and strings, PhysicalData holds raw pixel bytes. Both slices are
// owned by the Resource.
type Resource struct {
	Version      uint32
	VirtualData  []byte
	PhysicalData []byte
}

// SizeFromFlags computes a decompressed segment size from an RSC7 flag
// field. The flags encode page counts at different multiples of a base
// page size; the same decoding applies to both the system and graphics
// flag fields.
func SizeFromFlags(flags uint32) int {
	s0 := (flags >> 27) & 0x1 << 0
	s1 := (flags >> 26) & 0x1 << 1
	s2 := (flags >> 25) & 0x1 << 2
	s3 := (flags >> 24) & 0x1 << 3
	s4 := (flags >> 17) & 0x7F << 4
	s5 := (flags >> 11) & 0x3F << 5
	s6 := (flags >> 7) & 0xF << 6
	s7 := (flags >> 5) & 0x3 << 7
	s8 := (flags >> 4) & 0x1 << 8
	baseSize := 0x200 << (flags & 0xF)
	total := s0 + s1 + s2 + s3 + s4 + s5 + s6 + s7 + s8
	return int(baseSize) * int(total)
}

// Parse validates the RSC7 header in raw, decompresses the body and splits
// it into virtual and physical segments.
func Parse(raw []byte) (*Resource, error) {
	if len(raw) < MinimumFileSize {
		return nil, fmt.Errorf("%w: %d bytes, minimum %d", ErrTooSmall, len(raw), MinimumFileSize)
	}

	magic := binary.LittleEndian.Uint32(raw[0:])
	version := binary.LittleEndian.Uint32(raw[4:])
	systemFlags := binary.LittleEndian.Uint32(raw[8:])
	graphicsFlags := binary.LittleEndian.Uint32(raw[12:])

	if magic != Magic {
		return nil, fmt.Errorf("%w: 0x%08X (expected 0x%08X)", ErrBadMagic, magic, Magic)
	}

	virtualSize := SizeFromFlags(systemFlags)
	physicalSize := SizeFromFlags(graphicsFlags)

	// Body is raw deflate with no zlib/gzip wrapper
	reader := flate.NewReader(bytes.NewReader(raw[HeaderSize:]))
	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
	}
	reader.Close()

	if virtualSize+physicalSize > len(decompressed) {
		return nil, fmt.Errorf("%w: %d + %d = %d > %d decompressed bytes",
			ErrSegmentSizeOverflow, virtualSize, physicalSize,
			virtualSize+physicalSize, len(decompressed))
	}

	return &Resource{
		Version:      version,
		VirtualData:  decompressed[:virtualSize:virtualSize],
		PhysicalData: decompressed[virtualSize : virtualSize+physicalSize : virtualSize+physicalSize],
	}, nil
}

// ParseFile reads and parses an RSC7 container from disk.
func ParseFile(path string) (*Resource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource file: %w", err)
	}
	resource, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return resource, nil
}
