// Package ytd parses texture dictionaries out of decompressed RSC7
// segments. Records in the virtual segment address each other and the
// physical segment through two fixed virtual address spaces:
//
//	0x50000000 base -> virtual segment (struct data and strings)
//	0x60000000 base -> physical segment (raw pixel data)
//
// Pointers are resolved by masking the low 32 bits and subtracting the
// matching base; the high bits of 64-bit pointer fields are reserved
// metadata and never part of the address.
package ytd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Pointer address-space bases
const (
	VirtualBase  = 0x50000000
	PhysicalBase = 0x60000000
)

const (
	dictionaryHeaderSize = 64
	textureRecordSize    = 144
)

var (
	ErrEmptyTextureDictionary = errors.New("texture dictionary has no textures")
	ErrNoDiffuseTexture       = errors.New("no diffuse texture found")
	ErrVirtualDataTooSmall    = errors.New("virtual data too small for texture dictionary header")
)

// Segment identifies the address space a resolved pointer refers to.
type Segment int

const (
	SegmentNull Segment = iota
	SegmentVirtual
	SegmentPhysical
)

// ResolvePointer classifies a raw pointer value as null or as an offset
// into the virtual or physical segment. Only the low 32 bits carry offset
// information. Pure function, no side effects.
func ResolvePointer(raw uint64) (Segment, uint32, error) {
	ptr := uint32(raw)
	switch {
	case ptr == 0:
		return SegmentNull, 0, nil
	case ptr >= PhysicalBase:
		return SegmentPhysical, ptr - PhysicalBase, nil
	case ptr >= VirtualBase:
		return SegmentVirtual, ptr - VirtualBase, nil
	}
	return SegmentNull, 0, fmt.Errorf("unknown pointer base: 0x%08X", ptr)
}

// Texture is one parsed texture record. Data is an owned copy sliced out
// of the physical segment, so the parent container may be discarded.
type Texture struct {
	Name       string
	Width      int
	Height     int
	Depth      int
	Stride     int
	FormatCode uint32
	FormatName string
	MipLevels  int
	Data       []byte
}

// Result pairs one texture slot with its parse outcome. A dictionary with
// a few bad records still yields the good ones; per-texture failures
// never abort the whole parse.
type Result struct {
	Texture *Texture
	Err     error
}

// ParseNameHashes reads the dictionary's name-hash array, the lookup
// index game code uses to find textures by hashed name. The array is not
// needed to enumerate textures; a dictionary without a resolvable hash
// array yields nil rather than an error.
func ParseNameHashes(virtualData []byte) []uint32 {
	if len(virtualData) < dictionaryHeaderSize {
		return nil
	}
	hashesPtr := binary.LittleEndian.Uint64(virtualData[0x20:])
	count := int(binary.LittleEndian.Uint16(virtualData[0x28:]))

	seg, offset, err := ResolvePointer(hashesPtr)
	if err != nil || seg != SegmentVirtual || count == 0 {
		return nil
	}
	if int(offset)+count*4 > len(virtualData) {
		return nil
	}
	hashes := make([]uint32, count)
	for i := range hashes {
		hashes[i] = binary.LittleEndian.Uint32(virtualData[int(offset)+i*4:])
	}
	return hashes
}

// ParseDictionary parses every texture record reachable from the
// dictionary header at virtual offset 0.
func ParseDictionary(virtualData, physicalData []byte) ([]Result, error) {
	if len(virtualData) < dictionaryHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need >= %d",
			ErrVirtualDataTooSmall, len(virtualData), dictionaryHeaderSize)
	}

	texturesPtr := binary.LittleEndian.Uint64(virtualData[0x30:])
	count := int(binary.LittleEndian.Uint16(virtualData[0x38:]))
	if count == 0 {
		return nil, ErrEmptyTextureDictionary
	}

	seg, arrayOffset, err := ResolvePointer(texturesPtr)
	if err != nil {
		return nil, fmt.Errorf("texture array pointer: %w", err)
	}
	if seg != SegmentVirtual {
		return nil, fmt.Errorf("texture array pointer resolves outside the virtual segment")
	}
	if int(arrayOffset)+count*8 > len(virtualData) {
		return nil, fmt.Errorf("texture pointer array [%d..%d) overflows virtual data (%d bytes)",
			arrayOffset, int(arrayOffset)+count*8, len(virtualData))
	}

	results := make([]Result, 0, count)
	for i := 0; i < count; i++ {
		raw := binary.LittleEndian.Uint64(virtualData[int(arrayOffset)+i*8:])
		texture, err := parseTexture(raw, virtualData, physicalData)
		if err != nil {
			results = append(results, Result{Err: fmt.Errorf("texture %d: %w", i, err)})
			continue
		}
		results = append(results, Result{Texture: texture})
	}
	return results, nil
}

// parseTexture decodes one fixed-layout 144-byte texture record.
func parseTexture(rawPtr uint64, virtualData, physicalData []byte) (*Texture, error) {
	seg, offset, err := ResolvePointer(rawPtr)
	if err != nil {
		return nil, err
	}
	if seg != SegmentVirtual {
		return nil, fmt.Errorf("texture record pointer resolves outside the virtual segment")
	}
	if int(offset)+textureRecordSize > len(virtualData) {
		return nil, fmt.Errorf("texture record at %d overflows virtual data (%d bytes)", offset, len(virtualData))
	}
	record := virtualData[offset:]

	texture := &Texture{
		Width:      int(binary.LittleEndian.Uint16(record[0x50:])),
		Height:     int(binary.LittleEndian.Uint16(record[0x52:])),
		Depth:      int(binary.LittleEndian.Uint16(record[0x54:])),
		Stride:     int(binary.LittleEndian.Uint16(record[0x56:])),
		FormatCode: binary.LittleEndian.Uint32(record[0x58:]),
		MipLevels:  int(record[0x5D]),
	}

	namePtr := binary.LittleEndian.Uint64(record[0x28:])
	if nseg, noff, err := ResolvePointer(namePtr); err == nil && nseg == SegmentVirtual && int(noff) < len(virtualData) {
		texture.Name = readCString(virtualData, int(noff))
	}

	format, known := Formats[texture.FormatCode]
	if !known {
		texture.FormatName = fmt.Sprintf("UNKNOWN(0x%X)", texture.FormatCode)
		return texture, nil
	}
	texture.FormatName = format.Name

	dataPtr := binary.LittleEndian.Uint64(record[0x70:])
	dseg, doff, err := ResolvePointer(dataPtr)
	if err != nil || dseg != SegmentPhysical || int(doff) > len(physicalData) {
		return texture, nil
	}

	mips := texture.MipLevels
	if mips < 1 {
		mips = 1
	}
	size := MipChainSize(texture.Width, texture.Height, mips, format)
	// A shorter-than-expected extraction is recorded, not an error;
	// reading past the physical segment never is an option.
	if available := len(physicalData) - int(doff); size > available {
		size = available
	}
	texture.Data = append([]byte(nil), physicalData[doff:int(doff)+size]...)
	return texture, nil
}

func readCString(data []byte, offset int) string {
	end := offset
	for end < len(data) && data[end] != 0 && end-offset < 256 {
		end++
	}
	return string(data[offset:end])
}

// nonDiffuseSuffixes marks texture naming conventions for non-color
// channels: normal maps, specular maps and masks.
var nonDiffuseSuffixes = []string{"_n", "_s", "_m"}

// SelectDiffuse picks the diffuse texture among the successfully parsed
// results. A single texture wins unconditionally; otherwise non-diffuse
// suffixes are excluded and the largest remaining texture by area is
// chosen. ErrNoDiffuseTexture reports that nothing usable remains.
func SelectDiffuse(results []Result) (*Texture, error) {
	var textures []*Texture
	for _, r := range results {
		if r.Texture != nil {
			textures = append(textures, r.Texture)
		}
	}
	if len(textures) == 0 {
		return nil, ErrNoDiffuseTexture
	}
	if len(textures) == 1 {
		return textures[0], nil
	}

	var best *Texture
	for _, t := range textures {
		if hasNonDiffuseSuffix(t.Name) {
			continue
		}
		if best == nil || t.Width*t.Height > best.Width*best.Height {
			best = t
		}
	}
	if best == nil {
		return nil, ErrNoDiffuseTexture
	}
	return best, nil
}

func hasNonDiffuseSuffix(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range nonDiffuseSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
