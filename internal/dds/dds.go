// Package dds synthesizes standard DDS containers from parsed texture
// records, and decodes them back into images for previewing. Building
// covers the classic FourCC block-compressed formats, BC7 through the
// DX10 extended header, and the uncompressed RGBA, 1.5.5.5, luminance
// and alpha layouts.
package dds

import (
	"encoding/binary"
	"errors"
	"fmt"

	"ytd-unpacker/internal/ytd"
)

// Magic is the 4-byte DDS file magic ("DDS ")
const Magic = 0x20534444

const (
	headerSize      = 124
	pixelFormatSize = 32
	dx10HeaderSize  = 20
)

// DDS_HEADER dwFlags
const (
	ddsdCaps        = 0x1
	ddsdHeight      = 0x2
	ddsdWidth       = 0x4
	ddsdPixelFormat = 0x1000
	ddsdMipMapCount = 0x20000
	ddsdLinearSize  = 0x80000

	headerFlags = ddsdCaps | ddsdHeight | ddsdWidth | ddsdPixelFormat | ddsdMipMapCount | ddsdLinearSize
)

// DDS_HEADER dwCaps
const (
	ddscapsComplex = 0x8
	ddscapsTexture = 0x1000
	ddscapsMipMap  = 0x400000

	headerCaps = ddscapsTexture | ddscapsMipMap | ddscapsComplex
)

// DDS_PIXELFORMAT dwFlags
const (
	ddpfAlphaPixels = 0x1
	ddpfFourCC      = 0x4
	ddpfRGB         = 0x40
	ddpfLuminance   = 0x20000
)

// FourCC marker for the DX10 extended header
const fourCCDX10 = 0x30315844

// DXGI_FORMAT_BC7_UNORM for the DX10 header
const dxgiFormatBC7UNorm = 98

var ErrUnsupportedFormat = errors.New("unsupported texture format")

// Build constructs a complete DDS byte buffer from a texture: the magic,
// the 124-byte header, a DX10 extended header when the format requires
// one, and the raw pixel bytes verbatim.
func Build(t *ytd.Texture) ([]byte, error) {
	format, known := ytd.Formats[t.FormatCode]
	if !known {
		return nil, fmt.Errorf("%w: code 0x%X", ErrUnsupportedFormat, t.FormatCode)
	}

	pixelFormat, err := buildPixelFormat(format)
	if err != nil {
		return nil, err
	}

	mips := t.MipLevels
	if mips < 1 {
		mips = 1
	}
	linearSize := mip0Size(t.Width, t.Height, format)

	size := 4 + headerSize + len(t.Data)
	if format.Name == "BC7" {
		size += dx10HeaderSize
	}
	out := make([]byte, 0, size)

	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:], headerSize)
	binary.LittleEndian.PutUint32(header[4:], headerFlags)
	binary.LittleEndian.PutUint32(header[8:], uint32(t.Height))
	binary.LittleEndian.PutUint32(header[12:], uint32(t.Width))
	binary.LittleEndian.PutUint32(header[16:], uint32(linearSize))
	// dwDepth stays 0, the output is always a flat 2D image
	binary.LittleEndian.PutUint32(header[24:], uint32(mips))
	// dwReserved1[11] stays 0
	copy(header[72:], pixelFormat[:])
	binary.LittleEndian.PutUint32(header[104:], headerCaps)
	// dwCaps2..dwReserved2 stay 0

	var magic [4]byte
	binary.LittleEndian.PutUint32(magic[:], Magic)
	out = append(out, magic[:]...)
	out = append(out, header[:]...)
	if format.Name == "BC7" {
		out = append(out, buildDX10Header()...)
	}
	out = append(out, t.Data...)
	return out, nil
}

// mip0Size is the byte size of the first mip level, written to the
// header's pitch-or-linear-size field.
func mip0Size(width, height int, f ytd.Format) int {
	if f.BlockBytes > 0 {
		blocksX := (width + 3) / 4
		if blocksX < 1 {
			blocksX = 1
		}
		blocksY := (height + 3) / 4
		if blocksY < 1 {
			blocksY = 1
		}
		return blocksX * blocksY * f.BlockBytes
	}
	return width * height * f.BitsPerPixel / 8
}

// buildPixelFormat returns the 32-byte DDS_PIXELFORMAT block for a
// format. BC7 carries the DX10 marker; A8 has no equivalent in common
// decoders and is re-emitted as L8, both being single-byte-per-pixel
// layouts.
func buildPixelFormat(f ytd.Format) ([pixelFormatSize]byte, error) {
	switch f.Name {
	case "DXT1", "DXT3", "DXT5", "ATI1", "ATI2":
		var code uint32
		switch f.Name {
		case "DXT1":
			code = ytd.FormatDXT1
		case "DXT3":
			code = ytd.FormatDXT3
		case "DXT5":
			code = ytd.FormatDXT5
		case "ATI1":
			code = ytd.FormatATI1
		case "ATI2":
			code = ytd.FormatATI2
		}
		return pixelFormatFourCC(code), nil
	case "BC7":
		return pixelFormatFourCC(fourCCDX10), nil
	case "A8R8G8B8":
		return pixelFormatMasks(ddpfRGB|ddpfAlphaPixels, 32, 0x00FF0000, 0x0000FF00, 0x000000FF, 0xFF000000), nil
	case "X8R8G8B8":
		return pixelFormatMasks(ddpfRGB, 32, 0x00FF0000, 0x0000FF00, 0x000000FF, 0), nil
	case "A8B8G8R8":
		return pixelFormatMasks(ddpfRGB|ddpfAlphaPixels, 32, 0x000000FF, 0x0000FF00, 0x00FF0000, 0xFF000000), nil
	case "A1R5G5B5":
		return pixelFormatMasks(ddpfRGB|ddpfAlphaPixels, 16, 0x7C00, 0x03E0, 0x001F, 0x8000), nil
	case "L8", "A8":
		return pixelFormatMasks(ddpfLuminance, 8, 0xFF, 0, 0, 0), nil
	}
	return [pixelFormatSize]byte{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Name)
}

func pixelFormatFourCC(code uint32) [pixelFormatSize]byte {
	var pf [pixelFormatSize]byte
	binary.LittleEndian.PutUint32(pf[0:], pixelFormatSize)
	binary.LittleEndian.PutUint32(pf[4:], ddpfFourCC)
	binary.LittleEndian.PutUint32(pf[8:], code)
	return pf
}

func pixelFormatMasks(flags, bitCount, rMask, gMask, bMask, aMask uint32) [pixelFormatSize]byte {
	var pf [pixelFormatSize]byte
	binary.LittleEndian.PutUint32(pf[0:], pixelFormatSize)
	binary.LittleEndian.PutUint32(pf[4:], flags)
	binary.LittleEndian.PutUint32(pf[12:], bitCount)
	binary.LittleEndian.PutUint32(pf[16:], rMask)
	binary.LittleEndian.PutUint32(pf[20:], gMask)
	binary.LittleEndian.PutUint32(pf[24:], bMask)
	binary.LittleEndian.PutUint32(pf[28:], aMask)
	return pf
}

// buildDX10Header is the 20-byte DDS_HEADER_DXT10 describing a flat BC7
// 2D texture.
func buildDX10Header() []byte {
	var h [dx10HeaderSize]byte
	binary.LittleEndian.PutUint32(h[0:], dxgiFormatBC7UNorm)
	binary.LittleEndian.PutUint32(h[4:], 3) // D3D10_RESOURCE_DIMENSION_TEXTURE2D
	// miscFlag 0
	binary.LittleEndian.PutUint32(h[12:], 1) // arraySize
	// miscFlags2 0
	return h[:]
}
