package dds

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/galaco/dxt"
)

// Decode parses a DDS buffer built by Build and returns its top mip level
// as an RGBA image. It exists for previewing: DXT formats go through the
// block decoder, the uncompressed layouts are unpacked directly. BC7 and
// the ATI formats have no decoder here and report ErrUnsupportedFormat.
func Decode(data []byte) (*image.RGBA, error) {
	if len(data) < 4+headerSize {
		return nil, fmt.Errorf("dds buffer too small: %d bytes", len(data))
	}
	if binary.LittleEndian.Uint32(data[0:]) != Magic {
		return nil, fmt.Errorf("not a DDS buffer")
	}

	height := int(binary.LittleEndian.Uint32(data[12:]))
	width := int(binary.LittleEndian.Uint32(data[16:]))

	pf := data[76 : 76+pixelFormatSize]
	pfFlags := binary.LittleEndian.Uint32(pf[4:])
	fourCC := binary.LittleEndian.Uint32(pf[8:])
	bitCount := int(binary.LittleEndian.Uint32(pf[12:]))

	pixelOffset := 4 + headerSize
	if pfFlags&ddpfFourCC != 0 && fourCC == fourCCDX10 {
		pixelOffset += dx10HeaderSize
	}
	if pixelOffset > len(data) {
		return nil, fmt.Errorf("dds pixel data missing")
	}
	pixels := data[pixelOffset:]

	if pfFlags&ddpfFourCC != 0 {
		kind := dxt.DXT1
		switch fourCC {
		case 0x31545844: // DXT1
		case 0x33545844: // DXT3
			kind = dxt.DXT3
		case 0x35545844: // DXT5
			kind = dxt.DXT5
		default:
			return nil, fmt.Errorf("%w: no preview decoder for FourCC 0x%08X", ErrUnsupportedFormat, fourCC)
		}
		decoded, err := dxt.Decode(pixels, width, height, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to decode DXT blocks: %w", err)
		}
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		copy(img.Pix, decoded)
		return img, nil
	}

	rMask := binary.LittleEndian.Uint32(pf[16:])
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	switch {
	case pfFlags&ddpfLuminance != 0 && bitCount == 8:
		if len(pixels) < width*height {
			return nil, fmt.Errorf("dds pixel data truncated")
		}
		for i := 0; i < width*height; i++ {
			v := pixels[i]
			img.Pix[i*4+0] = v
			img.Pix[i*4+1] = v
			img.Pix[i*4+2] = v
			img.Pix[i*4+3] = 0xFF
		}
	case bitCount == 16:
		if len(pixels) < width*height*2 {
			return nil, fmt.Errorf("dds pixel data truncated")
		}
		for i := 0; i < width*height; i++ {
			v := binary.LittleEndian.Uint16(pixels[i*2:])
			img.Pix[i*4+0] = expand5(v >> 10 & 0x1F)
			img.Pix[i*4+1] = expand5(v >> 5 & 0x1F)
			img.Pix[i*4+2] = expand5(v & 0x1F)
			if v&0x8000 != 0 {
				img.Pix[i*4+3] = 0xFF
			}
		}
	case bitCount == 32:
		if len(pixels) < width*height*4 {
			return nil, fmt.Errorf("dds pixel data truncated")
		}
		// Channel order follows the red mask: 0xFF0000 means BGRA in
		// memory, 0xFF means the bytes are already RGBA.
		bgra := rMask == 0x00FF0000
		hasAlpha := pfFlags&ddpfAlphaPixels != 0
		for i := 0; i < width*height; i++ {
			b0, b1, b2, b3 := pixels[i*4], pixels[i*4+1], pixels[i*4+2], pixels[i*4+3]
			if bgra {
				img.Pix[i*4+0] = b2
				img.Pix[i*4+1] = b1
				img.Pix[i*4+2] = b0
			} else {
				img.Pix[i*4+0] = b0
				img.Pix[i*4+1] = b1
				img.Pix[i*4+2] = b2
			}
			if hasAlpha {
				img.Pix[i*4+3] = b3
			} else {
				img.Pix[i*4+3] = 0xFF
			}
		}
	default:
		return nil, fmt.Errorf("%w: %d-bit pixel layout", ErrUnsupportedFormat, bitCount)
	}
	return img, nil
}

// expand5 widens a 5-bit channel to 8 bits
func expand5(v uint16) byte {
	return byte(v<<3 | v>>2)
}
