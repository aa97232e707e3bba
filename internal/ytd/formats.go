package ytd

// Format describes the byte model of a known texture format code: block
// compressed formats carry bytes per 4x4 block, uncompressed ones bits
// per pixel.
type Format struct {
	Name         string
	BitsPerPixel int
	BlockBytes   int // 0 for uncompressed formats
}

// Four-character format codes as little-endian u32 values
const (
	FormatDXT1 = 0x31545844
	FormatDXT3 = 0x33545844
	FormatDXT5 = 0x35545844
	FormatATI1 = 0x31495441
	FormatATI2 = 0x32495441
	FormatBC7  = 0x20374342
)

// Formats maps the format codes observed in texture records to their byte
// models.
var Formats = map[uint32]Format{
	21:         {Name: "A8R8G8B8", BitsPerPixel: 32},
	22:         {Name: "X8R8G8B8", BitsPerPixel: 32},
	25:         {Name: "A1R5G5B5", BitsPerPixel: 16},
	28:         {Name: "A8", BitsPerPixel: 8},
	32:         {Name: "A8B8G8R8", BitsPerPixel: 32},
	50:         {Name: "L8", BitsPerPixel: 8},
	FormatDXT1: {Name: "DXT1", BitsPerPixel: 4, BlockBytes: 8},
	FormatDXT3: {Name: "DXT3", BitsPerPixel: 8, BlockBytes: 16},
	FormatDXT5: {Name: "DXT5", BitsPerPixel: 8, BlockBytes: 16},
	FormatATI1: {Name: "ATI1", BitsPerPixel: 4, BlockBytes: 8},
	FormatATI2: {Name: "ATI2", BitsPerPixel: 8, BlockBytes: 16},
	FormatBC7:  {Name: "BC7", BitsPerPixel: 8, BlockBytes: 16},
}

// mipSize returns the byte size of a single mip level.
func mipSize(width, height int, f Format) int {
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

// MipChainSize sums the byte sizes of mipLevels levels, halving width and
// height (minimum 1) at each step.
func MipChainSize(width, height, mipLevels int, f Format) int {
	total := 0
	w, h := width, height
	for i := 0; i < mipLevels; i++ {
		total += mipSize(w, h, f)
		w /= 2
		if w < 1 {
			w = 1
		}
		h /= 2
		if h < 1 {
			h = 1
		}
	}
	return total
}
