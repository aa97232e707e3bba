package ng

// Hash computes the non-standard filename hash used for NG key selection.
// Each byte of text is passed through the lookup table and mixed into the
// accumulator with fixed multiply/shift/xor constants. All arithmetic wraps
// at 32 bits; the output must match the reference algorithm bit for bit.
func Hash(text string, lut *[256]byte) uint32 {
	var result uint32
	for i := 0; i < len(text); i++ {
		temp := 1025 * (uint32(lut[text[i]]) + result)
		result = (temp >> 6) ^ temp
	}
	mixed := 9 * result
	return 32769 * ((mixed >> 11) ^ mixed)
}

// KeyIndex selects one of the 101 NG key schedules for an archive, from
// the hash of its filename and its byte length.
func KeyIndex(filename string, archiveLen uint32, lut *[256]byte) int {
	return int((Hash(filename, lut) + archiveLen + 0x3D) % 0x65)
}
