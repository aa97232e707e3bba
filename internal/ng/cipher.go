// Package ng implements the bespoke 17-round block cipher ("NG") used by
// RPF7 archives, together with the filename hash that drives per-archive
// key selection and the AES-ECB alternative scheme.
//
// Decryption only. The cipher operates on 16-byte blocks; buffers are
// processed block-wise and any trailing bytes shorter than a block are
// passed through unchanged, so output length always equals input length.
package ng

import (
	"encoding/binary"

	"ytd-unpacker/internal/keys"
)

// BlockSize is the NG cipher block size in bytes
const BlockSize = 16

// roundBWiring maps each table slot of rounds 2-15 to the state byte it
// consumes. Rounds 0, 1 and 16 read the state bytes in order instead.
var roundBWiring = [16]int{
	0, 7, 10, 13,
	1, 4, 11, 14,
	2, 5, 8, 15,
	3, 6, 9, 12,
}

// DecryptBlock decrypts a single 16-byte block in place. The key schedule
// holds 68 little-endian words: 17 round-key groups of 4. Each round
// XOR-combines four table lookups with the round's key words per output
// word; the round/pattern schedule here must not be altered, a deviation
// produces structurally plausible but wrong output everywhere downstream.
func DecryptBlock(block []byte, key *[68]uint32, tables *[17][16][256]uint32) {
	_ = block[15]
	decryptRoundA(block, key, &tables[0], 0)
	decryptRoundA(block, key, &tables[1], 1)
	for round := 2; round <= 15; round++ {
		decryptRoundB(block, key, &tables[round], round)
	}
	decryptRoundA(block, key, &tables[16], 16)
}

// decryptRoundA applies a round with straight byte wiring (rounds 0, 1, 16)
func decryptRoundA(block []byte, key *[68]uint32, table *[16][256]uint32, round int) {
	var state [16]byte
	copy(state[:], block)
	for word := 0; word < 4; word++ {
		x := key[round*4+word]
		for j := 0; j < 4; j++ {
			x ^= table[word*4+j][state[word*4+j]]
		}
		binary.LittleEndian.PutUint32(block[word*4:], x)
	}
}

// decryptRoundB applies a round with rotated byte wiring (rounds 2-15)
func decryptRoundB(block []byte, key *[68]uint32, table *[16][256]uint32, round int) {
	var state [16]byte
	copy(state[:], block)
	for word := 0; word < 4; word++ {
		x := key[round*4+word]
		for j := 0; j < 4; j++ {
			x ^= table[word*4+j][state[roundBWiring[word*4+j]]]
		}
		binary.LittleEndian.PutUint32(block[word*4:], x)
	}
}

// DecryptBuffer decrypts data in place with the NG cipher, selecting the
// key schedule from the archive filename and byte length. Full 16-byte
// blocks are decrypted; a trailing remainder is left unmodified.
func DecryptBuffer(data []byte, filename string, archiveLen uint32, store *keys.Store) {
	index := KeyIndex(filename, archiveLen, &store.HashLUT)
	key := &store.NGKeys[index]
	for off := 0; off+BlockSize <= len(data); off += BlockSize {
		DecryptBlock(data[off:off+BlockSize], key, &store.NGDecryptTables)
	}
}
