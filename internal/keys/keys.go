// Package keys loads the fixed-size key material blobs needed to decrypt
// RPF7 archives: the AES key, the NG cipher key schedules and decryption
// tables, and the filename hash lookup table.
package keys

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Key material file names inside the keys directory
const (
	AESKeyFile   = "gtav_aes_key.dat"
	NGKeysFile   = "gtav_ng_key.dat"
	NGTablesFile = "gtav_ng_decrypt_tables.dat"
	HashLUTFile  = "gtav_hash_lut.dat"
)

// Expected byte sizes of the key material files
const (
	AESKeySize   = 32
	NGKeyCount   = 101
	NGKeySize    = 272 // 68 little-endian uint32 words
	NGKeysSize   = NGKeyCount * NGKeySize
	NGTablesSize = 17 * 16 * 256 * 4
	HashLUTSize  = 256
)

var (
	ErrKeyMaterialMissing = errors.New("key material file missing")
	ErrKeyMaterialCorrupt = errors.New("key material file corrupt")
)

// Store holds all key material for a decode session. It is immutable once
// loaded and safe to share across concurrent workers.
type Store struct {
	AESKey          []byte // AES-256 key, 32 bytes
	NGKeys          [NGKeyCount][68]uint32
	NGDecryptTables [17][16][256]uint32
	HashLUT         [256]byte
}

// Load reads all four key material files from dir. Loading is
// all-or-nothing: any missing or wrong-sized file fails the whole load and
// nothing is retained.
func Load(dir string) (*Store, error) {
	aesKey, err := readExact(dir, AESKeyFile, AESKeySize)
	if err != nil {
		return nil, err
	}
	ngKeys, err := readExact(dir, NGKeysFile, NGKeysSize)
	if err != nil {
		return nil, err
	}
	ngTables, err := readExact(dir, NGTablesFile, NGTablesSize)
	if err != nil {
		return nil, err
	}
	hashLUT, err := readExact(dir, HashLUTFile, HashLUTSize)
	if err != nil {
		return nil, err
	}

	store := &Store{AESKey: aesKey}

	for k := 0; k < NGKeyCount; k++ {
		base := k * NGKeySize
		for w := 0; w < 68; w++ {
			store.NGKeys[k][w] = binary.LittleEndian.Uint32(ngKeys[base+w*4:])
		}
	}

	pos := 0
	for round := 0; round < 17; round++ {
		for idx := 0; idx < 16; idx++ {
			for b := 0; b < 256; b++ {
				store.NGDecryptTables[round][idx][b] = binary.LittleEndian.Uint32(ngTables[pos:])
				pos += 4
			}
		}
	}

	copy(store.HashLUT[:], hashLUT)

	return store, nil
}

// readExact reads a key material file and verifies its exact byte length
func readExact(dir, name string, want int) ([]byte, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeyMaterialMissing, name)
		}
		return nil, fmt.Errorf("failed to read key material %s: %w", name, err)
	}
	if len(data) != want {
		return nil, fmt.Errorf("%w: %s is %d bytes, expected %d",
			ErrKeyMaterialCorrupt, name, len(data), want)
	}
	return data, nil
}
