package ng

import (
	"crypto/aes"
	"fmt"
)

// DecryptAES decrypts data in place with AES-256 in ECB mode, used by
// archives that declare the AES scheme instead of the NG cipher. Blocks
// are decrypted independently; a trailing remainder shorter than one AES
// block passes through unchanged, matching the NG buffer rule.
func DecryptAES(data []byte, key []byte) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to initialize AES cipher: %w", err)
	}
	bs := block.BlockSize()
	for off := 0; off+bs <= len(data); off += bs {
		block.Decrypt(data[off:off+bs], data[off:off+bs])
	}
	return nil
}
