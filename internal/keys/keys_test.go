package keys

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeFixtures creates a complete key material directory with
// deterministic contents and returns its path.
func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]int{
		AESKeyFile:   AESKeySize,
		NGKeysFile:   NGKeysSize,
		NGTablesFile: NGTablesSize,
		HashLUTFile:  HashLUTSize,
	}
	for name, size := range files {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatalf("writing fixture %s: %v", name, err)
		}
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeFixtures(t)

	store, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(store.AESKey) != AESKeySize {
		t.Errorf("AESKey length = %d, want %d", len(store.AESKey), AESKeySize)
	}
	if store.AESKey[0] != 0 || store.AESKey[31] != 31 {
		t.Errorf("AESKey bytes not preserved: %v", store.AESKey)
	}

	// Key words are little-endian u32 reads of the raw file
	want := binary.LittleEndian.Uint32([]byte{0, 1, 2, 3})
	if store.NGKeys[0][0] != want {
		t.Errorf("NGKeys[0][0] = 0x%08X, want 0x%08X", store.NGKeys[0][0], want)
	}

	// Key schedule 1 starts NGKeySize bytes into the file
	off := NGKeySize
	wantKey1 := binary.LittleEndian.Uint32([]byte{
		byte(off), byte(off + 1), byte(off + 2), byte(off + 3),
	})
	if store.NGKeys[1][0] != wantKey1 {
		t.Errorf("NGKeys[1][0] = 0x%08X, want 0x%08X", store.NGKeys[1][0], wantKey1)
	}

	if store.HashLUT[0] != 0 || store.HashLUT[255] != 255 {
		t.Errorf("HashLUT not preserved")
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := writeFixtures(t)
	if err := os.Remove(filepath.Join(dir, NGTablesFile)); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if !errors.Is(err, ErrKeyMaterialMissing) {
		t.Errorf("Load = %v, want ErrKeyMaterialMissing", err)
	}
}

func TestLoadWrongSize(t *testing.T) {
	dir := writeFixtures(t)
	if err := os.WriteFile(filepath.Join(dir, AESKeyFile), make([]byte, 16), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if !errors.Is(err, ErrKeyMaterialCorrupt) {
		t.Errorf("Load = %v, want ErrKeyMaterialCorrupt", err)
	}
}

func TestLoadEmptyDir(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, ErrKeyMaterialMissing) {
		t.Errorf("Load = %v, want ErrKeyMaterialMissing", err)
	}
}
