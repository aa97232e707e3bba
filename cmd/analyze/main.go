// Header inspector for RPF7 archives and RSC7 resource containers
package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"ytd-unpacker/internal/rpf"
	"ytd-unpacker/internal/rsc7"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/analyze/main.go <rpf_or_ytd_file>")
		os.Exit(1)
	}

	filePath := os.Args[1]
	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Analyzing: %s (%d bytes)\n", filePath, len(data))
	fmt.Println("============================================================")

	hexdump(data, 64)

	if len(data) < 16 {
		fmt.Println("\nFile too small for any known header")
		os.Exit(1)
	}

	magic := binary.LittleEndian.Uint32(data)
	switch magic {
	case rpf.Magic:
		analyzeRPF(filePath, data)
	case rsc7.Magic:
		analyzeRSC7(data)
	default:
		fmt.Printf("\nUnknown magic: 0x%08X (expected RPF7 0x%08X or RSC7 0x%08X)\n",
			magic, rpf.Magic, rsc7.Magic)
		os.Exit(1)
	}
}

func analyzeRPF(filePath string, data []byte) {
	entryCount := binary.LittleEndian.Uint32(data[4:])
	namesLength := binary.LittleEndian.Uint32(data[8:])
	encryption := binary.LittleEndian.Uint32(data[12:])

	fmt.Println("\nRPF7 archive header:")
	fmt.Printf("  Entry Count:  %d\n", entryCount)
	fmt.Printf("  Names Length: %d bytes\n", namesLength)
	fmt.Printf("  Encryption:   0x%08X (%s)\n", encryption, encryptionName(encryption))

	tableEnd := 16 + uint64(entryCount)*16 + uint64(namesLength)
	if tableEnd > uint64(len(data)) {
		fmt.Printf("  WARNING: entry table ends at %d, past the archive end\n", tableEnd)
		return
	}
	fmt.Printf("  Entry table:  bytes 16..%d\n", tableEnd)

	if encryption != rpf.EncryptionNone && encryption != rpf.EncryptionOpen {
		fmt.Println("\nEntry table is encrypted, skipping entry listing")
		return
	}

	archive, err := rpf.Open(filePath, nil)
	if err != nil {
		fmt.Printf("\nError parsing archive: %v\n", err)
		return
	}
	defer archive.Close()

	fmt.Printf("\nFirst entries (%d total):\n", len(archive.Entries))
	for i, entry := range archive.Entries {
		if i >= 20 {
			fmt.Println("  ... (stopping after first 20 entries)")
			break
		}
		switch e := entry.(type) {
		case *rpf.DirEntry:
			fmt.Printf("  %3d: dir      %-40s children %d..%d\n",
				i, e.Name, e.EntriesIndex, e.EntriesIndex+e.EntriesCount)
		case *rpf.BinaryEntry:
			fmt.Printf("  %3d: binary   %-40s %d bytes at block %d\n",
				i, e.Name, e.Size, e.BlockOffset)
		case *rpf.ResourceEntry:
			fmt.Printf("  %3d: resource %-40s %d bytes at block %d (sys 0x%08X gfx 0x%08X)\n",
				i, e.Name, e.Size, e.BlockOffset, e.SystemFlags, e.GraphicsFlags)
		}
	}
}

func analyzeRSC7(data []byte) {
	version := binary.LittleEndian.Uint32(data[4:])
	systemFlags := binary.LittleEndian.Uint32(data[8:])
	graphicsFlags := binary.LittleEndian.Uint32(data[12:])

	fmt.Println("\nRSC7 resource header:")
	fmt.Printf("  Version:        %d\n", version)
	fmt.Printf("  System Flags:   0x%08X -> %d bytes virtual\n",
		systemFlags, rsc7.SizeFromFlags(systemFlags))
	fmt.Printf("  Graphics Flags: 0x%08X -> %d bytes physical\n",
		graphicsFlags, rsc7.SizeFromFlags(graphicsFlags))
	fmt.Printf("  Compressed body: %d bytes\n", len(data)-16)

	resource, err := rsc7.Parse(data)
	if err != nil {
		fmt.Printf("\nError parsing resource: %v\n", err)
		return
	}
	fmt.Printf("\nDecompressed: %d bytes virtual, %d bytes physical\n",
		len(resource.VirtualData), len(resource.PhysicalData))
}

func encryptionName(encryption uint32) string {
	switch encryption {
	case rpf.EncryptionNone:
		return "none"
	case rpf.EncryptionOpen:
		return "none (OPEN)"
	case rpf.EncryptionAES:
		return "AES"
	case rpf.EncryptionNG:
		return "NG"
	default:
		return "unknown"
	}
}

func hexdump(data []byte, limit int) {
	n := len(data)
	if n > limit {
		n = limit
	}
	fmt.Printf("\nFirst %d bytes:\n", n)
	fmt.Println("Offset  00 01 02 03 04 05 06 07 08 09 0A 0B 0C 0D 0E 0F  ASCII")
	for i := 0; i < n; i += 16 {
		fmt.Printf("%06X  ", i)
		for j := 0; j < 16; j++ {
			if i+j < n {
				fmt.Printf("%02X ", data[i+j])
			} else {
				fmt.Print("   ")
			}
		}
		fmt.Print(" ")
		for j := 0; j < 16 && i+j < n; j++ {
			b := data[i+j]
			if b >= 32 && b <= 126 {
				fmt.Printf("%c", b)
			} else {
				fmt.Print(".")
			}
		}
		fmt.Println()
	}
}
