// YTD Texture Unpacker
// Extracts diffuse textures from RPF7 archives and RSC7 texture dictionaries
package main

import (
	"fmt"
	"os"
)

func main() {
	config := parseCommandLine()

	if err := runCLI(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
