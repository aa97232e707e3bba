// YTD Texture Unpacker - Command Line Interface
package main

import (
	"flag"
	"fmt"
	"os"
)

// CLIConfig holds all command line configuration
type CLIConfig struct {
	VerboseMode bool
	QuietMode   bool
	DebugMode   bool
	OutputDir   string
	KeysDir     string
	PNGMode     bool
	PNGSize     int
	Workers     int
	ViewMode    bool
	InputPath   string
}

// parseCommandLine handles all command line parsing and flag setup
func parseCommandLine() *CLIConfig {
	var config CLIConfig
	flag.BoolVar(&config.VerboseMode, "verbose", false, "Enable verbose output and detailed processing information")
	flag.BoolVar(&config.VerboseMode, "v", false, "Enable verbose output (short form)")
	flag.BoolVar(&config.QuietMode, "quiet", false, "Suppress all non-essential output")
	flag.BoolVar(&config.QuietMode, "q", false, "Suppress all non-essential output (short form)")
	flag.BoolVar(&config.DebugMode, "debug", false, "Show parser internals for every processed file")
	flag.StringVar(&config.OutputDir, "output", "extracted", "Output directory for extracted textures")
	flag.StringVar(&config.KeysDir, "keys", "", "Directory holding the archive key material files (required for encrypted archives)")
	flag.BoolVar(&config.PNGMode, "png", false, "Also write a PNG preview next to each extracted DDS")
	flag.IntVar(&config.PNGSize, "png-size", 512, "Square canvas size for PNG previews")
	flag.IntVar(&config.Workers, "workers", 0, "Number of extraction workers (0 = automatic)")
	flag.BoolVar(&config.ViewMode, "view", false, "Open an interactive texture viewer instead of extracting")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "YTD Texture Unpacker\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Decodes RPF7 archives and RSC7 texture dictionaries and\n")
		fmt.Fprintf(flag.CommandLine.Output(), "re-emits each diffuse texture as a standard DDS file.\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  %s [flags] <ytd_file | rpf_file | directory>\n\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), "\nExamples:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  %s jbib_diff_000_a_uni.ytd\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "  %s -output textures ./stream\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "  %s -keys ./keys -png x64a.rpf\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "  %s -view ./stream\n", os.Args[0])
	}
	flag.Parse()

	if config.VerboseMode && config.QuietMode {
		fmt.Fprintf(os.Stderr, "Error: Cannot use both -verbose and -quiet flags simultaneously\n")
		os.Exit(1)
	}

	switch {
	case config.DebugMode:
		SetOutputLevel(LevelDebug)
	case config.VerboseMode:
		SetOutputLevel(LevelVerbose)
	case config.QuietMode:
		SetOutputLevel(LevelQuiet)
	}

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	config.InputPath = flag.Arg(0)
	return &config
}

// runCLI executes the main CLI logic based on parsed configuration
func runCLI(config *CLIConfig) error {
	if config.ViewMode {
		return runViewer(config)
	}

	stat, err := os.Stat(config.InputPath)
	if err != nil {
		return fmt.Errorf("error accessing path %s: %w", config.InputPath, err)
	}
	if stat.IsDir() {
		Infof("Batch mode: Processing all texture files in: %s\n", config.InputPath)
		return processBatch(config)
	}
	Infof("Single file mode: Processing: %s\n", config.InputPath)
	return processSingleInput(config)
}
