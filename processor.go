// Batch processing logic for texture dictionaries and archives
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"ytd-unpacker/internal/dds"
	"ytd-unpacker/internal/keys"
	"ytd-unpacker/internal/rpf"
	"ytd-unpacker/internal/rsc7"
	"ytd-unpacker/internal/ytd"
)

// TextureJob represents one dictionary file queued for extraction
type TextureJob struct {
	Index      int
	TotalFiles int
	Path       string
}

// TextureResult represents the outcome of one extraction job
type TextureResult struct {
	Path    string
	Output  string
	Texture *ytd.Texture
	Err     error
}

// loadKeyStore loads archive key material if a directory was configured.
// A nil store is valid and only fails later if an encrypted archive is
// actually encountered.
func loadKeyStore(config *CLIConfig) (*keys.Store, error) {
	if config.KeysDir == "" {
		return nil, nil
	}
	store, err := keys.Load(config.KeysDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load key material from %s: %w", config.KeysDir, err)
	}
	Verbosef("Loaded key material from %s\n", config.KeysDir)
	return store, nil
}

// processSingleInput handles a single .ytd or .rpf file path
func processSingleInput(config *CLIConfig) error {
	catalog := NewCatalog()
	defer writeCatalog(catalog, config)

	switch strings.ToLower(filepath.Ext(config.InputPath)) {
	case ".ytd":
		result := processYTDFile(config.InputPath, config)
		recordResult(catalog, result)
		if result.Err != nil {
			return fmt.Errorf("failed to process %s: %w", filepath.Base(config.InputPath), result.Err)
		}
		Resultf("Extracted: %s\n", result.Output)
		return nil
	case ".rpf":
		store, err := loadKeyStore(config)
		if err != nil {
			return err
		}
		return processRPFFile(config.InputPath, store, config, catalog)
	default:
		return fmt.Errorf("unsupported file type: %s (expected .ytd or .rpf)", config.InputPath)
	}
}

// processBatch handles processing all texture files in a directory
func processBatch(config *CLIConfig) error {
	var ytdFiles, rpfFiles []string

	err := filepath.Walk(config.InputPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(info.Name())) {
		case ".ytd":
			ytdFiles = append(ytdFiles, path)
		case ".rpf":
			rpfFiles = append(rpfFiles, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan directory: %w", err)
	}

	if len(ytdFiles) == 0 && len(rpfFiles) == 0 {
		return fmt.Errorf("no .ytd or .rpf files found in directory: %s", config.InputPath)
	}
	Infof("Found %d texture dictionaries and %d archives to process\n", len(ytdFiles), len(rpfFiles))

	catalog := NewCatalog()
	defer writeCatalog(catalog, config)

	if len(ytdFiles) > 0 {
		if err := processYTDBatch(ytdFiles, config, catalog); err != nil {
			return err
		}
	}

	if len(rpfFiles) > 0 {
		store, err := loadKeyStore(config)
		if err != nil {
			return err
		}
		for i, rpfFile := range rpfFiles {
			Infof("=== Processing archive %d/%d: %s ===\n", i+1, len(rpfFiles), filepath.Base(rpfFile))
			if err := processRPFFile(rpfFile, store, config, catalog); err != nil {
				Errorf("Warning: Failed to process %s: %v\n", filepath.Base(rpfFile), err)
			}
		}
	}

	Resultf("Done: %d textures extracted, %d failures\n", catalog.Extracted(), catalog.Failed())
	return nil
}

// processYTDBatch extracts loose dictionary files concurrently
func processYTDBatch(files []string, config *CLIConfig, catalog *Catalog) error {
	maxWorkers := config.Workers
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	if maxWorkers > len(files) {
		maxWorkers = len(files)
	}
	Verbosef("Using %d workers for %d dictionary files\n", maxWorkers, len(files))

	jobs := make(chan TextureJob, len(files))
	results := make(chan TextureResult, len(files))

	// Start worker goroutines
	var wg sync.WaitGroup
	for w := 0; w < maxWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				Verbosef("  [%d/%d] %s\n", job.Index+1, job.TotalFiles, filepath.Base(job.Path))
				results <- processYTDFile(job.Path, config)
			}
		}()
	}

	// Send jobs to workers
	for i, file := range files {
		jobs <- TextureJob{Index: i, TotalFiles: len(files), Path: file}
	}
	close(jobs)

	// Wait for all workers to complete
	go func() {
		wg.Wait()
		close(results)
	}()

	for result := range results {
		recordResult(catalog, result)
		if result.Err != nil {
			Errorf("Warning: %s: %v\n", filepath.Base(result.Path), result.Err)
		}
	}
	return nil
}

// processYTDFile runs the full pipeline for one dictionary file: parse
// the resource container, parse the dictionary, pick the diffuse texture
// and write it out as DDS.
func processYTDFile(path string, config *CLIConfig) TextureResult {
	result := TextureResult{Path: path}

	resource, err := rsc7.ParseFile(path)
	if err != nil {
		result.Err = err
		return result
	}
	baseName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	result.Output, result.Texture, result.Err = extractDiffuse(resource, baseName, config)
	return result
}

// extractDiffuse writes the best diffuse texture of a parsed resource to
// the output directory and returns the written file path and the texture.
func extractDiffuse(resource *rsc7.Resource, baseName string, config *CLIConfig) (string, *ytd.Texture, error) {
	if resource.Version != rsc7.ExpectedVersion {
		Verbosef("%s: unexpected resource version %d (expected %d), attempting anyway\n", baseName, resource.Version, rsc7.ExpectedVersion)
	}
	parsed, err := ytd.ParseDictionary(resource.VirtualData, resource.PhysicalData)
	if err != nil {
		return "", nil, err
	}
	if hashes := ytd.ParseNameHashes(resource.VirtualData); hashes != nil {
		Debugf("    dictionary indexes %d name hashes\n", len(hashes))
	}
	for _, r := range parsed {
		if r.Err != nil {
			Debugf("    skipping texture slot: %v\n", r.Err)
		} else {
			Debugf("    texture %s %dx%d %s, %d mips\n",
				r.Texture.Name, r.Texture.Width, r.Texture.Height,
				r.Texture.FormatName, r.Texture.MipLevels)
		}
	}

	texture, err := ytd.SelectDiffuse(parsed)
	if err != nil {
		return "", nil, err
	}

	ddsData, err := dds.Build(texture)
	if err != nil {
		return "", nil, err
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	outName := texture.Name
	if outName == "" {
		outName = baseName
	}
	outPath := filepath.Join(config.OutputDir, outName+".dds")
	if err := os.WriteFile(outPath, ddsData, 0644); err != nil {
		return "", nil, fmt.Errorf("failed to write DDS file: %w", err)
	}
	Verbosef("  Wrote %s (%s %dx%d)\n", outPath, texture.FormatName, texture.Width, texture.Height)

	if config.PNGMode {
		if err := writePNGPreview(ddsData, outPath, config.PNGSize); err != nil {
			// Preview failure is non-fatal, the DDS is already on disk
			Errorf("Warning: PNG preview for %s: %v\n", outName, err)
		}
	}
	return outPath, texture, nil
}

// processRPFFile walks an archive tree and extracts every texture
// dictionary resource found in it, including those in nested archives.
func processRPFFile(path string, store *keys.Store, config *CLIConfig, catalog *Catalog) error {
	archive, err := rpf.Open(path, store)
	if err != nil {
		if errors.Is(err, rpf.ErrDecryptionKeyRequired) {
			return fmt.Errorf("%w (use -keys to supply key material)", err)
		}
		return err
	}
	defer archive.Close()

	extracted := 0
	visit := func(depth int, a *rpf.Archive) error {
		Verbosef("%sarchive %s: %d entries\n", strings.Repeat("  ", depth), a.Name, len(a.Entries))
		for _, entry := range a.Entries {
			res, ok := entry.(*rpf.ResourceEntry)
			if !ok || !strings.HasSuffix(strings.ToLower(res.Name), ".ytd") {
				continue
			}
			raw, err := a.ExtractResourceRaw(res)
			if err != nil {
				recordResult(catalog, TextureResult{Path: res.Name, Err: err})
				Errorf("Warning: %s: %v\n", res.Name, err)
				continue
			}
			if res.Size == rpf.UnknownResourceSize {
				Verbosef("%s: entry size unknown, bounded read of %d bytes from its container header\n", res.Name, len(raw))
			}
			resource, err := rsc7.Parse(raw)
			if err != nil {
				recordResult(catalog, TextureResult{Path: res.Name, Err: err})
				Errorf("Warning: %s: %v\n", res.Name, err)
				continue
			}
			baseName := strings.TrimSuffix(res.Name, filepath.Ext(res.Name))
			outPath, texture, err := extractDiffuse(resource, baseName, config)
			recordResult(catalog, TextureResult{Path: res.Name, Output: outPath, Texture: texture, Err: err})
			if err != nil {
				Errorf("Warning: %s: %v\n", res.Name, err)
				continue
			}
			extracted++
		}
		return nil
	}
	onError := func(name string, err error) {
		Errorf("Warning: nested archive %s: %v\n", name, err)
	}
	if err := rpf.Walk(archive, visit, onError); err != nil {
		return err
	}

	Resultf("Extracted %d textures from %s\n", extracted, filepath.Base(path))
	return nil
}

// recordResult adds one extraction outcome to the run catalog
func recordResult(catalog *Catalog, result TextureResult) {
	if result.Err != nil {
		catalog.AddFailure(result.Path, result.Err)
		return
	}
	item := CatalogItem{Source: result.Path, Output: result.Output}
	if result.Texture != nil {
		item.Texture = result.Texture.Name
		item.Width = result.Texture.Width
		item.Height = result.Texture.Height
		item.Format = result.Texture.FormatName
	}
	catalog.AddTexture(item)
}

// writeCatalog persists the run catalog beside the extracted textures
func writeCatalog(catalog *Catalog, config *CLIConfig) {
	if catalog.Empty() {
		return
	}
	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		Errorf("Warning: failed to create output directory: %v\n", err)
		return
	}
	catalogPath := filepath.Join(config.OutputDir, "catalog.json")
	if err := catalog.WriteFile(catalogPath); err != nil {
		Errorf("Warning: failed to write catalog: %v\n", err)
		return
	}
	Verbosef("Wrote catalog: %s\n", catalogPath)
}
