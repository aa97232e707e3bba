// Interactive texture viewer built on ebiten
package main

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"ytd-unpacker/internal/dds"
	"ytd-unpacker/internal/keys"
	"ytd-unpacker/internal/rpf"
	"ytd-unpacker/internal/rsc7"
	"ytd-unpacker/internal/ytd"
)

const (
	screenWidth  = 800
	screenHeight = 600
)

// TextureFile is one viewable texture dictionary. The loader returns the
// raw RSC7 container bytes; for archive entries it captures the opened
// archive so extraction happens only when the file is actually shown.
type TextureFile struct {
	Name string
	load func() ([]byte, error)
}

// ViewerGame cycles through discovered texture dictionaries and shows the
// diffuse texture of the current one.
type ViewerGame struct {
	textures    []TextureFile
	archives    []*rpf.Archive
	currentFile int
	current     *ebiten.Image
	currentInfo string
	loadErr     error
}

// NewViewerGame scans a path for texture dictionaries, both loose .ytd
// files and .ytd resources inside .rpf archives.
func NewViewerGame(path string, store *keys.Store) (*ViewerGame, error) {
	game := &ViewerGame{}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing path %s: %w", path, err)
	}
	if !stat.IsDir() {
		if err := game.addFile(path, store); err != nil {
			return nil, err
		}
	} else {
		err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(info.Name())) {
			case ".ytd", ".rpf":
				if err := game.addFile(p, store); err != nil {
					Errorf("Warning: %s: %v\n", filepath.Base(p), err)
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory: %w", err)
		}
	}

	Infof("Found %d texture dictionaries (%d archives loaded)\n", len(game.textures), len(game.archives))
	return game, nil
}

// addFile adds a loose dictionary file or every dictionary resource of
// an archive to the viewable list.
func (g *ViewerGame) addFile(path string, store *keys.Store) error {
	if strings.ToLower(filepath.Ext(path)) == ".ytd" {
		g.textures = append(g.textures, TextureFile{
			Name: filepath.Base(path),
			load: func() ([]byte, error) { return os.ReadFile(path) },
		})
		return nil
	}

	archive, err := rpf.Open(path, store)
	if err != nil {
		return err
	}
	g.archives = append(g.archives, archive)

	visit := func(depth int, a *rpf.Archive) error {
		for _, entry := range a.Entries {
			res, ok := entry.(*rpf.ResourceEntry)
			if !ok || !strings.HasSuffix(strings.ToLower(res.Name), ".ytd") {
				continue
			}
			// The closure keeps nested in-memory archives alive for
			// as long as their textures are listed.
			g.textures = append(g.textures, TextureFile{
				Name: fmt.Sprintf("[%s] %s", filepath.Base(path), res.Name),
				load: func() ([]byte, error) { return a.ExtractResourceRaw(res) },
			})
		}
		return nil
	}
	onError := func(name string, err error) {
		Errorf("Warning: nested archive %s: %v\n", name, err)
	}
	return rpf.Walk(archive, visit, onError)
}

// loadCurrent decodes the currently selected dictionary into an image
func (g *ViewerGame) loadCurrent() {
	g.current = nil
	g.currentInfo = ""
	g.loadErr = nil

	if len(g.textures) == 0 {
		return
	}
	file := g.textures[g.currentFile]

	raw, err := file.load()
	if err != nil {
		g.loadErr = err
		return
	}
	resource, err := rsc7.Parse(raw)
	if err != nil {
		g.loadErr = err
		return
	}
	parsed, err := ytd.ParseDictionary(resource.VirtualData, resource.PhysicalData)
	if err != nil {
		g.loadErr = err
		return
	}
	texture, err := ytd.SelectDiffuse(parsed)
	if err != nil {
		g.loadErr = err
		return
	}
	ddsData, err := dds.Build(texture)
	if err != nil {
		g.loadErr = err
		return
	}
	img, err := dds.Decode(ddsData)
	if err != nil {
		g.loadErr = err
		return
	}

	g.current = ebiten.NewImageFromImage(img)
	g.currentInfo = fmt.Sprintf("%s  %dx%d %s, %d mips",
		texture.Name, texture.Width, texture.Height, texture.FormatName, texture.MipLevels)
}

func (g *ViewerGame) Update() error {
	if len(g.textures) == 0 {
		return nil
	}

	// Load the first texture on startup
	if g.current == nil && g.loadErr == nil && g.currentInfo == "" {
		g.loadCurrent()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyRight) {
		g.currentFile = (g.currentFile + 1) % len(g.textures)
		g.loadCurrent()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyLeft) {
		g.currentFile = (g.currentFile - 1 + len(g.textures)) % len(g.textures)
		g.loadCurrent()
	}
	return nil
}

func (g *ViewerGame) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{0x20, 0x20, 0x28, 0xff})

	if g.current != nil {
		// Scale the texture to fit the window, centered
		bounds := g.current.Bounds()
		scale := 1.0
		if bounds.Dx() > screenWidth || bounds.Dy() > screenHeight-60 {
			sx := float64(screenWidth) / float64(bounds.Dx())
			sy := float64(screenHeight-60) / float64(bounds.Dy())
			scale = sx
			if sy < sx {
				scale = sy
			}
		}
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(scale, scale)
		op.GeoM.Translate(
			(screenWidth-float64(bounds.Dx())*scale)/2,
			60+(screenHeight-60-float64(bounds.Dy())*scale)/2)
		screen.DrawImage(g.current, op)
	}

	ebitenutil.DebugPrint(screen, "Texture Viewer - LEFT/RIGHT: previous/next")

	if len(g.textures) == 0 {
		ebitenutil.DebugPrintAt(screen, "No .ytd or .rpf files found", 10, 30)
		return
	}

	file := g.textures[g.currentFile]
	ebitenutil.DebugPrintAt(screen,
		fmt.Sprintf("File %d of %d: %s", g.currentFile+1, len(g.textures), file.Name), 10, 20)
	if g.loadErr != nil {
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Error: %v", g.loadErr), 10, 40)
	} else {
		ebitenutil.DebugPrintAt(screen, g.currentInfo, 10, 40)
	}
}

func (g *ViewerGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

// runViewer opens the interactive viewer on the configured input path
func runViewer(config *CLIConfig) error {
	store, err := loadKeyStore(config)
	if err != nil {
		return err
	}

	game, err := NewViewerGame(config.InputPath, store)
	if err != nil {
		return err
	}
	defer func() {
		for _, archive := range game.archives {
			archive.Close()
		}
	}()

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("Texture Viewer")
	if err := ebiten.RunGame(game); err != nil {
		return fmt.Errorf("viewer error: %w", err)
	}
	return nil
}
