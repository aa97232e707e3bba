// Run catalog: a JSON record of every extraction attempt in a run
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// CatalogItem records one extraction attempt. Output and the texture
// fields are empty and Error set when the attempt failed.
type CatalogItem struct {
	Source  string `json:"source"`
	Output  string `json:"output,omitempty"`
	Texture string `json:"texture,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Format  string `json:"format,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Catalog accumulates extraction outcomes across workers and is safe for
// concurrent use.
type Catalog struct {
	mu    sync.Mutex
	items []CatalogItem
}

func NewCatalog() *Catalog {
	return &Catalog{}
}

// AddTexture records a successful extraction
func (c *Catalog) AddTexture(item CatalogItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
}

// AddFailure records a failed extraction attempt
func (c *Catalog) AddFailure(source string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, CatalogItem{Source: source, Error: err.Error()})
}

// Extracted returns the number of successful extractions so far
func (c *Catalog) Extracted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, item := range c.items {
		if item.Error == "" {
			n++
		}
	}
	return n
}

// Failed returns the number of failed attempts so far
func (c *Catalog) Failed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, item := range c.items {
		if item.Error != "" {
			n++
		}
	}
	return n
}

// Empty reports whether nothing was recorded
func (c *Catalog) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

// WriteFile writes the catalog as indented JSON
func (c *Catalog) WriteFile(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc := struct {
		GeneratedAt string        `json:"generated_at"`
		Extracted   int           `json:"extracted"`
		Failed      int           `json:"failed"`
		Items       []CatalogItem `json:"items"`
	}{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Items:       c.items,
	}
	for _, item := range c.items {
		if item.Error == "" {
			doc.Extracted++
		} else {
			doc.Failed++
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}
