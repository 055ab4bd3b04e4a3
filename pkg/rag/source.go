package rag

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// File is one raw corpus item yielded by a Source.
type File struct {
	// Name is the source-relative path, used to derive document IDs.
	Name string

	// Data is the file content.
	Data []byte
}

// Source yields corpus files for ingestion.
type Source interface {
	// Walk calls fn for every corpus file. Iteration stops on the first
	// error fn returns.
	Walk(ctx context.Context, fn func(File) error) error
}

// textExtensions are the file types ingested from a corpus. Everything else
// is skipped.
var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".rst": true,
	".csv": true,
}

func isTextFile(name string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(name))]
}

// DirSource yields the text files under a local directory tree.
type DirSource struct {
	Dir string
}

// Walk implements Source.
func (s *DirSource) Walk(ctx context.Context, fn func(File) error) error {
	root := os.DirFS(s.Dir)
	return fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !isTextFile(path) {
			return nil
		}
		data, err := fs.ReadFile(root, path)
		if err != nil {
			return fmt.Errorf("rag: read %s: %w", path, err)
		}
		return fn(File{Name: path, Data: data})
	})
}
