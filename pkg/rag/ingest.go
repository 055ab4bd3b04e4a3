package rag

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"
)

// DefaultChunkSize is the target chunk length, in bytes, for ingestion.
const DefaultChunkSize = 1000

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Files  int
	Chunks int
}

// Ingest walks the source, chunks every text file, and indexes each chunk as
// one document. Chunk IDs are derived from the file name so that the model's
// grounding citations resolve back to readable source names.
func Ingest(ctx context.Context, ix *Index, src Source, logger *slog.Logger) (IngestStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var stats IngestStats
	err := src.Walk(ctx, func(f File) error {
		chunks := chunkText(string(f.Data), DefaultChunkSize)
		if len(chunks) == 0 {
			return nil
		}
		base := sanitizeID(f.Name)
		for i, chunk := range chunks {
			doc := Document{
				ID:      fmt.Sprintf("%s_%d", base, i),
				Title:   f.Name,
				Content: chunk,
			}
			if err := ix.Add(ctx, doc); err != nil {
				return err
			}
		}
		stats.Files++
		stats.Chunks += len(chunks)
		logger.Debug("ingested file", "name", f.Name, "chunks", len(chunks))
		return nil
	})
	return stats, err
}

// chunkText splits text into chunks of roughly size bytes, preferring
// paragraph then sentence boundaries over hard cuts.
func chunkText(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	var buf strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(para) > size {
			chunks = append(chunks, strings.TrimSpace(buf.String()))
			buf.Reset()
		}
		if len(para) > size {
			for _, piece := range splitBySentence(para, size) {
				if buf.Len() > 0 && buf.Len()+len(piece) > size {
					chunks = append(chunks, strings.TrimSpace(buf.String()))
					buf.Reset()
				}
				buf.WriteString(piece)
				buf.WriteString(" ")
			}
			continue
		}
		buf.WriteString(para)
		buf.WriteString("\n\n")
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

// splitBySentence cuts an oversized paragraph at sentence ends, falling back
// to hard cuts for pathological runs with no punctuation.
func splitBySentence(para string, size int) []string {
	var pieces []string
	start := 0
	for start < len(para) {
		if len(para)-start <= size {
			pieces = append(pieces, para[start:])
			break
		}
		cut := strings.LastIndexAny(para[start:start+size], ".!?")
		if cut <= 0 {
			cut = size - 1
		}
		pieces = append(pieces, para[start:start+cut+1])
		start += cut + 1
		for start < len(para) && para[start] == ' ' {
			start++
		}
	}
	return pieces
}

// sanitizeID maps a file name onto the citation alphabet the grounding tool
// validates against: letters, digits, underscore and hyphen.
func sanitizeID(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r) && r < 128, r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
