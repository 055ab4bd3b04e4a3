package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultTopK is the result count used when a search does not specify one.
const DefaultTopK = 5

// Key prefixes inside the badger store.
const (
	docPrefix = "doc:"
	vecPrefix = "vec:"
)

// ErrNotFound is returned when a document ID does not exist in the index.
var ErrNotFound = errors.New("rag: not found")

// Document is one retrievable unit of the knowledge base, typically a chunk
// of a source file.
type Document struct {
	ID      string `json:"doc_id" msgpack:"id"`
	Title   string `json:"title,omitempty" msgpack:"title,omitempty"`
	Content string `json:"content" msgpack:"content"`
}

// Hit is a single search result.
type Hit struct {
	Document
	Score float32 `json:"score"`
}

// IndexOptions configures OpenIndex.
type IndexOptions struct {
	// Dir is the BadgerDB data directory. Required unless InMemory.
	Dir string

	// InMemory runs the store without disk persistence. Used in tests.
	InMemory bool

	// Embedder enables vector search. Nil falls back to keyword search.
	Embedder Embedder

	// Logger receives index logs. Nil means slog.Default().
	Logger *slog.Logger
}

// Index is the knowledge-base store: documents in BadgerDB, their embedding
// vectors mirrored in memory for brute-force similarity search.
//
// Brute force is adequate for the corpus sizes a single gateway serves;
// swapping in an ANN index behind the same Search signature is a local
// change.
type Index struct {
	db       *badger.DB
	embedder Embedder
	logger   *slog.Logger

	mu      sync.RWMutex
	vectors map[string][]float32
}

// OpenIndex opens (or creates) an index.
func OpenIndex(opts IndexOptions) (*Index, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("rag: IndexOptions.Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("rag: open index: %w", err)
	}

	ix := &Index{
		db:       db,
		embedder: opts.Embedder,
		logger:   logger,
		vectors:  make(map[string][]float32),
	}
	if err := ix.loadVectors(); err != nil {
		db.Close()
		return nil, err
	}
	return ix, nil
}

// loadVectors mirrors all stored embedding vectors into memory.
func (ix *Index) loadVectors() error {
	return ix.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(vecPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), vecPrefix)
			err := item.Value(func(val []byte) error {
				var vec []float32
				if err := msgpack.Unmarshal(val, &vec); err != nil {
					return fmt.Errorf("rag: decode vector %s: %w", id, err)
				}
				ix.vectors[id] = vec
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Add stores a document, embedding its content when an embedder is
// configured. Adding an existing ID overwrites it.
func (ix *Index) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return errors.New("rag: document ID is required")
	}

	encoded, err := msgpack.Marshal(doc)
	if err != nil {
		return fmt.Errorf("rag: encode document %s: %w", doc.ID, err)
	}

	var vec []float32
	if ix.embedder != nil {
		vec, err = ix.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("rag: embed document %s: %w", doc.ID, err)
		}
	}

	err = ix.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(docPrefix+doc.ID), encoded); err != nil {
			return err
		}
		if vec != nil {
			ev, err := msgpack.Marshal(vec)
			if err != nil {
				return err
			}
			return txn.Set([]byte(vecPrefix+doc.ID), ev)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rag: store document %s: %w", doc.ID, err)
	}

	if vec != nil {
		ix.mu.Lock()
		ix.vectors[doc.ID] = vec
		ix.mu.Unlock()
	}
	return nil
}

// Fetch returns the documents for the given IDs. Unknown IDs are skipped.
func (ix *Index) Fetch(ctx context.Context, ids []string) ([]Document, error) {
	var docs []Document
	err := ix.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get([]byte(docPrefix + id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				var doc Document
				if err := msgpack.Unmarshal(val, &doc); err != nil {
					return fmt.Errorf("rag: decode document %s: %w", id, err)
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return docs, err
}

// Len returns the number of stored documents.
func (ix *Index) Len() int {
	n := 0
	ix.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(docPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n
}

// Search returns the topK documents most relevant to the query: embedding
// cosine similarity when vectors are available, keyword overlap otherwise.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	if ix.embedder != nil {
		ix.mu.RLock()
		hasVectors := len(ix.vectors) > 0
		ix.mu.RUnlock()
		if hasVectors {
			return ix.vectorSearch(ctx, query, topK)
		}
	}
	return ix.keywordSearch(query, topK)
}

func (ix *Index) vectorSearch(ctx context.Context, query string, topK int) ([]Hit, error) {
	qv, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}

	type scored struct {
		id    string
		score float32
	}
	ix.mu.RLock()
	results := make([]scored, 0, len(ix.vectors))
	for id, vec := range ix.vectors {
		results = append(results, scored{id: id, score: cosineSimilarity(qv, vec)})
	}
	ix.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > topK {
		results = results[:topK]
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.id
	}
	docs, err := ix.Fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		doc, ok := byID[r.id]
		if !ok {
			continue
		}
		hits = append(hits, Hit{Document: doc, Score: r.score})
	}
	return hits, nil
}

func (ix *Index) keywordSearch(query string, topK int) ([]Hit, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var hits []Hit
	err := ix.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(docPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var doc Document
				if err := msgpack.Unmarshal(val, &doc); err != nil {
					return err
				}
				if score := keywordScore(terms, doc); score > 0 {
					hits = append(hits, Hit{Document: doc, Score: score})
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// keywordScore is the fraction of query terms present in the document.
func keywordScore(terms []string, doc Document) float32 {
	text := strings.ToLower(doc.Title + " " + doc.Content)
	matched := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			matched++
		}
	}
	return float32(matched) / float32(len(terms))
}

func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	terms := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]")
		if len(f) > 1 {
			terms = append(terms, f)
		}
	}
	return terms
}

func cosineSimilarity(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Close releases the underlying store.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// badgerLogger routes badger's internal logging into slog at debug level.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error("badger: " + fmt.Sprintf(format, args...))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn("badger: " + fmt.Sprintf(format, args...))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug("badger: " + fmt.Sprintf(format, args...))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug("badger: " + fmt.Sprintf(format, args...))
}
