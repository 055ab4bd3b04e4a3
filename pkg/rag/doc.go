// Package rag provides the retrieval collaborators for the realtime relay:
// a knowledge-base index, the server-side tools that query it, and corpus
// sources for populating it.
//
// The [Index] stores documents in BadgerDB and searches them by embedding
// similarity when an [Embedder] is configured, falling back to keyword
// overlap otherwise. [AttachTools] registers the "search" and
// "report_grounding" tools into a relay registry, binding them to an index.
//
//	idx, err := rag.OpenIndex(rag.IndexOptions{Dir: "data/index", Embedder: emb})
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
//
//	reg := relay.NewRegistry()
//	rag.AttachTools(reg, idx)
//
// Corpus ingestion reads text files from a [Source] (local directory or S3
// bucket), chunks them, and indexes each chunk as one document.
package rag
