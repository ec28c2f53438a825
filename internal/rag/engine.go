// Package rag answers free-text questions with retrieval-augmented
// generation over a local document set. The index over the documents is
// built in memory, lazily, exactly once per process; when no documents
// exist the engine degrades to plain chat completion.
package rag

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	fallbackSystemPrompt = "You are a helpful assistant. Answer briefly."
	ragSystemPrompt      = "You are a helpful assistant. Answer the question using the provided context. " +
		"If the context does not cover the question, say so briefly instead of guessing."
)

// Config holds Engine configuration.
type Config struct {
	DataDir      string
	ChunkSize    int // chars per chunk (default 500)
	ChunkOverlap int // overlap chars (default 50)
	TopK         int // chunks retrieved per query (default 4)
}

// Engine answers questions, with retrieval when an index exists.
type Engine struct {
	cfg      Config
	embedder Embedder
	llm      Completer

	buildOnce sync.Once
	idx       *index // nil after build when no documents were found
	buildErr  error
	stats     Stats
}

// Stats describes the built index.
type Stats struct {
	Documents int
	Chunks    int
	Fallback  bool // true when the engine answers without retrieval
}

// NewEngine creates an Engine. The index is not built until the first
// Answer or BuildNow call.
func NewEngine(cfg Config, embedder Embedder, llm Completer) *Engine {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 500
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = 50
	}
	if cfg.TopK == 0 {
		cfg.TopK = 4
	}
	return &Engine{cfg: cfg, embedder: embedder, llm: llm}
}

// Answer responds to a question. With an index, the top-matching chunks are
// supplied as context to the chat model; without one, the question goes to
// the model directly. An index build failure degrades to the direct path
// rather than failing every message for the life of the process.
func (e *Engine) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("empty question")
	}

	ix := e.loadIndex(ctx)
	if ix == nil {
		return e.llm.Complete(ctx, fallbackSystemPrompt, question)
	}

	qvecs, err := e.embedder.Embed(ctx, []string{question})
	if err != nil {
		log.Printf("[RAG] query embedding failed, answering without retrieval: %v", err)
		return e.llm.Complete(ctx, fallbackSystemPrompt, question)
	}

	results := ix.search(qvecs[0], e.cfg.TopK)

	var b strings.Builder
	b.WriteString("Context:\n")
	for _, r := range results {
		b.WriteString(r.Chunk.Text)
		b.WriteString("\n---\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)

	answer, err := e.llm.Complete(ctx, ragSystemPrompt, b.String())
	if err != nil {
		return "", fmt.Errorf("retrieval query: %w", err)
	}
	return answer, nil
}

// BuildNow forces the one-shot index build and reports what it produced.
// Called by the ingest command; the webhook path relies on the lazy build.
func (e *Engine) BuildNow(ctx context.Context) (Stats, error) {
	e.loadIndex(ctx)
	return e.stats, e.buildErr
}

// loadIndex runs the index build exactly once; concurrent first callers
// block on the same build. The returned index is nil in fallback mode.
func (e *Engine) loadIndex(ctx context.Context) *index {
	e.buildOnce.Do(func() {
		ix, err := e.build(ctx)
		if err != nil {
			e.buildErr = err
			e.stats = Stats{Fallback: true}
			log.Printf("[RAG] index build failed, using fallback responses: %v", err)
			return
		}
		e.idx = ix
		if ix == nil {
			e.stats = Stats{Fallback: true}
			return
		}
		e.stats = Stats{Documents: ix.docs, Chunks: len(ix.chunks)}
		log.Printf("[RAG] index ready: %d documents, %d chunks", ix.docs, len(ix.chunks))
	})
	return e.idx
}

// build reads the document dir, chunks every supported file, and embeds the
// chunks. A missing or empty dir is a valid no-index state, not an error.
func (e *Engine) build(ctx context.Context) (*index, error) {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[RAG] data dir %s not found, using fallback responses", e.cfg.DataDir)
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var chunks []Chunk
	docs := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".md" && ext != ".txt" && ext != ".json" {
			continue
		}

		path := filepath.Join(e.cfg.DataDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("[RAG] read failed: %s: %v", path, err)
			continue
		}

		fileChunks := ChunkText(string(data), e.cfg.ChunkSize, e.cfg.ChunkOverlap, entry.Name())
		if len(fileChunks) == 0 {
			continue
		}
		chunks = append(chunks, fileChunks...)
		docs++
	}

	if len(chunks) == 0 {
		log.Printf("[RAG] no documents under %s, using fallback responses", e.cfg.DataDir)
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	return &index{chunks: chunks, vectors: vectors, docs: docs}, nil
}
