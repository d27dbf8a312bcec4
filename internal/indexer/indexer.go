// Package indexer embeds document sections and maintains the keyword and
// vector indexes they are searched from.
package indexer

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"tourchat/internal/chunker"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/sashabaranov/go-openai"
)

// EmbeddingDims is the dimensionality requested from the embedding model.
const EmbeddingDims = 1536

// batchFlushSize is how many index actions accumulate before a flush.
const batchFlushSize = 1000

// Embedder turns texts into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexedSection is one section as stored in the index, with its embedding.
type IndexedSection struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
	SourcePage string    `json:"sourcepage"`
	SourceFile string    `json:"sourcefile"`
	Embedding  []float32 `json:"embedding"`
}

// Index holds the keyword index and the in-memory vector store side by side.
// The two are kept in sync: every indexed section appears in both. Readers
// go through Section/EachSection so searches can overlap ingestion.
type Index struct {
	Keyword  bleve.Index
	Embedder Embedder

	mu       sync.RWMutex // protects sections
	sections map[string]IndexedSection
}

// Open opens the keyword index at dir, creating it with the section mapping
// if it does not exist yet.
func Open(dir string, embedder Embedder) (*Index, error) {
	var kwIndex bleve.Index
	var err error

	if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
		kwIndex, err = bleve.New(dir, buildMapping())
	} else {
		kwIndex, err = bleve.Open(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}

	return &Index{
		Keyword:  kwIndex,
		Embedder: embedder,
		sections: make(map[string]IndexedSection),
	}, nil
}

// Section returns the stored section with the given id.
func (idx *Index) Section(id string) (IndexedSection, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	s, ok := idx.sections[id]
	return s, ok
}

// EachSection calls fn for every stored section, holding the read lock for
// the duration of the walk.
func (idx *Index) EachSection(fn func(s IndexedSection)) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, s := range idx.sections {
		fn(s)
	}
}

// SectionCount reports how many sections are stored.
func (idx *Index) SectionCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.sections)
}

// buildMapping maps section content as analyzed English text and the
// citation fields as exact keywords.
func buildMapping() mapping.IndexMapping {
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = en.AnalyzerName

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	section := bleve.NewDocumentMapping()
	section.AddFieldMappingsAt("content", contentField)
	section.AddFieldMappingsAt("category", keywordField)
	section.AddFieldMappingsAt("sourcepage", keywordField)
	section.AddFieldMappingsAt("sourcefile", keywordField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = section
	return m
}

// IndexSections embeds the given sections and upserts them into both
// indexes. Actions flush in batches; the remainder flushes at the end. The
// first failure aborts the run.
func (idx *Index) IndexSections(ctx context.Context, sections []chunker.Section) error {
	if len(sections) == 0 {
		return nil
	}

	for start := 0; start < len(sections); start += batchFlushSize {
		end := start + batchFlushSize
		if end > len(sections) {
			end = len(sections)
		}
		batch := sections[start:end]

		inputs := make([]string, len(batch))
		for i, s := range batch {
			inputs[i] = embeddingInput(s.Content)
		}
		embeddings, err := idx.Embedder.Embed(ctx, inputs)
		if err != nil {
			return fmt.Errorf("embedding failed: %w", err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("embedding count mismatch: got %d for %d sections", len(embeddings), len(batch))
		}

		kwBatch := idx.Keyword.NewBatch()
		for i, s := range batch {
			if err := kwBatch.Index(s.ID, map[string]interface{}{
				"content":    s.Content,
				"category":   s.Category,
				"sourcepage": s.SourcePage,
				"sourcefile": s.SourceFile,
			}); err != nil {
				return fmt.Errorf("failed to stage section %s: %w", s.ID, err)
			}

			idx.mu.Lock()
			idx.sections[s.ID] = IndexedSection{
				ID:         s.ID,
				Content:    s.Content,
				Category:   s.Category,
				SourcePage: s.SourcePage,
				SourceFile: s.SourceFile,
				Embedding:  embeddings[i],
			}
			idx.mu.Unlock()
		}
		if err := idx.Keyword.Batch(kwBatch); err != nil {
			return fmt.Errorf("keyword index batch failed: %w", err)
		}
		log.Printf("Indexed %d sections, %d succeeded", len(batch), len(batch))
	}

	return nil
}

// embeddingInput flattens section text for the embedding API.
func embeddingInput(content string) string {
	content = strings.ReplaceAll(content, "\r", " ")
	return strings.ReplaceAll(content, "\n", " ")
}

// RemoveFile deletes every indexed section of the named source file from
// both indexes.
func (idx *Index) RemoveFile(sourceFile string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	removed := 0
	for id, s := range idx.sections {
		if s.SourceFile != sourceFile {
			continue
		}
		delete(idx.sections, id)
		if err := idx.Keyword.Delete(id); err != nil {
			log.Printf("Failed to delete %s from keyword index: %v", id, err)
		}
		removed++
	}
	return removed
}

// vectorStore wraps the section map for serialization.
type vectorStore struct {
	Sections map[string]IndexedSection `json:"sections"`
}

// SaveVectors writes the vector store to disk in binary (fast) and JSON
// (fallback) formats. The live map is copied under the lock so ingestion
// can keep writing while the copy is serialized.
func (idx *Index) SaveVectors(path string) error {
	idx.mu.RLock()
	copied := make(map[string]IndexedSection, len(idx.sections))
	for id, s := range idx.sections {
		copied[id] = s
	}
	idx.mu.RUnlock()
	store := vectorStore{Sections: copied}

	gobPath := strings.TrimSuffix(path, ".json") + ".gob"
	if err := saveVectorsBinary(gobPath, store); err != nil {
		log.Printf("Warning: failed to save binary vectors: %v", err)
	} else {
		log.Printf("Saved binary vectors: %s", gobPath)
	}

	data, err := json.Marshal(store)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func saveVectorsBinary(path string, store vectorStore) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(store)
}

// LoadVectors reads the vector store from disk, trying binary first and
// falling back to JSON.
func (idx *Index) LoadVectors(path string) error {
	start := time.Now()

	gobPath := strings.TrimSuffix(path, ".json") + ".gob"
	if _, err := os.Stat(gobPath); err == nil {
		binErr := idx.loadVectorsBinary(gobPath)
		if binErr == nil {
			log.Printf("Loaded %d sections from binary in %v", idx.SectionCount(), time.Since(start))
			return nil
		}
		log.Printf("Binary load failed, falling back to JSON: %v", binErr)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var store vectorStore
	if err := json.Unmarshal(data, &store); err != nil {
		return err
	}
	if store.Sections == nil {
		store.Sections = make(map[string]IndexedSection)
	}
	idx.mu.Lock()
	idx.sections = store.Sections
	idx.mu.Unlock()
	log.Printf("Loaded %d sections from JSON in %v", idx.SectionCount(), time.Since(start))
	return nil
}

func (idx *Index) loadVectorsBinary(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var store vectorStore
	if err := gob.NewDecoder(f).Decode(&store); err != nil {
		return err
	}
	if store.Sections == nil {
		store.Sections = make(map[string]IndexedSection)
	}
	idx.mu.Lock()
	idx.sections = store.Sections
	idx.mu.Unlock()
	return nil
}

// Close closes the keyword index. Must be called before opening a different
// index at the same path.
func (idx *Index) Close() error {
	if idx.Keyword != nil {
		return idx.Keyword.Close()
	}
	return nil
}

// ==========================================
// OpenAI Embedder
// ==========================================

type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{client: openai.NewClient(apiKey), model: model}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: EmbeddingDims,
	})
	if err != nil {
		return nil, err
	}

	var results [][]float32
	for _, d := range resp.Data {
		results = append(results, d.Embedding)
	}
	return results, nil
}
