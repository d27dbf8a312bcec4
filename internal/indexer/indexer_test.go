package indexer

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tourchat/internal/chunker"
)

// fakeEmbedder returns deterministic vectors and records how it was called.
type fakeEmbedder struct {
	calls   int
	inputs  [][]string
	failure error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.inputs = append(f.inputs, texts)
	if f.failure != nil {
		return nil, f.failure
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, EmbeddingDims)
		vec[0] = float32(len(texts[i]))
		out[i] = vec
	}
	return out, nil
}

func openTestIndex(t *testing.T, embedder Embedder) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "test.bleve"), embedder)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

// ========== IndexSections ==========

func TestIndexSections_SingleBatch(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := openTestIndex(t, emb)

	sections := []chunker.Section{
		{ID: "doc_pdf-0", Content: "First section.", SourcePage: "doc-0.pdf", SourceFile: "doc.pdf"},
		{ID: "doc_pdf-900", Content: "Second section.", SourcePage: "doc-1.pdf", SourceFile: "doc.pdf"},
	}
	if err := idx.IndexSections(context.Background(), sections); err != nil {
		t.Fatalf("IndexSections failed: %v", err)
	}

	if emb.calls != 1 {
		t.Errorf("expected 1 embed call, got %d", emb.calls)
	}
	if idx.SectionCount() != 2 {
		t.Fatalf("expected 2 stored sections, got %d", idx.SectionCount())
	}
	s, ok := idx.Section("doc_pdf-0")
	if !ok {
		t.Fatal("section doc_pdf-0 not stored")
	}
	if len(s.Embedding) != EmbeddingDims {
		t.Errorf("embedding dims = %d, want %d", len(s.Embedding), EmbeddingDims)
	}

	count, err := idx.Keyword.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("keyword index has %d docs, want 2", count)
	}
}

func TestIndexSections_FlattensNewlinesForEmbedding(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := openTestIndex(t, emb)

	sections := []chunker.Section{
		{ID: "s1", Content: "line one\r\nline two\nline three", SourceFile: "a.txt"},
	}
	if err := idx.IndexSections(context.Background(), sections); err != nil {
		t.Fatalf("IndexSections failed: %v", err)
	}

	got := emb.inputs[0][0]
	if strings.ContainsAny(got, "\r\n") {
		t.Errorf("embedding input still has line breaks: %q", got)
	}
	// Stored content keeps its original line breaks.
	if stored, _ := idx.Section("s1"); stored.Content != sections[0].Content {
		t.Errorf("stored content altered: %q", stored.Content)
	}
}

func TestIndexSections_FlushesInBatches(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := openTestIndex(t, emb)

	var logged bytes.Buffer
	log.SetOutput(&logged)
	defer log.SetOutput(os.Stderr)

	sections := make([]chunker.Section, batchFlushSize+3)
	for i := range sections {
		sections[i] = chunker.Section{
			ID:         fmt.Sprintf("big_txt-%d", i),
			Content:    fmt.Sprintf("section %d", i),
			SourceFile: "big.txt",
		}
	}
	if err := idx.IndexSections(context.Background(), sections); err != nil {
		t.Fatalf("IndexSections failed: %v", err)
	}

	if emb.calls != 2 {
		t.Errorf("expected 2 embed calls (full batch + remainder), got %d", emb.calls)
	}
	if len(emb.inputs[0]) != batchFlushSize {
		t.Errorf("first batch size = %d, want %d", len(emb.inputs[0]), batchFlushSize)
	}
	if len(emb.inputs[1]) != 3 {
		t.Errorf("remainder batch size = %d, want 3", len(emb.inputs[1]))
	}
	if idx.SectionCount() != batchFlushSize+3 {
		t.Errorf("stored %d sections, want %d", idx.SectionCount(), batchFlushSize+3)
	}

	// Each flush logs its own batch size, not the grand total.
	out := logged.String()
	if !strings.Contains(out, fmt.Sprintf("Indexed %d sections", batchFlushSize)) {
		t.Errorf("full batch flush not logged: %q", out)
	}
	if !strings.Contains(out, "Indexed 3 sections") {
		t.Errorf("remainder flush not logged: %q", out)
	}
}

func TestIndexSections_EmbedFailureAborts(t *testing.T) {
	emb := &fakeEmbedder{failure: fmt.Errorf("rate limited")}
	idx := openTestIndex(t, emb)

	err := idx.IndexSections(context.Background(), []chunker.Section{
		{ID: "s1", Content: "text", SourceFile: "a.txt"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if idx.SectionCount() != 0 {
		t.Errorf("failed run stored %d sections", idx.SectionCount())
	}
}

func TestIndexSections_EmptyInput(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := openTestIndex(t, emb)

	if err := idx.IndexSections(context.Background(), nil); err != nil {
		t.Fatalf("IndexSections(nil) = %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called for empty input")
	}
}

// ========== RemoveFile ==========

func TestRemoveFile(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := openTestIndex(t, emb)

	sections := []chunker.Section{
		{ID: "a_txt-0", Content: "keep", SourceFile: "a.txt"},
		{ID: "b_txt-0", Content: "drop", SourceFile: "b.txt"},
		{ID: "b_txt-900", Content: "drop too", SourceFile: "b.txt"},
	}
	if err := idx.IndexSections(context.Background(), sections); err != nil {
		t.Fatalf("IndexSections failed: %v", err)
	}

	if removed := idx.RemoveFile("b.txt"); removed != 2 {
		t.Errorf("removed %d sections, want 2", removed)
	}
	if _, ok := idx.Section("a_txt-0"); !ok {
		t.Error("unrelated section removed")
	}
	if idx.SectionCount() != 1 {
		t.Errorf("expected 1 remaining section, got %d", idx.SectionCount())
	}
}

// ========== Concurrency ==========

func TestSaveVectors_DuringIndexing(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := openTestIndex(t, emb)
	path := filepath.Join(t.TempDir(), "vectors.json")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 25; i++ {
			err := idx.IndexSections(context.Background(), []chunker.Section{
				{ID: fmt.Sprintf("live_txt-%d", i), Content: fmt.Sprintf("live section %d", i), SourceFile: "live.txt"},
			})
			if err != nil {
				t.Errorf("IndexSections failed: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 25; i++ {
		if err := idx.SaveVectors(path); err != nil {
			t.Fatalf("SaveVectors failed: %v", err)
		}
	}
	<-done

	if err := idx.SaveVectors(path); err != nil {
		t.Fatalf("final SaveVectors failed: %v", err)
	}
	fresh := &Index{sections: make(map[string]IndexedSection)}
	if err := fresh.LoadVectors(path); err != nil {
		t.Fatalf("LoadVectors failed: %v", err)
	}
	if fresh.SectionCount() != 25 {
		t.Errorf("reloaded %d sections, want 25", fresh.SectionCount())
	}
}

// ========== Save / Load ==========

func TestSaveAndLoadVectors(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := openTestIndex(t, emb)

	sections := []chunker.Section{
		{ID: "a_txt-0", Content: "persisted section", SourcePage: "a.txt", SourceFile: "a.txt"},
	}
	if err := idx.IndexSections(context.Background(), sections); err != nil {
		t.Fatalf("IndexSections failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "vectors.json")
	if err := idx.SaveVectors(path); err != nil {
		t.Fatalf("SaveVectors failed: %v", err)
	}

	fresh := &Index{sections: make(map[string]IndexedSection)}
	if err := fresh.LoadVectors(path); err != nil {
		t.Fatalf("LoadVectors failed: %v", err)
	}
	got, ok := fresh.Section("a_txt-0")
	if !ok {
		t.Fatal("section missing after reload")
	}
	if got.Content != "persisted section" || len(got.Embedding) != EmbeddingDims {
		t.Errorf("reloaded section corrupted: %+v", got)
	}
}
