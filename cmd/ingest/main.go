package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"tourchat/internal/chunker"
	"tourchat/internal/extractor"
	"tourchat/internal/indexer"

	"github.com/joho/godotenv"
)

func main() {
	docsDir := flag.String("docs", "corpus", "directory of documents to ingest")
	indexDir := flag.String("index", "data/search.bleve", "keyword index directory")
	vectorsPath := flag.String("vectors", "data/vectors.json", "vector store path")
	category := flag.String("category", "", "category tag for all ingested sections")
	flag.Parse()

	_ = godotenv.Load() // Ignore error if .env doesn't exist, we check os.Getenv below

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	extractor.DetectTesseract()

	index, err := indexer.Open(*indexDir, indexer.NewOpenAIEmbedder(apiKey, ""))
	if err != nil {
		log.Fatalf("Failed to initialize index: %v", err)
	}
	defer index.Close()

	if _, statErr := os.Stat(*vectorsPath); statErr == nil {
		if err := index.LoadVectors(*vectorsPath); err != nil {
			log.Printf("Warning: could not load existing vectors: %v", err)
		}
	}

	files, err := os.ReadDir(*docsDir)
	if err != nil {
		log.Fatalf("Failed to read documents directory: %v", err)
	}

	start := time.Now()
	total := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		path := filepath.Join(*docsDir, file.Name())

		fmt.Printf("Processing %s...\n", file.Name())

		res, err := extractor.Extract(path)
		if err != nil {
			log.Printf("Failed to extract %s: %v", file.Name(), err)
			continue
		}

		pageMap := extractor.BuildPageMap(res)
		sections := chunker.Split(pageMap, file.Name(), *category)
		fmt.Printf("Split %s into %d sections (%d pages)\n", file.Name(), len(sections), len(pageMap))

		index.RemoveFile(file.Name())
		if err := index.IndexSections(context.Background(), sections); err != nil {
			log.Printf("Failed to index %s: %v", file.Name(), err)
			continue
		}
		total += len(sections)
	}

	fmt.Printf("Finished ingestion in %v (%d sections). Saving vector index...\n", time.Since(start), total)
	if err := index.SaveVectors(*vectorsPath); err != nil {
		log.Fatalf("Failed to save vectors: %v", err)
	}
	fmt.Println("Ingestion complete.")
}
