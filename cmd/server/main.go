package main

import (
	"log"
	"net/http"
	"os"

	"tourchat/internal/docstore"
	"tourchat/internal/extractor"
	"tourchat/internal/indexer"
	"tourchat/internal/orchestrator"
	"tourchat/internal/retriever"
	"tourchat/internal/state"

	"github.com/joho/godotenv"
)

const (
	dataDir      = "data"
	keywordIndex = "data/search.bleve"
	vectorsPath  = "data/vectors.json"
)

func main() {
	_ = godotenv.Load()

	openAIKey := os.Getenv("OPENAI_API_KEY")
	chatModel := os.Getenv("CHAT_MODEL")
	userName := os.Getenv("USER_NAME")

	// Override with saved settings if they exist
	if saved := loadSavedSettings(); saved != nil {
		log.Printf("Loading saved settings from %s", settingsFile)
		if saved.OpenAIKey != "" {
			openAIKey = saved.OpenAIKey
		}
		if saved.ChatModel != "" {
			chatModel = saved.ChatModel
		}
		if saved.UserName != "" {
			userName = saved.UserName
		}
	}

	if openAIKey == "" {
		log.Fatal("OPENAI_API_KEY is required (set it in .env or the environment)")
	}
	if userName == "" {
		userName = "Guest"
	}

	tesseractOk := extractor.DetectTesseract()

	docs, err := docstore.NewStore(dataDir)
	if err != nil {
		log.Fatalf("Failed to init document store: %v", err)
	}

	embedder := indexer.NewOpenAIEmbedder(openAIKey, "")
	idx, err := indexer.Open(keywordIndex, embedder)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	if _, statErr := os.Stat(vectorsPath); statErr == nil {
		if err := idx.LoadVectors(vectorsPath); err != nil {
			log.Printf("Warning: could not load vectors: %v", err)
		}
	}

	retr := retriever.New(idx)
	profiles := state.NewProfileStore(userName)
	conversations := state.NewStore(0)

	provider, err := orchestrator.NewProvider("openai", openAIKey, chatModel)
	if err != nil {
		log.Fatalf("Failed to create completion provider: %v", err)
	}

	srv := &Server{
		docs:          docs,
		index:         idx,
		retriever:     retr,
		embedder:      embedder,
		orchestrator:  orchestrator.New(provider, embedder, retr, profiles, conversations),
		profiles:      profiles,
		conversations: conversations,
		openAIKey:     openAIKey,
		chatModel:     chatModel,
		vectorsPath:   vectorsPath,
		tesseractOk:   tesseractOk,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/chat", srv.handleChat)
	mux.HandleFunc("/api/chat/ws", srv.handleChatWS)
	mux.HandleFunc("/api/documents", srv.handleDocuments)
	mux.HandleFunc("/api/user", srv.handleUser)
	mux.HandleFunc("/api/user-request/", srv.handleUserRequest)
	mux.HandleFunc("/api/settings", srv.handleSettings)

	// Static files
	mux.Handle("/", http.FileServer(http.Dir("web")))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("TourChat server starting on http://localhost:%s (user: %s)", port, userName)
	if err := http.ListenAndServe(":"+port, corsMiddleware(mux)); err != nil {
		log.Fatal(err)
	}
}
