package main

import (
	"context"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"

	"tourchat/internal/chunker"
	"tourchat/internal/docstore"
	"tourchat/internal/extractor"
)

// UploadDocumentsResponse reports which files an upload stored. On failure
// Error is set and UploadedFiles holds the files that made it in before the
// failure.
type UploadDocumentsResponse struct {
	UploadedFiles []string `json:"uploadedFiles"`
	Error         string   `json:"error,omitempty"`
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonResp(w, s.docs.List())
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleUpload stores the uploaded files and indexes them synchronously, so
// a successful response means the documents are searchable.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Parse multipart (max 100MB)
	if err := r.ParseMultipartForm(100 << 20); err != nil {
		jsonErr(w, "Failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		jsonErr(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	resp := UploadDocumentsResponse{UploadedFiles: []string{}}
	for _, fh := range files {
		if err := s.ingestUpload(r.Context(), fh); err != nil {
			log.Printf("Failed to process %s: %v", fh.Filename, err)
			resp.Error = fmt.Sprintf("%s: %v", fh.Filename, err)
			jsonResp(w, resp)
			return
		}
		resp.UploadedFiles = append(resp.UploadedFiles, fh.Filename)
	}

	if err := s.index.SaveVectors(s.vectorsPath); err != nil {
		log.Printf("Failed to save vectors: %v", err)
	}

	jsonResp(w, resp)
}

// ingestUpload runs the full pipeline for one uploaded file: store,
// extract, normalize, chunk, embed, index.
func (s *Server) ingestUpload(ctx context.Context, fh *multipart.FileHeader) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	defer src.Close()

	name := fh.Filename
	written, err := s.docs.Put(name, src)
	if err != nil {
		return err
	}
	if !written {
		log.Printf("Document %s already stored, reprocessing", name)
	}

	if err := s.processDocument(ctx, name); err != nil {
		_ = s.docs.SetStatus(name, docstore.StatusFailed)
		return err
	}
	return s.docs.SetStatus(name, docstore.StatusSucceeded)
}

// processDocument extracts, normalizes, chunks, and indexes one stored
// document.
func (s *Server) processDocument(ctx context.Context, name string) error {
	res, err := extractor.Extract(s.docs.FilePath(name))
	if err != nil {
		return err
	}

	pageMap := extractor.BuildPageMap(res)
	for _, page := range pageMap {
		if err := s.docs.PutCorpusPage(name, page.Index, page.Text); err != nil {
			log.Printf("Failed to write corpus page %d of %s: %v", page.Index, name, err)
		}
	}

	sections := chunker.Split(pageMap, name, "")
	log.Printf("Split %s into %d sections", name, len(sections))

	// Replace any previously indexed sections of the same file.
	s.index.RemoveFile(name)
	return s.index.IndexSections(ctx, sections)
}
