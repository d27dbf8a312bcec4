// Package docstore keeps uploaded document files on disk along with their
// processing status.
package docstore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Processing status of an uploaded document.
const (
	StatusNotProcessed = "notprocessed"
	StatusSucceeded    = "succeeded"
	StatusFailed       = "failed"
)

// Document describes one stored file.
type Document struct {
	Name         string    `json:"name"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	Status       string    `json:"status"`
}

// Store persists uploaded files under files/ and their extracted page text
// under corpus/, with statuses in meta.json.
type Store struct {
	mu       sync.RWMutex
	dataDir  string
	metaPath string
	docs     map[string]Document
}

// NewStore initialises the store, creating directories and loading any
// existing metadata.
func NewStore(dataDir string) (*Store, error) {
	for _, d := range []string{
		filepath.Join(dataDir, "files"),
		filepath.Join(dataDir, "corpus"),
	} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	s := &Store{
		dataDir:  dataDir,
		metaPath: filepath.Join(dataDir, "meta.json"),
		docs:     make(map[string]Document),
	}

	if data, err := os.ReadFile(s.metaPath); err == nil {
		var docs []Document
		if err := json.Unmarshal(data, &docs); err == nil {
			for _, d := range docs {
				s.docs[d.Name] = d
			}
		}
	}

	return s, nil
}

func (s *Store) save() error {
	docs := s.list()
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath, data, 0644)
}

// Put stores an uploaded file. Files already present are skipped; the
// returned bool says whether the file was written.
func (s *Store) Put(name string, r io.Reader) (bool, error) {
	name = filepath.Base(name)
	path := s.FilePath(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if info, err := os.Stat(path); err == nil {
		if _, ok := s.docs[name]; !ok {
			s.docs[name] = Document{
				Name:         name,
				ContentType:  contentTypeFor(name),
				Size:         info.Size(),
				LastModified: info.ModTime(),
				Status:       StatusNotProcessed,
			}
			return false, s.save()
		}
		return false, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("failed to store %s: %w", name, err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return false, fmt.Errorf("failed to store %s: %w", name, err)
	}

	s.docs[name] = Document{
		Name:         name,
		ContentType:  contentTypeFor(name),
		Size:         size,
		LastModified: time.Now(),
		Status:       StatusNotProcessed,
	}
	return true, s.save()
}

// FilePath returns where the named file lives on disk.
func (s *Store) FilePath(name string) string {
	return filepath.Join(s.dataDir, "files", filepath.Base(name))
}

// PutCorpusPage writes one extracted page of a document into the corpus
// directory, named {base}-{page}.txt.
func (s *Store) PutCorpusPage(base string, page int, text string) error {
	name := fmt.Sprintf("%s-%d.txt", strings.TrimSuffix(base, filepath.Ext(base)), page)
	path := filepath.Join(s.dataDir, "corpus", name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(text), 0644)
}

// SetStatus records a document's processing outcome.
func (s *Store) SetStatus(name, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[name]
	if !ok {
		return fmt.Errorf("document not found: %s", name)
	}
	doc.Status = status
	doc.LastModified = time.Now()
	s.docs[name] = doc
	return s.save()
}

// Get returns one document's metadata.
func (s *Store) Get(name string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[name]
	return doc, ok
}

// List returns all stored documents sorted by name.
func (s *Store) List() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list()
}

func (s *Store) list() []Document {
	docs := make([]Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
