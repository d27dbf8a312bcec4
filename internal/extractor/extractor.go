package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extract runs the layout analysis appropriate for the file's format.
// PDFs and DOCX are read directly; plain text and markdown become a single
// page; images go through OCR.
func Extract(filePath string) (*AnalyzeResult, error) {
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".pdf":
		return ExtractPDF(filePath)
	case ".docx":
		return ExtractDOCX(filePath)
	case ".txt", ".md":
		return ExtractText(filePath)
	case ".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff":
		return ExtractImage(filePath)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

// ExtractText reads a plain-text file as a single-page layout result.
func ExtractText(filePath string) (*AnalyzeResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text in %s", filepath.Base(filePath))
	}
	return &AnalyzeResult{
		Content: text,
		Pages:   []Page{{Number: 1, Span: Span{Offset: 0, Length: len(text)}}},
	}, nil
}
