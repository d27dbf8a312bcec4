package extractor

import (
	"fmt"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// DOCX files have no physical page breaks, so paragraphs are grouped into
// ~3000-character logical pages to produce meaningful page numbers.
const docxCharsPerPage = 3000

// ExtractDOCX extracts text from a DOCX file as a layout result with
// logical pages.
func ExtractDOCX(filePath string) (*AnalyzeResult, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read docx: %w", err)
	}
	defer r.Close()

	doc := r.Editable()
	paragraphs := splitDOCXParagraphs(doc.GetContent())

	var content strings.Builder
	var pages []Page
	var pageBuf strings.Builder

	flush := func() {
		if pageBuf.Len() == 0 {
			return
		}
		text := pageBuf.String()
		pages = append(pages, Page{
			Number: len(pages) + 1,
			Span:   Span{Offset: content.Len(), Length: len(text)},
		})
		content.WriteString(text)
		pageBuf.Reset()
	}

	for _, para := range paragraphs {
		text := strings.TrimSpace(para)
		if text == "" {
			continue
		}
		if pageBuf.Len() > 0 && pageBuf.Len()+len(text) > docxCharsPerPage {
			flush()
		}
		if pageBuf.Len() > 0 {
			pageBuf.WriteString("\n")
		}
		pageBuf.WriteString(text)
	}
	flush()

	if len(pages) == 0 {
		return nil, fmt.Errorf("no text extracted from docx")
	}

	return &AnalyzeResult{Content: content.String(), Pages: pages}, nil
}

// splitDOCXParagraphs splits DOCX XML content by <w:p> paragraph tags and
// strips all XML tags from each paragraph, returning clean text.
func splitDOCXParagraphs(xmlStr string) []string {
	parts := strings.Split(xmlStr, "<w:p")
	var paragraphs []string

	for _, part := range parts {
		cleaned := strings.TrimSpace(stripTags(part))
		if cleaned != "" {
			paragraphs = append(paragraphs, cleaned)
		}
	}

	return paragraphs
}

func stripTags(xmlStr string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range xmlStr {
		if r == '<' {
			inTag = true
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
