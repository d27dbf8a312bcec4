package extractor

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDF reads a PDF and produces a layout result with one span per
// page. The Go library yields plain text only, so no tables are detected on
// this path; tabular layout comes in through AnalyzeResult when a richer
// layout-analysis front end supplies one.
func ExtractPDF(filePath string) (*AnalyzeResult, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	var content strings.Builder
	var pages []Page
	numPages := r.NumPage()

	for pageIndex := 1; pageIndex <= numPages; pageIndex++ {
		p := r.Page(pageIndex)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			text = ""
		}

		pages = append(pages, Page{
			Number: pageIndex,
			Span:   Span{Offset: content.Len(), Length: len(text)},
		})
		content.WriteString(text)
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages extracted from pdf")
	}

	return &AnalyzeResult{Content: content.String(), Pages: pages}, nil
}
