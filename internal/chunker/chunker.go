// Package chunker splits normalized document text into overlapping sections
// sized for embedding and retrieval.
package chunker

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"tourchat/internal/extractor"
)

const (
	// maxSectionLength is the target section size in characters.
	maxSectionLength = 1000
	// sentenceSearchLimit bounds how far past the target size the cut
	// point may move while looking for a sentence ending.
	sentenceSearchLimit = 100
	// sectionOverlap is the minimum number of characters shared between
	// consecutive sections.
	sectionOverlap = 100
)

var (
	sentenceEndings = ".!?"
	wordBreaks      = ",;: ()[]{}\t\n"

	idCharPattern = regexp.MustCompile(`[^0-9a-zA-Z_-]`)
)

// Section is one chunk of a document ready for indexing.
type Section struct {
	ID         string
	Content    string
	SourcePage string
	SourceFile string
	Category   string
}

// Split cuts the normalized pages of one document into overlapping
// sections. Cut points prefer sentence endings, then word breaks, so that
// sections read as coherent passages. A section whose tail opens a table
// without closing it restarts the next section at the table so the table
// is never split from its opening tag. A document that fits in a single
// section yields exactly one, even when shorter than the overlap.
func Split(pageMap []extractor.PageText, blobName, category string) []Section {
	var allTextBuilder strings.Builder
	for _, p := range pageMap {
		allTextBuilder.WriteString(p.Text)
	}
	allText := allTextBuilder.String()
	length := len(allText)

	makeSection := func(start int, content string) Section {
		return Section{
			ID:         sectionID(blobName, start),
			Content:    content,
			SourcePage: sourcePageName(blobName, extractor.FindPage(pageMap, start)),
			SourceFile: blobName,
			Category:   category,
		}
	}

	if length <= maxSectionLength {
		if length == 0 {
			return nil
		}
		return []Section{makeSection(0, allText)}
	}

	var sections []Section
	start := 0
	end := length

	for start+sectionOverlap < length {
		lastWord := -1
		end = start + maxSectionLength

		if end > length {
			end = length
		} else {
			// Walk forward looking for a sentence ending, remembering
			// the last word break as a fallback.
			for end < length && end-start-maxSectionLength < sentenceSearchLimit &&
				!strings.ContainsRune(sentenceEndings, rune(allText[end])) {
				if strings.ContainsRune(wordBreaks, rune(allText[end])) {
					lastWord = end
				}
				end++
			}
			if end < length && !strings.ContainsRune(sentenceEndings, rune(allText[end])) && lastWord > 0 {
				end = lastWord
			}
		}
		if end < length {
			end++
		}

		// Walk backward from the start looking for a sentence ending so
		// the section begins at a natural point.
		lastWord = -1
		for start > 0 && start > end-maxSectionLength-2*sentenceSearchLimit &&
			!strings.ContainsRune(sentenceEndings, rune(allText[start])) {
			if strings.ContainsRune(wordBreaks, rune(allText[start])) {
				lastWord = start
			}
			start--
		}
		if !strings.ContainsRune(sentenceEndings, rune(allText[start])) && lastWord > 0 {
			start = lastWord
		}
		if start > 0 {
			start++
		}

		sectionText := allText[start:end]
		sections = append(sections, makeSection(start, sectionText))

		lastTableStart := strings.LastIndex(sectionText, "<table")
		if lastTableStart > 2*sentenceSearchLimit &&
			lastTableStart > strings.LastIndex(sectionText, "</table") {
			// Unclosed table at the tail: restart the next section at the
			// table's opening tag.
			next := start + lastTableStart
			if end-sectionOverlap < next {
				next = end - sectionOverlap
			}
			start = next
		} else {
			start = end - sectionOverlap
		}
	}

	if start+sectionOverlap < end {
		sections = append(sections, makeSection(start, allText[start:end]))
	}

	return sections
}

// sectionID builds a deterministic index key from the document name and the
// section's start offset, restricted to characters the index accepts.
func sectionID(blobName string, start int) string {
	id := idCharPattern.ReplaceAllString(fmt.Sprintf("%s-%d", blobName, start), "_")
	return strings.TrimLeft(id, "_")
}

// sourcePageName names the page a section cites. PDF pages get a page
// suffix so citations point at the exact page; other formats cite the file.
func sourcePageName(blobName string, page int) string {
	if strings.EqualFold(filepath.Ext(blobName), ".pdf") {
		base := strings.TrimSuffix(filepath.Base(blobName), filepath.Ext(blobName))
		return fmt.Sprintf("%s-%d.pdf", base, page)
	}
	return filepath.Base(blobName)
}
