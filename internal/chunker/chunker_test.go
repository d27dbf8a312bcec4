package chunker

import (
	"fmt"
	"strings"
	"testing"

	"tourchat/internal/extractor"
)

func pagesOf(texts ...string) []extractor.PageText {
	var pageMap []extractor.PageText
	offset := 0
	for i, text := range texts {
		pageMap = append(pageMap, extractor.PageText{Index: i, Offset: offset, Text: text})
		offset += len(text)
	}
	return pageMap
}

// sentences builds text made of n short numbered sentences, so cut points
// always find a terminator nearby and every passage is unique.
func sentences(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "Numbered sentence %d of the test document. ", i)
	}
	return sb.String()
}

// ========== Split ==========

func TestSplit_ShortDocumentSingleSection(t *testing.T) {
	text := "A short document that fits in one section."
	sections := Split(pagesOf(text), "guide.txt", "docs")

	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	s := sections[0]
	if s.Content != text {
		t.Errorf("content = %q", s.Content)
	}
	if s.ID != "guide_txt-0" {
		t.Errorf("id = %q", s.ID)
	}
	if s.SourceFile != "guide.txt" {
		t.Errorf("sourceFile = %q", s.SourceFile)
	}
	if s.Category != "docs" {
		t.Errorf("category = %q", s.Category)
	}
}

func TestSplit_EmptyDocument(t *testing.T) {
	if got := Split(pagesOf(""), "empty.txt", ""); got != nil {
		t.Errorf("expected no sections, got %d", len(got))
	}
}

func TestSplit_CoversAllText(t *testing.T) {
	text := sentences(120) // ~5400 chars
	sections := Split(pagesOf(text), "long.txt", "")

	if len(sections) < 2 {
		t.Fatalf("expected multiple sections, got %d", len(sections))
	}

	// Every character position must be inside at least one section.
	covered := make([]bool, len(text))
	pos := 0
	for _, s := range sections {
		start := strings.Index(text[pos:], s.Content)
		if start == -1 {
			// Overlap means a later section can start before the previous
			// one's end; search from the beginning as a fallback.
			start = strings.Index(text, s.Content)
			if start == -1 {
				t.Fatalf("section content not found in source text: %.60q", s.Content)
			}
		} else {
			start += pos
		}
		for i := start; i < start+len(s.Content); i++ {
			covered[i] = true
		}
		pos = start
	}
	for i, ok := range covered {
		if !ok {
			t.Fatalf("character %d not covered by any section", i)
		}
	}
}

func TestSplit_SectionsOverlap(t *testing.T) {
	text := sentences(120)
	sections := Split(pagesOf(text), "long.txt", "")

	for i := 1; i < len(sections); i++ {
		prev, cur := sections[i-1].Content, sections[i].Content
		if len(cur) < sectionOverlap {
			continue
		}
		head := cur[:sectionOverlap]
		if !strings.Contains(prev, head) {
			t.Errorf("section %d does not overlap its predecessor by %d chars", i, sectionOverlap)
		}
	}
}

func TestSplit_SectionSizeBounded(t *testing.T) {
	text := sentences(120)
	for i, s := range Split(pagesOf(text), "long.txt", "") {
		if len(s.Content) > maxSectionLength+2*sentenceSearchLimit {
			t.Errorf("section %d length %d exceeds bound", i, len(s.Content))
		}
	}
}

func TestSplit_DeterministicIDs(t *testing.T) {
	text := sentences(60)
	first := Split(pagesOf(text), "doc.pdf", "")
	second := Split(pagesOf(text), "doc.pdf", "")

	if len(first) != len(second) {
		t.Fatalf("section counts differ: %d vs %d", len(first), len(second))
	}
	seen := make(map[string]bool)
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("section %d id differs: %q vs %q", i, first[i].ID, second[i].ID)
		}
		if seen[first[i].ID] {
			t.Errorf("duplicate section id %q", first[i].ID)
		}
		seen[first[i].ID] = true
	}
}

func TestSplit_IDCharactersSanitized(t *testing.T) {
	text := sentences(5)
	sections := Split(pagesOf(text), "köök & sauna.pdf", "")
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	for _, r := range sections[0].ID {
		valid := r == '_' || r == '-' ||
			(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !valid {
			t.Errorf("id contains invalid character %q: %s", r, sections[0].ID)
		}
	}
	if strings.HasPrefix(sections[0].ID, "_") {
		t.Errorf("id starts with underscore: %s", sections[0].ID)
	}
}

func TestSplit_UnclosedTableRestartsNextSection(t *testing.T) {
	// A table opening well past the search window and closing past the
	// first cut point gets truncated in the first section; the next
	// section must restart at the table so it is carried whole.
	var table strings.Builder
	table.WriteString("<table><tr>")
	for table.Len() < 880 {
		table.WriteString("<td>cellvalue</td>")
	}
	table.WriteString("</tr></table>")

	var sb strings.Builder
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&sb, "Sentence number %02d pads to forty chars. ", i)
	}
	sb.WriteString(table.String())
	sb.WriteString(sentences(15))

	sections := Split(pagesOf(sb.String()), "plans.txt", "")
	if len(sections) < 3 {
		t.Fatalf("expected at least 3 sections, got %d", len(sections))
	}

	first := sections[0].Content
	if !strings.Contains(first, "<table") || strings.Contains(first, "</table") {
		t.Fatalf("first section does not end inside the table: %.80q", first)
	}

	second := sections[1].Content
	at := strings.Index(second, "<table")
	if at < 0 || at > 1 {
		t.Errorf("second section does not restart at the table (opening tag at %d)", at)
	}
	if !strings.Contains(second, table.String()) {
		t.Error("no section carries the complete table")
	}
}

func TestSplit_GiantTableTerminates(t *testing.T) {
	// A single table far longer than a section has no sentence endings and
	// no closing tag within reach; splitting must still finish and cover
	// the whole text.
	var sb strings.Builder
	sb.WriteString("<table>")
	for i := 0; i < 400; i++ {
		sb.WriteString("<tr><td>row</td></tr>")
	}
	sb.WriteString("</table>")
	text := sb.String()

	sections := Split(pagesOf(text), "tables.pdf", "")
	if len(sections) == 0 {
		t.Fatal("expected sections")
	}
	last := sections[len(sections)-1]
	if !strings.HasSuffix(strings.TrimRight(text, " "), strings.TrimRight(last.Content, " ")) {
		t.Errorf("last section does not reach end of text")
	}
}

func TestSplit_SourcePageForPDF(t *testing.T) {
	pageMap := pagesOf(sentences(30), sentences(30))
	sections := Split(pageMap, "manual.pdf", "")

	if sections[0].SourcePage != "manual-0.pdf" {
		t.Errorf("first section page = %q", sections[0].SourcePage)
	}
	last := sections[len(sections)-1]
	if last.SourcePage != "manual-1.pdf" {
		t.Errorf("last section page = %q", last.SourcePage)
	}
}

func TestSplit_SourcePageForNonPDF(t *testing.T) {
	sections := Split(pagesOf(sentences(5)), "notes.txt", "")
	if sections[0].SourcePage != "notes.txt" {
		t.Errorf("page = %q", sections[0].SourcePage)
	}
}
