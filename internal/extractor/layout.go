package extractor

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

// Span is a half-open character range [Offset, Offset+Length) into the
// document's full content string.
type Span struct {
	Offset int
	Length int
}

// Page is one physical (or logical) page of a document.
type Page struct {
	Number int
	Span   Span
}

// Cell kinds as reported by layout analysis. Header kinds render as <th>.
const (
	CellKindContent      = "content"
	CellKindColumnHeader = "columnHeader"
	CellKindRowHeader    = "rowHeader"
)

// TableCell is one cell of a detected table.
type TableCell struct {
	RowIndex    int
	ColumnIndex int
	RowSpan     int
	ColumnSpan  int
	Kind        string
	Content     string
}

// Table is a table detected on a page, with the spans it occupies in the
// content string.
type Table struct {
	PageNumber int
	RowCount   int
	Spans      []Span
	Cells      []TableCell
}

// AnalyzeResult is the output of layout analysis: the full content string
// plus the pages and tables that map into it.
type AnalyzeResult struct {
	Content string
	Pages   []Page
	Tables  []Table
}

// PageText is one page of normalized text. Offset is the page's start in
// the concatenation of all normalized pages, not in the raw content.
type PageText struct {
	Index  int    `json:"index"`
	Offset int    `json:"offset"`
	Text   string `json:"text"`
}

// BuildPageMap normalizes a layout result into per-page text. Characters
// covered by a table span are replaced by a single HTML rendering of that
// table, emitted at the position where the table first appears; all other
// characters are copied verbatim. Each page ends with a space so pages
// concatenate without clipping words together.
func BuildPageMap(res *AnalyzeResult) []PageText {
	var pageMap []PageText
	offset := 0

	for _, page := range res.Pages {
		pageStart := page.Span.Offset
		pageEnd := pageStart + page.Span.Length
		if pageEnd > len(res.Content) {
			pageEnd = len(res.Content)
		}
		pageLen := pageEnd - pageStart
		if pageLen < 0 {
			pageLen = 0
		}

		// Tables bound to this page, in document order.
		var pageTables []Table
		for _, t := range res.Tables {
			if t.PageNumber == page.Number {
				pageTables = append(pageTables, t)
			}
		}

		// tableChars[i] holds the index into pageTables of the table
		// covering character i of the page, or -1.
		tableChars := make([]int, pageLen)
		for i := range tableChars {
			tableChars[i] = -1
		}
		for ti, t := range pageTables {
			for _, span := range t.Spans {
				for i := 0; i < span.Length; i++ {
					idx := span.Offset - pageStart + i
					if idx >= 0 && idx < pageLen {
						tableChars[idx] = ti
					}
				}
			}
		}

		var sb strings.Builder
		added := make(map[int]bool)
		for i, ti := range tableChars {
			if ti == -1 {
				sb.WriteByte(res.Content[pageStart+i])
			} else if !added[ti] {
				sb.WriteString(tableToHTML(pageTables[ti]))
				added[ti] = true
			}
		}
		sb.WriteString(" ")

		text := sb.String()
		pageMap = append(pageMap, PageText{
			Index:  len(pageMap),
			Offset: offset,
			Text:   text,
		})
		offset += len(text)
	}

	return pageMap
}

// tableToHTML renders a detected table as a compact HTML table. Header
// cells become <th>; row and column spans carry over when larger than one.
func tableToHTML(t Table) string {
	rows := make([][]TableCell, t.RowCount)
	for _, cell := range t.Cells {
		if cell.RowIndex >= 0 && cell.RowIndex < t.RowCount {
			rows[cell.RowIndex] = append(rows[cell.RowIndex], cell)
		}
	}

	var sb strings.Builder
	sb.WriteString("<table>")
	for _, row := range rows {
		sort.Slice(row, func(i, j int) bool {
			return row[i].ColumnIndex < row[j].ColumnIndex
		})
		sb.WriteString("<tr>")
		for _, cell := range row {
			tag := "td"
			if cell.Kind == CellKindColumnHeader || cell.Kind == CellKindRowHeader {
				tag = "th"
			}
			sb.WriteString("<")
			sb.WriteString(tag)
			if cell.ColumnSpan > 1 {
				fmt.Fprintf(&sb, " colSpan='%d'", cell.ColumnSpan)
			}
			if cell.RowSpan > 1 {
				fmt.Fprintf(&sb, " rowSpan='%d'", cell.RowSpan)
			}
			sb.WriteString(">")
			sb.WriteString(html.EscapeString(cell.Content))
			sb.WriteString("</")
			sb.WriteString(tag)
			sb.WriteString(">")
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</table>")
	return sb.String()
}

// FindPage returns the index of the page containing the given offset into
// the concatenated normalized text. Offsets past the end map to the last
// page.
func FindPage(pageMap []PageText, offset int) int {
	for i := 0; i < len(pageMap)-1; i++ {
		if offset < pageMap[i+1].Offset {
			return i
		}
	}
	if len(pageMap) == 0 {
		return 0
	}
	return len(pageMap) - 1
}
