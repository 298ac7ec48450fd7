// Package boundary loads the table of named section boundaries that drives
// section splitting.
package boundary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/dgallion1/splitpdf/internal/apperr"
	"github.com/dgallion1/splitpdf/internal/chunker"
	"github.com/spf13/afero"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultFileName is looked up next to the source document when no table is
// given explicitly.
const DefaultFileName = "index.csv"

const (
	titleColumn = "title"
	pageColumn  = "page"
)

// Section is a named division of the document starting at a zero-based page.
type Section struct {
	Name      string
	StartPage int
}

// SectionRange is a Section with its derived half-open page range.
type SectionRange struct {
	Section
	Pages chunker.Range
}

// Empty reports whether the section has no pages inside the document.
func (s SectionRange) Empty() bool {
	return s.Pages.Empty()
}

// Load parses a boundary table. Rows with problems are skipped with a
// warning; the table as a whole fails with ErrParse when the header lacks a
// required column or no usable row remains. The result is stably sorted by
// start page.
func Load(r io.Reader, source string, log *slog.Logger) ([]Section, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("table", source)

	// Strips a UTF-8 BOM and decodes UTF-16 when a BOM says so.
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.Parse(source, "table is empty")
	}
	if err != nil {
		return nil, apperr.Parse(source, "read header: %v", err)
	}

	titleIdx, pageIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case titleColumn:
			if titleIdx < 0 {
				titleIdx = i
			}
		case pageColumn:
			if pageIdx < 0 {
				pageIdx = i
			}
		}
	}
	var missing []string
	if titleIdx < 0 {
		missing = append(missing, titleColumn)
	}
	if pageIdx < 0 {
		missing = append(missing, pageColumn)
	}
	if len(missing) > 0 {
		return nil, apperr.Parse(source, "header %q is missing column(s) %s", strings.Join(header, ","), strings.Join(missing, ", "))
	}

	var sections []Section
	skipped := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				log.Warn("skipping malformed row", "line", perr.Line, "error", perr.Err)
				skipped++
				continue
			}
			return nil, apperr.Parse(source, "read row: %v", err)
		}

		section, reason := parseRow(record, titleIdx, pageIdx)
		if reason != "" {
			line, _ := reader.FieldPos(0)
			log.Warn("skipping row", "line", line, "reason", reason)
			skipped++
			continue
		}
		sections = append(sections, section)
	}

	if len(sections) == 0 {
		return nil, apperr.Parse(source, "no usable rows (%d skipped)", skipped)
	}

	slices.SortStableFunc(sections, func(a, b Section) int {
		return a.StartPage - b.StartPage
	})
	log.Debug("boundary table loaded", "sections", len(sections), "skipped", skipped)
	return sections, nil
}

func parseRow(record []string, titleIdx, pageIdx int) (Section, string) {
	if titleIdx >= len(record) || pageIdx >= len(record) {
		return Section{}, "missing field"
	}
	title := strings.TrimSpace(record[titleIdx])
	if title == "" {
		return Section{}, "empty title"
	}
	raw := strings.TrimSpace(record[pageIdx])
	page, err := strconv.Atoi(raw)
	if err != nil {
		return Section{}, fmt.Sprintf("page %q is not a number", raw)
	}
	if page <= 0 {
		return Section{}, fmt.Sprintf("page %d is not positive", page)
	}
	return Section{Name: title, StartPage: page - 1}, ""
}

// LoadFile loads a boundary table from fsys.
func LoadFile(fsys afero.Fs, path string, log *slog.Logger) ([]Section, error) {
	f, err := fsys.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("load boundary table", path, err)
	}
	if err != nil {
		return nil, apperr.IO("load boundary table", path, err)
	}
	defer f.Close()
	return Load(f, path, log)
}

// Discover returns the path of index.csv next to docPath, if there is one.
func Discover(fsys afero.Fs, docPath string) (string, bool) {
	candidate := filepath.Join(filepath.Dir(docPath), DefaultFileName)
	info, err := fsys.Stat(candidate)
	if err != nil || info.IsDir() {
		return "", false
	}
	return candidate, true
}

// Ranges derives each section's page range. A section ends where the next
// one starts, the last one at totalPages; ends are clamped to totalPages.
func Ranges(sections []Section, totalPages int) []SectionRange {
	out := make([]SectionRange, 0, len(sections))
	for i, s := range sections {
		end := totalPages
		if i+1 < len(sections) {
			end = min(sections[i+1].StartPage, totalPages)
		}
		out = append(out, SectionRange{
			Section: s,
			Pages:   chunker.Range{Start: s.StartPage, End: end},
		})
	}
	return out
}
