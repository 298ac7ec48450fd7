package backend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/splitpdf/internal/apperr"
	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/spf13/afero"
)

func init() {
	// Keep pdfcpu from creating a config directory in the user's home.
	api.DisableConfigDir()
}

// PDF is a source document held in memory for the duration of a run.
// Pages are addressed by zero-based index.
type PDF struct {
	fs    afero.Fs
	path  string
	data  []byte
	pages int
}

// Open reads and validates the PDF at path.
func Open(fsys afero.Fs, path string) (*PDF, error) {
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("open document", path, err)
	}
	if err != nil {
		return nil, apperr.IO("open document", path, err)
	}

	n, err := api.PageCount(bytes.NewReader(data), newConf())
	if err != nil {
		return nil, apperr.CorruptDocument(path, err)
	}
	if n <= 0 {
		return nil, apperr.CorruptDocument(path, errors.New("document has no pages"))
	}

	return &PDF{fs: fsys, path: path, data: data, pages: n}, nil
}

// Path returns the path the document was opened from.
func (d *PDF) Path() string {
	return d.path
}

// Size returns the size of the source file in bytes.
func (d *PDF) Size() int64 {
	return int64(len(d.data))
}

// PageCount returns the number of pages in the document.
func (d *PDF) PageCount() int {
	return d.pages
}

// Measure serializes pages, with the bookmark when one is given, into a
// counting writer and returns the byte length. It sizes exactly what Persist
// would write. Nothing is kept once it returns.
func (d *PDF) Measure(pages []int, bookmark string) (int64, error) {
	var cw countingWriter
	if err := d.render(pages, bookmark, &cw); err != nil {
		return 0, err
	}
	return cw.n, nil
}

// Persist serializes pages and writes them to dst. A non-empty bookmark
// adds an outline entry with that title pointing at the first page.
func (d *PDF) Persist(pages []int, dst string, bookmark string) error {
	var buf bytes.Buffer
	if err := d.render(pages, bookmark, &buf); err != nil {
		return apperr.IO("write output", dst, err)
	}
	out := buf.Bytes()

	if dir := filepath.Dir(dst); dir != "." {
		if err := d.fs.MkdirAll(dir, 0o755); err != nil {
			return apperr.IO("write output", dst, err)
		}
	}
	if err := afero.WriteFile(d.fs, dst, out, 0o644); err != nil {
		return apperr.IO("write output", dst, err)
	}
	return nil
}

func (d *PDF) render(pages []int, bookmark string, w io.Writer) error {
	sel, err := d.selection(pages)
	if err != nil {
		return err
	}
	if bookmark == "" {
		if err := api.Trim(bytes.NewReader(d.data), w, sel, newConf()); err != nil {
			return fmt.Errorf("serialize %s: %w", strings.Join(sel, ","), err)
		}
		return nil
	}

	var trimmed bytes.Buffer
	if err := api.Trim(bytes.NewReader(d.data), &trimmed, sel, newConf()); err != nil {
		return fmt.Errorf("serialize %s: %w", strings.Join(sel, ","), err)
	}
	bms := []pdfcpu.Bookmark{{Title: bookmark, PageFrom: 1}}
	if err := api.AddBookmarks(bytes.NewReader(trimmed.Bytes()), w, bms, true, newConf()); err != nil {
		return fmt.Errorf("add bookmark: %w", err)
	}
	return nil
}

// PageTexts returns a whitespace-collapsed plain text preview of every
// page, cut to maxRunes. Pages without extractable text yield "".
func (d *PDF) PageTexts(maxRunes int) ([]string, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(d.data), int64(len(d.data)))
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}

	texts := make([]string, reader.NumPage())
	for i := range texts {
		page := reader.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		texts[i] = preview(text, maxRunes)
	}
	return texts, nil
}

func preview(text string, maxRunes int) string {
	text = strings.Join(strings.Fields(text), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	return string([]rune(text)[:maxRunes]) + "…"
}

// selection converts ordered zero-based page indices into pdfcpu page
// selections, collapsing consecutive pages into one-based ranges.
func (d *PDF) selection(pages []int) ([]string, error) {
	if len(pages) == 0 {
		return nil, errors.New("no pages selected")
	}
	var sel []string
	for i := 0; i < len(pages); {
		if pages[i] < 0 || pages[i] >= d.pages {
			return nil, fmt.Errorf("page index %d out of range (document has %d pages)", pages[i], d.pages)
		}
		j := i
		for j+1 < len(pages) && pages[j+1] == pages[j]+1 && pages[j+1] < d.pages {
			j++
		}
		if i == j {
			sel = append(sel, strconv.Itoa(pages[i]+1))
		} else {
			sel = append(sel, fmt.Sprintf("%d-%d", pages[i]+1, pages[j]+1))
		}
		i = j + 1
	}
	return sel, nil
}

func newConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
