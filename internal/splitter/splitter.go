// Package splitter drives the chunker over named sections or over a whole
// document and persists every chunk as its own output file.
package splitter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dgallion1/splitpdf/internal/boundary"
	"github.com/dgallion1/splitpdf/internal/chunker"
	"github.com/dustin/go-humanize"
)

// Document is the backend capability the splitter needs. Measure sizes the
// pages exactly as Persist would write them with the same bookmark.
type Document interface {
	Measure(pages []int, bookmark string) (int64, error)
	PageCount() int
	Persist(pages []int, dst string, bookmark string) error
}

// Options controls output naming and placement.
type Options struct {
	OutputDir  string
	MaxNameLen int
	Bookmarks  bool // add a bookmark with the section name to section outputs

	// OnOutput, when set, is called after each output is written.
	OnOutput func(Output)
}

// Output describes one written file.
type Output struct {
	Path      string        `json:"path"`
	Section   string        `json:"section,omitempty"`
	Part      int           `json:"part"`
	Pages     chunker.Range `json:"-"`
	FirstPage int           `json:"first_page"` // 1-based
	LastPage  int           `json:"last_page"`  // 1-based, inclusive
	Size      int64         `json:"size"`
	Oversized bool          `json:"oversized,omitempty"`
}

// Skip records a section that produced no output.
type Skip struct {
	Section string `json:"section"`
	Reason  string `json:"reason"`
}

// Result collects what a split produced.
type Result struct {
	Outputs []Output `json:"outputs"`
	Skipped []Skip   `json:"skipped"`
}

// Splitter persists size-bounded chunks of a document.
type Splitter struct {
	doc   Document
	cfg   chunker.Config
	opts  Options
	namer *Namer
	log   *slog.Logger
}

// New creates a Splitter for one run over doc.
func New(doc Document, cfg chunker.Config, opts Options, log *slog.Logger) *Splitter {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Splitter{
		doc:   doc,
		cfg:   chunker.New(nil, cfg, log).Config(),
		opts:  opts,
		namer: NewNamer(opts.MaxNameLen),
		log:   log,
	}
}

// SplitSections splits every section of the boundary table into outputs
// named after the section. Sections that fall outside the document are
// skipped with a warning.
func (s *Splitter) SplitSections(ctx context.Context, sections []boundary.Section) (Result, error) {
	total := s.doc.PageCount()
	var res Result

	for _, sec := range boundary.Ranges(sections, total) {
		log := s.log.With("section", sec.Name)

		var reason string
		switch {
		case sec.StartPage >= total:
			reason = fmt.Sprintf("starts at page %d but the document has %d pages", sec.StartPage+1, total)
		case sec.Empty():
			reason = "no pages before the next section"
		}
		if reason != "" {
			log.Warn("skipping section", "reason", reason)
			res.Skipped = append(res.Skipped, Skip{Section: sec.Name, Reason: reason})
			continue
		}

		base := s.namer.Base(sec.Name)
		bookmark := ""
		if s.opts.Bookmarks {
			bookmark = sec.Name
		}
		log.Info("splitting section", "pages", sec.Pages.String(), "base", base)
		if err := s.split(ctx, sec.Pages, base, sec.Name, bookmark, &res, log); err != nil {
			return res, err
		}
	}
	return res, nil
}

// SplitWhole splits the entire document into outputs named after baseName.
func (s *Splitter) SplitWhole(ctx context.Context, baseName string) (Result, error) {
	var res Result
	r := chunker.Range{Start: 0, End: s.doc.PageCount()}
	base := s.namer.Base(baseName)
	s.log.Info("splitting whole document", "pages", r.String(), "base", base)
	err := s.split(ctx, r, base, "", "", &res, s.log)
	return res, err
}

func (s *Splitter) split(ctx context.Context, r chunker.Range, base, section, bookmark string, res *Result, log *slog.Logger) error {
	// Chunks are yielded as soon as they close, so every measurement is for
	// the part after the last one received.
	received := 0
	measure := chunker.MeasureFunc(func(pages []int) (int64, error) {
		return s.doc.Measure(pages, partBookmark(bookmark, received+1))
	})
	budget := s.cfg.Budget

	for ch, err := range chunker.New(measure, s.cfg, log).Chunks(r) {
		if err != nil {
			return fmt.Errorf("chunk %s: %w", r, err)
		}
		received = ch.Part
		if err := ctx.Err(); err != nil {
			return err
		}
		if ch.Pages.Empty() {
			log.Warn("skipping empty chunk", "part", ch.Part)
			continue
		}

		name := PartFileName(base, ch.Part)
		path := filepath.Join(s.opts.OutputDir, name)
		if err := s.doc.Persist(ch.Pages.Pages(), path, partBookmark(bookmark, ch.Part)); err != nil {
			return err
		}

		out := Output{
			Path:      path,
			Section:   section,
			Part:      ch.Part,
			Pages:     ch.Pages,
			FirstPage: ch.Pages.Start + 1,
			LastPage:  ch.Pages.End,
			Size:      ch.Size,
			Oversized: ch.Oversized(budget),
		}
		res.Outputs = append(res.Outputs, out)
		if s.opts.OnOutput != nil {
			s.opts.OnOutput(out)
		}
		log.Info("output written",
			"file", name,
			"pages", ch.Pages.String(),
			"size", humanize.IBytes(uint64(ch.Size)),
		)
	}
	return nil
}

// partBookmark is the outline title of one part: the section title for the
// first part, with the part number appended for later ones.
func partBookmark(bookmark string, part int) string {
	if bookmark == "" || part <= 1 {
		return bookmark
	}
	return fmt.Sprintf("%s (part %d)", bookmark, part)
}
