package chunker

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/dgallion1/splitpdf/internal/apperr"
	"github.com/dustin/go-humanize"
)

// Range is a half-open span [Start, End) of zero-based page indices.
type Range struct {
	Start int
	End   int
}

// Len returns the number of pages in the range.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Empty reports whether the range holds no pages.
func (r Range) Empty() bool {
	return r.Start >= r.End
}

// Pages returns the page indices of the range in order.
func (r Range) Pages() []int {
	pages := make([]int, 0, r.Len())
	for p := r.Start; p < r.End; p++ {
		pages = append(pages, p)
	}
	return pages
}

// String renders the range with one-based, inclusive page numbers, the way
// a reader counts pages.
func (r Range) String() string {
	if r.Empty() {
		return "no pages"
	}
	if r.Len() == 1 {
		return fmt.Sprintf("page %d", r.Start+1)
	}
	return fmt.Sprintf("pages %d-%d", r.Start+1, r.End)
}

// Chunk is one contiguous run of pages destined for a single output file.
type Chunk struct {
	Pages Range
	Part  int   // 1-based, in emission order
	Size  int64 // measured serialized size of the chunk
}

// Oversized reports whether the chunk is over budget. Only single-page
// chunks can be.
func (c Chunk) Oversized(budget int64) bool {
	return c.Size > budget
}

// Measurer reports the serialized byte size of an ordered set of pages.
type Measurer interface {
	Measure(pages []int) (int64, error)
}

// MeasureFunc adapts a function to the Measurer interface.
type MeasureFunc func(pages []int) (int64, error)

func (f MeasureFunc) Measure(pages []int) (int64, error) {
	return f(pages)
}

// Config controls chunking behavior.
type Config struct {
	Budget     int64 // Maximum serialized size of one chunk in bytes.
	CheckEvery int   // Measure the open chunk every N appended pages.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Budget:     20 << 20,
		CheckEvery: 5,
	}
}

// Chunker cuts page ranges into chunks that serialize under a byte budget.
type Chunker struct {
	measurer Measurer
	cfg      Config
	log      *slog.Logger
}

// New creates a Chunker. Zero config values are replaced with defaults.
func New(m Measurer, cfg Config, log *slog.Logger) *Chunker {
	def := DefaultConfig()
	if cfg.Budget <= 0 {
		cfg.Budget = def.Budget
	}
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = def.CheckEvery
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Chunker{measurer: m, cfg: cfg, log: log}
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// Chunks walks r page by page and yields chunks in order. The sequence is
// lazy and holds no state between iterations, so it can be ranged over
// again from scratch. An empty range yields a single ErrEmptyRange error; a
// measurement error is yielded once and ends the sequence.
func (c *Chunker) Chunks(r Range) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		if r.Start < 0 || r.Empty() {
			yield(Chunk{}, apperr.EmptyRange(r.Start, r.End))
			return
		}
		w := &walk{
			chunker: c,
			log:     c.log.With("range", r.String()),
			yield:   yield,
		}
		w.run(r)
	}
}

// Split collects every chunk of r.
func (c *Chunker) Split(r Range) ([]Chunk, error) {
	var chunks []Chunk
	for ch, err := range c.Chunks(r) {
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, nil
}

// walk is the state of one pass over a range.
type walk struct {
	chunker *Chunker
	log     *slog.Logger
	yield   func(Chunk, error) bool

	open    []int // accumulating chunk
	fit     int   // length of the open prefix last measured under budget
	fitSize int64
	part    int

	measures int
}

func (w *walk) run(r Range) {
	every := w.chunker.cfg.CheckEvery
	since := 0
	for p := r.Start; p < r.End; p++ {
		w.open = append(w.open, p)
		since++
		final := p == r.End-1
		if since < every && !final {
			continue
		}
		since = 0
		if !w.check(final) {
			return
		}
	}
	// The final page is always checked, so a non-empty open chunk fits.
	if len(w.open) > 0 {
		w.emit(w.open, w.fitSize)
	}
	w.log.Debug("range chunked", "chunks", w.part, "measurements", w.measures)
}

// check measures the open chunk and closes chunks until what remains open
// fits the budget. It returns false when iteration must stop.
func (w *walk) check(final bool) bool {
	budget := w.chunker.cfg.Budget
	for {
		size, err := w.measure(w.open)
		if err != nil {
			w.yield(Chunk{}, err)
			return false
		}
		if size <= budget {
			w.fit, w.fitSize = len(w.open), size
			return true
		}

		if len(w.open) == 1 {
			if !w.emit(w.open, size) {
				return false
			}
			w.reset(nil)
			return true
		}

		k, ksize, err := w.cut()
		if err != nil {
			w.yield(Chunk{}, err)
			return false
		}
		if !w.emit(w.open[:k], ksize) {
			return false
		}
		w.reset(slices.Clone(w.open[k:]))

		// A single carried page is measured at the next scheduled check.
		// Anything longer, or the tail of the range, is settled now.
		if len(w.open) == 1 && !final {
			return true
		}
	}
}

// cut finds the longest prefix of the open chunk that fits, stepping back
// one page at a time from the most recent append. A lone first page is
// accepted even over budget.
func (w *walk) cut() (int, int64, error) {
	budget := w.chunker.cfg.Budget
	k := len(w.open) - 1
	for {
		if k == w.fit {
			return k, w.fitSize, nil
		}
		size, err := w.measure(w.open[:k])
		if err != nil {
			return 0, 0, err
		}
		if size <= budget || k == 1 {
			return k, size, nil
		}
		k--
	}
}

func (w *walk) reset(open []int) {
	w.open = open
	w.fit, w.fitSize = 0, 0
}

func (w *walk) measure(pages []int) (int64, error) {
	w.measures++
	size, err := w.chunker.measurer.Measure(pages)
	if err != nil {
		return 0, fmt.Errorf("measure pages %d-%d: %w", pages[0]+1, pages[len(pages)-1]+1, err)
	}
	return size, nil
}

func (w *walk) emit(pages []int, size int64) bool {
	w.part++
	ch := Chunk{
		Pages: Range{Start: pages[0], End: pages[len(pages)-1] + 1},
		Part:  w.part,
		Size:  size,
	}
	budget := w.chunker.cfg.Budget
	if ch.Oversized(budget) {
		w.log.Warn("page exceeds budget on its own, emitting it alone",
			"page", ch.Pages.Start+1,
			"size", humanize.IBytes(uint64(size)),
			"budget", humanize.IBytes(uint64(budget)),
		)
	}
	w.log.Debug("chunk closed", "part", ch.Part, "pages", ch.Pages.String(), "size", size)
	return w.yield(ch, nil)
}
