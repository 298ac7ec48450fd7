package splitter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/splitpdf/internal/apperr"
	"github.com/dgallion1/splitpdf/internal/boundary"
	"github.com/dgallion1/splitpdf/internal/chunker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type persisted struct {
	pages    []int
	path     string
	bookmark string
	size     int64
}

// memDoc is a Document whose size is a fixed number of bytes per page plus
// markCost bytes per bookmark character, and whose Persist only records what
// it was asked to write.
type memDoc struct {
	pages    int
	perPage  int64
	markCost int64
	written  []persisted
	failOn   string
}

func (d *memDoc) Measure(pages []int, bookmark string) (int64, error) {
	return int64(len(pages))*d.perPage + int64(len(bookmark))*d.markCost, nil
}

func (d *memDoc) PageCount() int {
	return d.pages
}

func (d *memDoc) Persist(pages []int, dst, bookmark string) error {
	if d.failOn != "" && strings.HasSuffix(dst, d.failOn) {
		return apperr.IO("write output", dst, errors.New("disk full"))
	}
	size, _ := d.Measure(pages, bookmark)
	d.written = append(d.written, persisted{pages: pages, path: dst, bookmark: bookmark, size: size})
	return nil
}

func (d *memDoc) files() []string {
	out := make([]string, len(d.written))
	for i, w := range d.written {
		out[i] = filepath.Base(w.path)
	}
	return out
}

func TestSplitSections_IntroAndBody(t *testing.T) {
	doc := &memDoc{pages: 20, perPage: 100}
	s := New(doc, chunker.Config{Budget: 1 << 20, CheckEvery: 5}, Options{OutputDir: "out", Bookmarks: true}, nil)

	sections := []boundary.Section{{Name: "Intro", StartPage: 0}, {Name: "Body", StartPage: 9}}
	res, err := s.SplitSections(context.Background(), sections)
	require.NoError(t, err)

	require.Len(t, res.Outputs, 2)
	assert.Empty(t, res.Skipped)

	intro, body := res.Outputs[0], res.Outputs[1]
	assert.Equal(t, filepath.Join("out", "Intro_part01.pdf"), intro.Path)
	assert.Equal(t, chunker.Range{Start: 0, End: 9}, intro.Pages)
	assert.Equal(t, 1, intro.FirstPage)
	assert.Equal(t, 9, intro.LastPage)
	assert.Equal(t, "Intro", intro.Section)

	assert.Equal(t, filepath.Join("out", "Body_part01.pdf"), body.Path)
	assert.Equal(t, chunker.Range{Start: 9, End: 20}, body.Pages)
	assert.Equal(t, 11, body.Pages.Len())

	require.Len(t, doc.written, 2)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, doc.written[0].pages)
	assert.Equal(t, "Intro", doc.written[0].bookmark)
	assert.Equal(t, "Body", doc.written[1].bookmark)
}

func TestSplitSections_MultiPartSection(t *testing.T) {
	doc := &memDoc{pages: 10, perPage: 10}
	s := New(doc, chunker.Config{Budget: 45, CheckEvery: 1}, Options{Bookmarks: true}, nil)

	res, err := s.SplitSections(context.Background(), []boundary.Section{{Name: "Only", StartPage: 0}})
	require.NoError(t, err)

	assert.Equal(t, []string{"Only_part01.pdf", "Only_part02.pdf", "Only_part03.pdf"}, doc.files())
	assert.Equal(t, "Only", doc.written[0].bookmark)
	assert.Equal(t, "Only (part 2)", doc.written[1].bookmark)
	for i, out := range res.Outputs {
		assert.Equal(t, i+1, out.Part)
		assert.LessOrEqual(t, out.Size, int64(45))
	}
}

func TestSplitSections_BookmarkCountsAgainstBudget(t *testing.T) {
	doc := &memDoc{pages: 12, perPage: 10, markCost: 1}
	s := New(doc, chunker.Config{Budget: 45, CheckEvery: 1}, Options{Bookmarks: true}, nil)

	res, err := s.SplitSections(context.Background(), []boundary.Section{{Name: "Intro", StartPage: 0}})
	require.NoError(t, err)

	// "Intro" costs 5 bytes, "Intro (part n)" 14, so later parts hold a page less.
	var lens []int
	for _, w := range doc.written {
		lens = append(lens, len(w.pages))
	}
	assert.Equal(t, []int{4, 3, 3, 2}, lens)

	require.Len(t, res.Outputs, len(doc.written))
	for i, w := range doc.written {
		assert.LessOrEqual(t, w.size, int64(45), w.path)
		assert.Equal(t, w.size, res.Outputs[i].Size, w.path)
	}
}

func TestSplitSections_SkipsSectionsOutsideDocument(t *testing.T) {
	doc := &memDoc{pages: 20, perPage: 1}
	s := New(doc, chunker.Config{Budget: 1000}, Options{}, nil)

	sections := []boundary.Section{
		{Name: "Intro", StartPage: 0},
		{Name: "Empty", StartPage: 5},
		{Name: "Body", StartPage: 5},
		{Name: "Ghost", StartPage: 25},
	}
	res, err := s.SplitSections(context.Background(), sections)
	require.NoError(t, err)

	assert.Equal(t, []string{"Intro_part01.pdf", "Body_part01.pdf"}, doc.files())
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, "Empty", res.Skipped[0].Section)
	assert.Equal(t, "Ghost", res.Skipped[1].Section)
	assert.Contains(t, res.Skipped[1].Reason, "page 26")
	assert.Equal(t, chunker.Range{Start: 5, End: 20}, res.Outputs[1].Pages)
}

func TestSplitSections_SanitizesAndDeduplicatesNames(t *testing.T) {
	doc := &memDoc{pages: 30, perPage: 1}
	s := New(doc, chunker.Config{Budget: 1000}, Options{}, nil)

	long := strings.Repeat("n", 300)
	sections := []boundary.Section{
		{Name: "Part 1: Setup/Install", StartPage: 0},
		{Name: "Part 1: Setup/Install", StartPage: 10},
		{Name: long, StartPage: 20},
	}
	_, err := s.SplitSections(context.Background(), sections)
	require.NoError(t, err)

	files := doc.files()
	assert.Equal(t, "Part_1__Setup_Install_part01.pdf", files[0])
	assert.Equal(t, "Part_1__Setup_Install_2_part01.pdf", files[1])
	assert.LessOrEqual(t, len(files[2]), DefaultMaxNameLen+len("_part01.pdf"))
	assert.True(t, strings.HasPrefix(files[2], strings.Repeat("n", DefaultMaxNameLen)+"_part01"))
}

func TestSplitSections_BookmarksDisabled(t *testing.T) {
	doc := &memDoc{pages: 4, perPage: 1}
	s := New(doc, chunker.Config{Budget: 1000}, Options{Bookmarks: false}, nil)

	_, err := s.SplitSections(context.Background(), []boundary.Section{{Name: "A", StartPage: 0}})
	require.NoError(t, err)
	assert.Empty(t, doc.written[0].bookmark)
}

func TestSplitSections_PersistFailureAborts(t *testing.T) {
	doc := &memDoc{pages: 20, perPage: 1, failOn: "Body_part01.pdf"}
	s := New(doc, chunker.Config{Budget: 1000}, Options{}, nil)

	sections := []boundary.Section{{Name: "Intro", StartPage: 0}, {Name: "Body", StartPage: 9}, {Name: "End", StartPage: 15}}
	res, err := s.SplitSections(context.Background(), sections)

	require.ErrorIs(t, err, apperr.ErrIO)
	assert.Contains(t, err.Error(), "Body_part01.pdf")
	assert.Len(t, res.Outputs, 1)
	assert.Equal(t, []string{"Intro_part01.pdf"}, doc.files())
}

func TestSplitWhole_HundredPages(t *testing.T) {
	run := func() []string {
		doc := &memDoc{pages: 100, perPage: 10}
		s := New(doc, chunker.Config{Budget: 45, CheckEvery: 5}, Options{}, nil)
		res, err := s.SplitWhole(context.Background(), "manual")
		require.NoError(t, err)
		require.Len(t, res.Outputs, 25)
		for _, out := range res.Outputs {
			assert.Equal(t, 4, out.Pages.Len())
			assert.Empty(t, out.Section)
		}
		return doc.files()
	}

	first := run()
	assert.Equal(t, "manual_part01.pdf", first[0])
	assert.Equal(t, "manual_part25.pdf", first[24])
	assert.Equal(t, first, run())
}

func TestSplitWhole_OversizedPageFlagged(t *testing.T) {
	doc := &memDoc{pages: 1, perPage: 500}
	s := New(doc, chunker.Config{Budget: 100}, Options{}, nil)

	res, err := s.SplitWhole(context.Background(), "scan")
	require.NoError(t, err)
	require.Len(t, res.Outputs, 1)
	assert.True(t, res.Outputs[0].Oversized)
}

func TestSplitWhole_CancelledContext(t *testing.T) {
	doc := &memDoc{pages: 10, perPage: 1}
	s := New(doc, chunker.Config{Budget: 1000}, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.SplitWhole(ctx, "doc")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, doc.written)
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"Chapter 1":           "Chapter_1",
		`a\b/c:d*e?f"g<h>i|j`: "a_b_c_d_e_f_g_h_i_j",
		"  trimmed  ":         "trimmed",
		"tab\tand\nnewline":   "tab_and_newline",
		"第1章 はじめに":            "第1章_はじめに",
		"///":                 "untitled",
		"":                    "untitled",
		"..":                  "untitled",
	}
	for in, want := range cases {
		assert.Equal(t, want, Sanitize(in, 200), "input %q", in)
	}
}

func TestSanitize_TruncatesRunes(t *testing.T) {
	got := Sanitize(strings.Repeat("é", 250), 100)
	assert.Equal(t, 100, len([]rune(got)))

	got = Sanitize("abcdef", 0)
	assert.Equal(t, "abcdef", got)
}

func TestSanitize_CapsBytes(t *testing.T) {
	got := Sanitize(strings.Repeat("章", 200), 200)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, MaxNameBytes, len(got))
	assert.Equal(t, 80, utf8.RuneCountInString(got))
	assert.LessOrEqual(t, len(PartFileName(got, 100)), 255)

	// A cut never splits a character.
	got = Sanitize("a"+strings.Repeat("章", 200), 200)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, MaxNameBytes-2, len(got))
}

func TestPartFileName(t *testing.T) {
	assert.Equal(t, "Intro_part01.pdf", PartFileName("Intro", 1))
	assert.Equal(t, "Intro_part10.pdf", PartFileName("Intro", 10))
	assert.Equal(t, "Intro_part123.pdf", PartFileName("Intro", 123))
}

func TestNamer_SuffixStaysWithinLimits(t *testing.T) {
	n := NewNamer(10)
	first := n.Base("abcdefghijklmno")
	second := n.Base("abcdefghijXYZ")
	assert.Equal(t, "abcdefghij", first)
	assert.Equal(t, "abcdefgh_2", second)

	n = NewNamer(200)
	long := strings.Repeat("章", 200)
	first = n.Base(long)
	second = n.Base(long)
	assert.LessOrEqual(t, len(second), MaxNameBytes)
	assert.True(t, utf8.ValidString(second))
	assert.True(t, strings.HasSuffix(second, "_2"))
	assert.NotEqual(t, first, second)
}

func TestNamer_CaseInsensitiveCollisions(t *testing.T) {
	n := NewNamer(200)
	got := []string{n.Base("Intro"), n.Base("intro"), n.Base("Intro_2"), n.Base("INTRO")}
	assert.Equal(t, []string{"Intro", "intro_2", "Intro_2_2", "INTRO_3"}, got)
	for i := range got {
		for j := range got {
			if i != j {
				assert.NotEqual(t, strings.ToLower(got[i]), strings.ToLower(got[j]), fmt.Sprint(got))
			}
		}
	}
}
