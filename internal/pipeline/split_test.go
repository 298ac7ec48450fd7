package pipeline

import (
	"context"
	"testing"

	"github.com/dgallion1/splitpdf/internal/apperr"
	"github.com/dgallion1/splitpdf/internal/backend"
	"github.com/dgallion1/splitpdf/internal/backend/backendtest"
	"github.com/dgallion1/splitpdf/internal/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(doc string) Request {
	return Request{
		DocPath:    doc,
		OutputDir:  "/out",
		Profile:    "large",
		Profiles:   config.Profiles{"large": 1 << 30},
		CheckEvery: 5,
		MaxNameLen: 200,
		Bookmarks:  true,
	}
}

func writeDoc(t *testing.T, fsys afero.Fs, path string, pages int) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, backendtest.PDF(pages, 50), 0o644))
}

func outputFiles(t *testing.T, fsys afero.Fs) []string {
	t.Helper()
	entries, err := afero.ReadDir(fsys, "/out")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSplit_DiscoveredIndex(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeDoc(t, fsys, "/in/book.pdf", 20)
	require.NoError(t, afero.WriteFile(fsys, "/in/index.csv", []byte("title,page\nIntro,1\nBody,10\n"), 0o644))

	res, sum, err := Split(context.Background(), fsys, newRequest("/in/book.pdf"), nil)
	require.NoError(t, err)

	assert.Equal(t, ModeSections, sum.Mode)
	assert.Equal(t, "/in/index.csv", sum.IndexPath)
	assert.Equal(t, 20, sum.Pages)
	assert.Equal(t, 2, sum.Outputs)
	assert.ElementsMatch(t, []string{"Body_part01.pdf", "Intro_part01.pdf"}, outputFiles(t, fsys))

	require.Len(t, res.Outputs, 2)
	assert.Equal(t, 9, res.Outputs[0].Pages.Len())
	assert.Equal(t, 11, res.Outputs[1].Pages.Len())

	body, err := backend.Open(fsys, "/out/Body_part01.pdf")
	require.NoError(t, err)
	assert.Equal(t, 11, body.PageCount())
}

func TestSplit_ExplicitIndexWins(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeDoc(t, fsys, "/in/book.pdf", 6)
	require.NoError(t, afero.WriteFile(fsys, "/in/index.csv", []byte("title,page\nIgnored,1\n"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/tables/custom.csv", []byte("Title , PAGE\nFirst,1\nSecond,4\n"), 0o644))

	req := newRequest("/in/book.pdf")
	req.IndexPath = "/tables/custom.csv"
	_, sum, err := Split(context.Background(), fsys, req, nil)
	require.NoError(t, err)

	assert.Equal(t, "/tables/custom.csv", sum.IndexPath)
	assert.ElementsMatch(t, []string{"First_part01.pdf", "Second_part01.pdf"}, outputFiles(t, fsys))
}

func TestSplit_WholeDocumentWithoutIndex(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeDoc(t, fsys, "/in/manual.pdf", 8)

	res, sum, err := Split(context.Background(), fsys, newRequest("/in/manual.pdf"), nil)
	require.NoError(t, err)

	assert.Equal(t, ModeWhole, sum.Mode)
	assert.Empty(t, sum.IndexPath)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, "/out/manual_part01.pdf", res.Outputs[0].Path)
	assert.Equal(t, 8, res.Outputs[0].Pages.Len())
}

func TestSplit_UnknownProfileTouchesNothing(t *testing.T) {
	fsys := afero.NewMemMapFs()

	req := newRequest("/in/does-not-exist.pdf")
	req.Profile = "claude"
	_, _, err := Split(context.Background(), fsys, req, nil)

	require.ErrorIs(t, err, apperr.ErrConfig)
	assert.Contains(t, err.Error(), "large")
	assert.Empty(t, outputFiles(t, fsys))
}

func TestSplit_MissingDocument(t *testing.T) {
	_, _, err := Split(context.Background(), afero.NewMemMapFs(), newRequest("/in/nope.pdf"), nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSplit_MissingExplicitIndex(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeDoc(t, fsys, "/in/book.pdf", 3)

	req := newRequest("/in/book.pdf")
	req.IndexPath = "/in/missing.csv"
	_, _, err := Split(context.Background(), fsys, req, nil)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, outputFiles(t, fsys))
}

func TestSplit_WrongHeaderWritesNothing(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeDoc(t, fsys, "/in/book.pdf", 5)
	require.NoError(t, afero.WriteFile(fsys, "/in/index.csv", []byte("name,start\nIntro,1\n"), 0o644))

	_, sum, err := Split(context.Background(), fsys, newRequest("/in/book.pdf"), nil)

	require.ErrorIs(t, err, apperr.ErrParse)
	assert.Zero(t, sum.Outputs)
	assert.Empty(t, outputFiles(t, fsys))
}

func TestSplit_SkipsSectionPastTheEnd(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeDoc(t, fsys, "/in/book.pdf", 4)
	require.NoError(t, afero.WriteFile(fsys, "/in/index.csv", []byte("title,page\nA,1\nGhost,9\n"), 0o644))

	res, sum, err := Split(context.Background(), fsys, newRequest("/in/book.pdf"), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Outputs)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, "Ghost", res.Skipped[0].Section)
}

func TestDocBaseName(t *testing.T) {
	assert.Equal(t, "report", DocBaseName("/a/b/report.pdf"))
	assert.Equal(t, "archive.tar", DocBaseName("archive.tar.PDF"))
	assert.Equal(t, "plain", DocBaseName("plain"))
}

func TestSplit_WrittenPartsFitBudgetWithBookmarks(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeDoc(t, fsys, "/in/book.pdf", 8)
	require.NoError(t, afero.WriteFile(fsys, "/in/index.csv", []byte("title,page\nIntro,1\n"), 0o644))

	src, err := backend.Open(fsys, "/in/book.pdf")
	require.NoError(t, err)
	budget, err := src.Measure([]int{0, 1, 2}, "Intro")
	require.NoError(t, err)

	req := newRequest("/in/book.pdf")
	req.Profile = "tight"
	req.Profiles = config.Profiles{"tight": budget}
	req.CheckEvery = 1
	res, _, err := Split(context.Background(), fsys, req, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Outputs), 3)

	for _, out := range res.Outputs {
		info, err := fsys.Stat(out.Path)
		require.NoError(t, err)
		if out.Pages.Len() > 1 {
			assert.LessOrEqual(t, info.Size(), budget, out.Path)
		}
	}
}
