package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/splitpdf/internal/backend"
	"github.com/dgallion1/splitpdf/internal/boundary"
	"github.com/dgallion1/splitpdf/internal/chunker"
	"github.com/dgallion1/splitpdf/internal/config"
	"github.com/dgallion1/splitpdf/internal/splitter"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// Split modes reported in a Summary.
const (
	ModeSections = "sections"
	ModeWhole    = "whole"
)

// Request describes one split run.
type Request struct {
	DocPath   string
	IndexPath string // optional; when empty index.csv next to the document is tried
	OutputDir string

	Profile    string
	Profiles   config.Profiles
	CheckEvery int
	MaxNameLen int
	Bookmarks  bool

	// Optional progress hooks.
	OnOpen   func(pages int)
	OnOutput func(splitter.Output)
}

// RequestFromConfig fills a Request with the configured defaults.
func RequestFromConfig(cfg config.Config, docPath string) Request {
	return Request{
		DocPath:    docPath,
		OutputDir:  cfg.OutputDir,
		Profile:    cfg.Profile,
		Profiles:   cfg.Profiles,
		CheckEvery: cfg.CheckEvery,
		MaxNameLen: cfg.MaxNameLen,
		Bookmarks:  cfg.Bookmarks,
	}
}

// Summary is what a run reports once it finished.
type Summary struct {
	Mode      string `json:"mode"`
	IndexPath string `json:"index_path,omitempty"`
	Profile   string `json:"profile"`
	Budget    int64  `json:"budget"`
	Pages     int    `json:"pages"`
	Outputs   int    `json:"outputs"`
	Skipped   int    `json:"skipped"`
}

// Split opens the document, picks section or whole-document mode and writes
// every output. The profile is resolved before any file is touched.
func Split(ctx context.Context, fsys afero.Fs, req Request, log *slog.Logger) (splitter.Result, Summary, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	sum := Summary{Profile: req.Profile}

	budget, err := req.Profiles.Budget(req.Profile)
	if err != nil {
		return splitter.Result{}, sum, err
	}
	sum.Budget = budget

	doc, err := backend.Open(fsys, req.DocPath)
	if err != nil {
		return splitter.Result{}, sum, err
	}
	sum.Pages = doc.PageCount()
	log = log.With("document", filepath.Base(req.DocPath))
	log.Info("document opened",
		"pages", sum.Pages,
		"size", humanize.IBytes(uint64(doc.Size())),
		"profile", req.Profile,
		"budget", humanize.IBytes(uint64(budget)),
	)

	if req.OnOpen != nil {
		req.OnOpen(sum.Pages)
	}

	sections, indexPath, err := loadSections(fsys, req, log)
	if err != nil {
		return splitter.Result{}, sum, err
	}

	s := splitter.New(doc,
		chunker.Config{Budget: budget, CheckEvery: req.CheckEvery},
		splitter.Options{
			OutputDir:  req.OutputDir,
			MaxNameLen: req.MaxNameLen,
			Bookmarks:  req.Bookmarks,
			OnOutput:   req.OnOutput,
		},
		log,
	)

	var res splitter.Result
	if sections != nil {
		sum.Mode = ModeSections
		sum.IndexPath = indexPath
		log.Info("splitting by boundary table", "index", indexPath, "sections", len(sections))
		res, err = s.SplitSections(ctx, sections)
	} else {
		sum.Mode = ModeWhole
		log.Info("no boundary table, splitting by size only")
		res, err = s.SplitWhole(ctx, DocBaseName(req.DocPath))
	}
	sum.Outputs = len(res.Outputs)
	sum.Skipped = len(res.Skipped)
	if err != nil {
		return res, sum, err
	}

	log.Info("split finished", "mode", sum.Mode, "outputs", sum.Outputs, "skipped", sum.Skipped)
	return res, sum, nil
}

// loadSections returns nil sections when there is no boundary table.
func loadSections(fsys afero.Fs, req Request, log *slog.Logger) ([]boundary.Section, string, error) {
	path := req.IndexPath
	if path == "" {
		found, ok := boundary.Discover(fsys, req.DocPath)
		if !ok {
			return nil, "", nil
		}
		path = found
		log.Debug("found boundary table", "index", path)
	}
	sections, err := boundary.LoadFile(fsys, path, log)
	if err != nil {
		return nil, path, err
	}
	return sections, path, nil
}

// DocBaseName is the document file name without its extension.
func DocBaseName(docPath string) string {
	name := filepath.Base(docPath)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
