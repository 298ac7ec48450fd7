package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/splitpdf/internal/apperr"
	"github.com/dgallion1/splitpdf/internal/config"
	"github.com/dgallion1/splitpdf/internal/logging"
	"github.com/dgallion1/splitpdf/internal/pipeline"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// app carries what every command shares.
type app struct {
	fs     afero.Fs
	cfg    config.Config
	out    io.Writer
	errOut io.Writer

	verbose bool
	logFile string
}

// logger builds the run logger from the persistent flags.
func (a *app) logger(json bool) (*slog.Logger, func() error, error) {
	level := a.cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:   level,
		JSON:    json,
		Output:  a.errOut,
		LogFile: a.logFile,
		Fs:      a.fs,
	})
}

type splitFlags struct {
	pdf         string
	index       string
	profile     string
	output      string
	checkEvery  int
	noBookmarks bool
}

func newRootCommand(a *app) *cobra.Command {
	var f splitFlags
	cmd := &cobra.Command{
		Use:   "splitpdf [document.pdf]",
		Short: "Split a PDF into parts that fit a size limit",
		Long: `Split a PDF into parts that each stay under the byte budget of a target
profile. When a title,page boundary table is given with --index, or an
index.csv sits next to the document, every section is split on its own and
named after its title. Otherwise the whole document is split by size only.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSplit(cmd.Context(), f, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.pdf, "pdf", "", "document to split, instead of the positional argument")
	flags.StringVarP(&f.index, "index", "c", "", "boundary table (title,page CSV); defaults to index.csv next to the document")
	flags.StringVarP(&f.profile, "profile", "p", a.cfg.Profile,
		fmt.Sprintf("target profile (%s)", strings.Join(a.cfg.Profiles.Names(), ", ")))
	flags.StringVarP(&f.output, "output", "o", a.cfg.OutputDir, "output directory")
	flags.IntVar(&f.checkEvery, "check-every", a.cfg.CheckEvery, "measure the open part every N pages")
	flags.BoolVar(&f.noBookmarks, "no-bookmarks", !a.cfg.Bookmarks, "do not add a section bookmark to each part")

	pflags := cmd.PersistentFlags()
	pflags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pflags.StringVar(&a.logFile, "log-file", a.cfg.LogFile, "also append logs to this file")

	cmd.AddCommand(
		newProfilesCommand(a),
		newPagesCommand(a),
		newServeCommand(a),
	)
	return cmd
}

func (a *app) runSplit(ctx context.Context, f splitFlags, args []string) error {
	docPath, err := documentArg(f.pdf, args)
	if err != nil {
		return err
	}

	cfg := a.cfg
	cfg.Profile = f.profile
	cfg.OutputDir = f.output
	cfg.CheckEvery = f.checkEvery
	cfg.Bookmarks = !f.noBookmarks
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closeLog, err := a.logger(false)
	if err != nil {
		return err
	}
	defer closeLog()

	req := pipeline.RequestFromConfig(cfg, docPath)
	req.IndexPath = f.index
	res, sum, err := pipeline.Split(ctx, a.fs, req, log)
	if err != nil {
		log.Error("split failed", "error", err, "outputs_written", sum.Outputs)
		return err
	}

	for _, out := range res.Outputs {
		fmt.Fprintf(a.out, "%s\t%s\t%s\n", out.Path, out.Pages, humanize.IBytes(uint64(out.Size)))
	}
	fmt.Fprintf(a.out, "%d part(s) from %d pages (%s mode, profile %s, budget %s)\n",
		sum.Outputs, sum.Pages, sum.Mode, sum.Profile, humanize.IBytes(uint64(sum.Budget)))
	for _, skip := range res.Skipped {
		fmt.Fprintf(a.out, "skipped %q: %s\n", skip.Section, skip.Reason)
	}
	return nil
}

// documentArg picks the document from the positional argument or --pdf.
func documentArg(flag string, args []string) (string, error) {
	var positional string
	if len(args) > 0 {
		positional = args[0]
	}
	switch {
	case positional == "" && flag == "":
		return "", apperr.Config("a document is required (argument or --pdf)")
	case positional != "" && flag != "" && filepath.Clean(positional) != filepath.Clean(flag):
		return "", apperr.Config("two documents given: %q and --pdf %q", positional, flag)
	case positional != "":
		return positional, nil
	default:
		return flag, nil
	}
}
