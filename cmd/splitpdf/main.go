// Command splitpdf splits a PDF into parts that each stay under the upload
// limit of a target service, optionally along the sections of a title,page
// boundary table.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/splitpdf/internal/config"
	"github.com/spf13/afero"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "splitpdf: internal error: %v\n", r)
			code = 1
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		fs:     afero.NewOsFs(),
		cfg:    config.Load(),
		out:    stdout,
		errOut: stderr,
	}
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "splitpdf: %v\n", err)
		return 1
	}
	return 0
}
