package main

import (
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/dgallion1/splitpdf/internal/backend"
	"github.com/spf13/cobra"
)

func newPagesCommand(a *app) *cobra.Command {
	var (
		asCSV bool
		width int
	)
	cmd := &cobra.Command{
		Use:   "pages <document.pdf>",
		Short: "Show a text preview of every page, or a boundary table template",
		Long: `Print the page count and the first words of every page, to help write a
title,page boundary table. With --csv a template table with one row per
page is printed instead; delete the rows that do not start a section.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := backend.Open(a.fs, args[0])
			if err != nil {
				return err
			}
			texts, err := doc.PageTexts(width)
			if err != nil {
				return err
			}

			if asCSV {
				w := csv.NewWriter(a.out)
				w.Write([]string{"title", "page"})
				for i, text := range texts {
					if text == "" {
						text = fmt.Sprintf("Page %d", i+1)
					}
					w.Write([]string{text, strconv.Itoa(i + 1)})
				}
				w.Flush()
				return w.Error()
			}

			fmt.Fprintf(a.out, "%s: %d pages\n", args[0], doc.PageCount())
			for i, text := range texts {
				fmt.Fprintf(a.out, "%5d  %s\n", i+1, text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asCSV, "csv", false, "print a title,page template instead of previews")
	cmd.Flags().IntVar(&width, "width", 60, "preview length in characters")
	return cmd
}
