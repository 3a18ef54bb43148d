package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/xhad/redagent/pkg/extractor"
	"github.com/xhad/redagent/pkg/scraper"
)

func newIngestCmd(a *app) *cobra.Command {
	var text string
	var id uint64

	cmd := &cobra.Command{
		Use:   "ingest <file|url>...",
		Short: "Extract, chunk and store documents",
		Long: "Extract text from PDF, text or markdown files and web pages, split it into\n" +
			"chunks and store every chunk that is not already in the collection.\n" +
			"Re-ingesting the same document stores nothing new.",
		Example: "  redagent ingest trading-guide.pdf\n  redagent ingest https://example.com/docs/\n  redagent ingest --text \"Buy low. Sell high.\" --id 42",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && text == "" {
				return fmt.Errorf("nothing to ingest: pass files, URLs or --text")
			}
			ctx := cmd.Context()

			var bar *progressbar.ProgressBar
			svc, err := a.openRAG(ctx, func(done, total int) {
				if bar == nil {
					bar = getProgressBar(total, "Embedding chunks")
				}
				bar.Set(done)
			})
			if err != nil {
				return err
			}
			defer svc.Close()

			if text != "" {
				stored, err := svc.AddText(ctx, text, id)
				if err != nil {
					return err
				}
				if stored {
					color.Green("✓ Stored text")
				} else {
					color.Yellow("Text already stored, skipped")
				}
			}

			scraperConfig := scraper.ScraperConfig{
				MaxDepth:          a.cfg.Scraper.MaxDepth,
				RateLimit:         a.cfg.Scraper.RateLimit,
				IgnorePatterns:    a.cfg.Scraper.IgnorePatterns,
				AllowedExtensions: a.cfg.Scraper.AllowedExtensions,
			}
			for _, path := range args {
				src, err := extractor.ForPath(path, scraperConfig)
				if err != nil {
					return err
				}

				color.Blue("\nIngesting %s", path)
				report, err := svc.IngestSource(ctx, src)
				if bar != nil {
					bar.Finish()
					bar = nil
				}
				if err != nil {
					return fmt.Errorf("failed to ingest %s (%d of %d chunks stored): %w",
						path, report.Stored, report.Chunks, err)
				}
				color.Green("\n✓ %s: %d chunks, %d stored, %d duplicates skipped, %d blank",
					path, report.Chunks, report.Stored, report.Skipped, report.Blank)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "store a single piece of text")
	cmd.Flags().Uint64Var(&id, "id", 0, "point id for --text (derived from the text when 0)")
	return cmd
}
