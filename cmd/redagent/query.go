package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newQueryCmd(a *app) *cobra.Command {
	var limit int
	var raw bool

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Print the stored context most relevant to a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.openRAG(ctx, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			query := strings.Join(args, " ")
			if !raw {
				text, err := svc.Query(ctx, query, limit)
				if err != nil {
					return err
				}
				fmt.Println(text)
				return nil
			}

			results, err := svc.Search(ctx, query, limit)
			if err != nil {
				return err
			}
			for _, r := range results {
				color.Cyan("[%d] score=%.4f", r.ID, r.Score)
				fmt.Println(r.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of chunks to retrieve (default from config)")
	cmd.Flags().BoolVar(&raw, "raw", false, "print ids and scores instead of the joined context")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every stored chunk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := a.openRAG(ctx, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			chunks, err := svc.ListAll(ctx)
			if err != nil {
				return err
			}
			for _, c := range chunks {
				preview := strings.Join(strings.Fields(c.Text), " ")
				if r := []rune(preview); len(r) > 80 {
					preview = string(r[:77]) + "..."
				}
				fmt.Printf("%s %s  %s\n", color.CyanString("%10d", c.ID), color.HiBlackString("%s", shortFingerprint(c.Fingerprint)), preview)
			}
			color.Green("%d chunks in %s", len(chunks), svc.Collection().Name())
			return nil
		},
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 8 {
		return fp[:8]
	}
	return fp
}
