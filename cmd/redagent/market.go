package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/redagent/pkg/market"
)

func newMarketCmd(a *app) *cobra.Command {
	var limit int
	var mock bool

	cmd := &cobra.Command{
		Use:   "market",
		Short: "Show daily market movers",
	}
	cmd.PersistentFlags().IntVarP(&limit, "limit", "n", market.DefaultLimit, "number of stocks to show")
	cmd.PersistentFlags().BoolVar(&mock, "mock", false, "use canned data instead of the API")

	client := func() (market.Client, error) {
		if mock {
			a.cfg.Market.UseMock = true
		}
		return a.marketClient()
	}

	movers := func(use, short string, gainers bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := client()
				if err != nil {
					return err
				}
				fetch := c.TopLosers
				if gainers {
					fetch = c.TopGainers
				}
				list, err := fetch(cmd.Context(), limit)
				if err != nil {
					return err
				}
				color.Cyan("%s", short)
				fmt.Println(market.FormatMovers(list))
				return nil
			},
		}
	}

	search := &cobra.Command{
		Use:   "search <company>",
		Short: "Search companies by name or ticker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			companies, err := c.SearchCompany(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(companies) == 0 {
				color.Yellow("No results.")
				return nil
			}
			for _, co := range companies {
				fmt.Printf("%-8s %s %s\n", color.CyanString(co.Symbol), co.Name, color.HiBlackString(co.ExchangeShortName))
			}
			return nil
		},
	}

	cmd.AddCommand(
		movers("gainers", "Top gaining stocks", true),
		movers("losers", "Top losing stocks", false),
		search,
	)
	return cmd
}
