package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"brewbook/pkg/types"
)

const excerptWidth = 60

func (c *cli) scrapeCommand() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "scrape URL...",
		Short: "Scrape recipe pages and print what was extracted",
		Long: `Scrape fetches each URL in order, honouring robots.txt and per-domain
rate limits, and prints one row per URL.

Examples:
  brewbook scrape https://example.com/iced-latte
  brewbook scrape --save https://a.test/matcha https://b.test/chai`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := c.services(ctx, cmd)
			if err != nil {
				return err
			}
			defer services.Close()
			if save && services.Importer == nil {
				return errors.New("--save needs a configured database")
			}

			results := services.Scraper.ScrapeBatch(ctx, args)
			renderScrapeResults(cmd.OutOrStdout(), results)
			if save {
				saved := services.Importer.Import(ctx, results)
				fmt.Fprintf(cmd.OutOrStdout(), "saved %d of %d recipes\n", len(saved), len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "store successful results with ingredients and steps as recipes")
	return cmd
}

func renderScrapeResults(w io.Writer, results []types.ScrapeResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "URL", "Category", "Robots", "Title", "Ingredients", "Steps", "Result"})

	ok := 0
	for i, res := range results {
		title, ingredients, steps := "", "-", "-"
		if res.Data != nil {
			title = text.Trim(res.Data.Title, excerptWidth)
			ingredients = strconv.Itoa(len(res.Data.Ingredients))
			steps = strconv.Itoa(len(res.Data.Steps))
		}
		outcome := "ok"
		if res.Success {
			ok++
		} else {
			outcome = res.Error
		}
		robots := "allowed"
		if !res.Source.RobotsAllowed {
			robots = "disallowed"
		}
		t.AppendRow(table.Row{i + 1, res.Source.URL, res.Source.ContentType, robots, title, ingredients, steps, outcome})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "succeeded", fmt.Sprintf("%d/%d", ok, len(results))})
	t.Render()
}
