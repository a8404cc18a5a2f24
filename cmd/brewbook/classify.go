package main

import (
	"io"
	"net/url"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"brewbook/internal/extract"
)

func classifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify DOMAIN|URL...",
		Short: "Show the content category and extraction route of domains",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			renderClassification(cmd.OutOrStdout(), args)
			return nil
		},
	}
}

func renderClassification(w io.Writer, inputs []string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Input", "Domain", "Category", "Route"})
	for _, in := range inputs {
		domain := domainOf(in)
		category := extract.Classify(domain)
		t.AppendRow(table.Row{in, domain, category, extract.RouteFor(category)})
	}
	t.Render()
}

// domainOf accepts a bare host or a URL.
func domainOf(input string) string {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "://") {
		if u, err := url.Parse(input); err == nil && u.Hostname() != "" {
			return strings.ToLower(u.Hostname())
		}
	}
	host, _, _ := strings.Cut(input, "/")
	return strings.ToLower(host)
}
