package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"batch_transfer/internal/domain/entity"
	"batch_transfer/internal/infrastructure/statusfeed"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

// attachPrinter echoes status messages to w until the returned func is called.
func attachPrinter(w io.Writer, feed *statusfeed.Feed) func() {
	events, cancel := feed.Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if ev.Type != statusfeed.EventStatus || ev.Status == nil {
				continue
			}
			fmt.Fprintf(w, "%s %s\n", severityTag(ev.Status.Severity), ev.Status.Text)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func severityTag(s entity.Severity) string {
	switch s {
	case entity.SeveritySuccess:
		return "[ok]"
	case entity.SeverityWarning:
		return "[warn]"
	case entity.SeverityError:
		return "[error]"
	default:
		return "[info]"
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printTokens(c *cli.Context, tokens []entity.TokenRecord) {
	if len(tokens) == 0 {
		fmt.Fprintln(c.App.Writer, "No tokens with balance found")
		return
	}
	w := newTable(c.App.Writer)
	fmt.Fprintln(w, "SYMBOL\tBALANCE\tRAW\tADDRESS\tSOURCE")
	for _, t := range tokens {
		source := "registry"
		if t.IsCustom {
			source = "custom"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Symbol, t.FormattedBalance, humanize.BigComma(t.Balance), t.Address, source)
	}
	_ = w.Flush()
	fmt.Fprintf(c.App.Writer, "%s token(s) found\n", humanize.Comma(int64(len(tokens))))
}

func printSummary(c *cli.Context, summary entity.FallbackSummary) {
	for _, r := range summary.Results {
		if r.Error != "" {
			fmt.Fprintf(c.App.Writer, "[error] %s: %s\n", r.Symbol, r.Error)
			continue
		}
		fmt.Fprintf(c.App.Writer, "[ok] %s: %s\n", r.Symbol, r.TxHash)
	}
	fmt.Fprintf(c.App.Writer, "%d succeeded, %d failed\n", summary.Succeeded, summary.Failed)
}
