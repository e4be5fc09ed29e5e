package main

import (
	"bufio"
	"fmt"
	"strings"

	"batch_transfer/internal/domain/entity"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

type sessionInfo struct {
	entity.Session
	Network string
}

var networksCommand = &cli.Command{
	Name:  "networks",
	Usage: "lists the known networks and their token list sources",
	Action: func(c *cli.Context) error {
		app, err := newApplication(c, false)
		if err != nil {
			return err
		}
		defer app.Close()

		w := newTable(c.App.Writer)
		fmt.Fprintln(w, "CHAIN\tNAME\tNATIVE\tTOKEN LIST\tEXPLORER")
		for _, def := range app.networks.GetAllNetworkDefinitions() {
			list := "custom tokens only"
			switch {
			case def.RegistryFile != "" && app.networks.HasLocalList(def):
				list = def.RegistryFile + " (local copy)"
			case def.RegistryFile != "":
				list = def.RegistryFile
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", entity.FormatChainID(def.ChainID), def.Name, def.NativeSymbol, list, def.BlockExplorerURL)
		}
		return w.Flush()
	},
}

var scanCommand = &cli.Command{
	Name:  "scan",
	Usage: "connects the wallet and lists tokens with a positive balance",
	Action: func(c *cli.Context) error {
		app, stop, info, err := startSession(c)
		if err != nil {
			return err
		}
		defer app.Close()
		defer stop()

		tokens, err := app.orch.Scan(c.Context, info.Session)
		if err != nil {
			return err
		}
		printTokens(c, tokens)
		return nil
	},
}

var addTokenCommand = &cli.Command{
	Name:  "add-token",
	Usage: "remembers a custom ERC20 contract for the current chain",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "address", Usage: "token contract address", Required: true},
	},
	Action: func(c *cli.Context) error {
		app, stop, info, err := startSession(c)
		if err != nil {
			return err
		}
		defer app.Close()
		defer stop()

		meta, err := app.orch.AddCustomToken(c.Context, info.Session, c.String("address"))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Added %s (%s), %d decimals, on %s\n", meta.Symbol, meta.Name, meta.Decimals, info.Network)
		return nil
	},
}

var supportCommand = &cli.Command{
	Name:  "support",
	Usage: "reports what the wallet supports for atomic batching",
	Action: func(c *cli.Context) error {
		app, stop, info, err := startSession(c)
		if err != nil {
			return err
		}
		defer app.Close()
		defer stop()

		for _, check := range app.capability.SupportReport(c.Context, info.Session) {
			fmt.Fprintf(c.App.Writer, "%s %s: %s\n", severityTag(check.Severity), check.Name, check.Detail)
		}
		return nil
	},
}

var transferCommand = &cli.Command{
	Name:  "transfer",
	Usage: "scans and sends every token balance to the recipient in one atomic batch",
	Flags: []cli.Flag{flagRecipient, flagYes},
	Action: func(c *cli.Context) error {
		app, stop, info, err := startSession(c)
		if err != nil {
			return err
		}
		defer app.Close()
		defer stop()

		tokens, err := app.orch.Scan(c.Context, info.Session)
		if err != nil {
			return err
		}
		printTokens(c, tokens)
		if len(tokens) == 0 {
			return nil
		}

		attempt, err := app.orch.ExecuteBatch(c.Context, info.Session, c.String(flagRecipient.Name))
		if err != nil {
			if attempt.State != entity.StateFallbackOffered {
				return err
			}
			if !confirm(c, fmt.Sprintf("Send %d individual transactions instead?", len(tokens))) {
				return app.orch.DeclineFallback()
			}
			summary, err := app.orch.ConfirmFallback(c.Context)
			printSummary(c, summary)
			return err
		}

		outcome, err := app.orch.Await(c.Context)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Batch %s: %s after %d status checks\n", outcome.BatchID, outcome.Kind, outcome.Attempts)
		if outcome.ExplorerURL != "" {
			fmt.Fprintln(c.App.Writer, outcome.ExplorerURL)
		}
		if outcome.Kind == entity.OutcomeFailed {
			return fmt.Errorf("batch failed: %s", outcome.Error)
		}
		return nil
	},
}

var traditionalCommand = &cli.Command{
	Name:  "traditional",
	Usage: "sends every token balance as an individual transaction",
	Flags: []cli.Flag{flagRecipient, flagYes},
	Action: func(c *cli.Context) error {
		app, stop, info, err := startSession(c)
		if err != nil {
			return err
		}
		defer app.Close()
		defer stop()

		tokens, err := app.orch.Scan(c.Context, info.Session)
		if err != nil {
			return err
		}
		printTokens(c, tokens)
		if len(tokens) == 0 {
			return nil
		}
		if !confirm(c, fmt.Sprintf("Send %d individual transactions?", len(tokens))) {
			fmt.Fprintln(c.App.Writer, "Cancelled")
			return nil
		}
		summary, err := app.orch.ExecuteTraditional(c.Context, info.Session, c.String(flagRecipient.Name))
		printSummary(c, summary)
		return err
	},
}

var testTransferCommand = &cli.Command{
	Name:  "test-transfer",
	Usage: "sends 1% of the first token as a single transaction",
	Flags: []cli.Flag{flagRecipient},
	Action: func(c *cli.Context) error {
		app, stop, info, err := startSession(c)
		if err != nil {
			return err
		}
		defer app.Close()
		defer stop()

		if _, err := app.orch.Scan(c.Context, info.Session); err != nil {
			return err
		}
		hash, err := app.orch.TestSingleTransfer(c.Context, info.Session, c.String(flagRecipient.Name))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Submitted %s\n", hash)
		return nil
	},
}

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "shows the most recent transfer attempts",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Value: 20, Usage: "number of attempts to show"},
	},
	Action: func(c *cli.Context) error {
		app, err := newApplication(c, false)
		if err != nil {
			return err
		}
		defer app.Close()

		attempts, err := app.journal.Recent(c.Context, c.Int("limit"))
		if err != nil {
			return err
		}
		if len(attempts) == 0 {
			fmt.Fprintln(c.App.Writer, "No transfer attempts recorded yet")
			return nil
		}
		w := newTable(c.App.Writer)
		fmt.Fprintln(w, "WHEN\tMODE\tSTATE\tCHAIN\tTOKENS\tOK/FAILED\tRECIPIENT\tDETAIL")
		for _, a := range attempts {
			detail := a.TxHash
			if detail == "" {
				detail = a.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d/%d\t%s\t%s\n",
				humanize.Time(a.FinishedAt), a.Mode, a.State, app.networks.NetworkName(a.ChainID),
				a.TokenCount, a.Succeeded, a.Failed, a.Recipient, detail)
		}
		return w.Flush()
	},
}

// startSession wires the services, attaches the status printer and connects the wallet.
func startSession(c *cli.Context) (*application, func(), sessionInfo, error) {
	app, err := newApplication(c, true)
	if err != nil {
		return nil, nil, sessionInfo{}, err
	}
	stop := attachPrinter(c.App.Writer, app.feed)
	info, err := app.connect(c.Context)
	if err != nil {
		stop()
		app.Close()
		return nil, nil, sessionInfo{}, err
	}
	fmt.Fprintf(c.App.Writer, "Connected %s on %s (%s)\n", info.Account, info.Network, info.ChainID)
	return app, stop, info, nil
}

// confirm asks a yes/no question on the app's reader unless --yes was given.
func confirm(c *cli.Context, question string) bool {
	if c.Bool(flagYes.Name) {
		return true
	}
	fmt.Fprintf(c.App.Writer, "%s [y/N]: ", question)
	line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
