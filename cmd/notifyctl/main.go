// Command notifyctl is the operator CLI: inspect the client registry, preview
// rendered notifications and send test emails with a client's credentials.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nyashahama/shipment-notifier/internal/config"
	"github.com/nyashahama/shipment-notifier/internal/email"
	"github.com/nyashahama/shipment-notifier/internal/notify"
	"github.com/nyashahama/shipment-notifier/internal/registry"
	"github.com/nyashahama/shipment-notifier/internal/render"
	"github.com/nyashahama/shipment-notifier/internal/shipment"
)

// tester sends the per-client test email. *notify.Dispatcher satisfies it.
type tester interface {
	SendTest(ctx context.Context, clientID string) notify.Outcome
}

// deps is what the commands need; built lazily so that `render` works
// without any configuration.
type deps struct {
	clients *registry.Registry
	tester  tester
}

func main() {
	root := newRootCmd(loadDeps)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func loadDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	clients, err := registry.Load(cfg.ClientsFile, os.Getenv)
	if err != nil {
		return nil, err
	}
	provider, err := email.NewProvider(email.Options{
		Transport:     cfg.EmailTransport,
		ResendBaseURL: cfg.ResendBaseURL,
		SMTPHost:      cfg.SMTPHost,
		SMTPPort:      cfg.SMTPPort,
		SMTPUser:      cfg.SMTPUser,
		Timeout:       cfg.EmailSendTimeout,
	})
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return &deps{
		clients: clients,
		tester:  notify.NewDispatcher(clients, provider, nil, logger, cfg.EmailSendTimeout),
	}, nil
}

func newRootCmd(load func() (*deps, error)) *cobra.Command {
	root := &cobra.Command{
		Use:           "notifyctl",
		Short:         "Operate the shipment notifier: clients, templates and test emails",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newClientsCmd(load))
	root.AddCommand(newRenderCmd(load))
	root.AddCommand(newTestEmailCmd(load))
	return root
}

// ─── clients ──────────────────────────────────────────────────────────────────

func newClientsCmd(load func() (*deps, error)) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "List configured clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := load()
			if err != nil {
				return err
			}
			return printClients(cmd.OutOrStdout(), d.clients.Profiles(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

type clientRow struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Template   string   `json:"emailTemplate"`
	From       string   `json:"from"`
	To         []string `json:"to"`
	HasAPIKey  bool     `json:"hasApiKey"`
	WebhookURL string   `json:"webhookUrl"`
}

func printClients(w io.Writer, profiles []registry.Profile, asJSON bool) error {
	rows := make([]clientRow, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, clientRow{
			ID:         p.ID,
			Name:       p.Name,
			Template:   p.Template,
			From:       p.Sender.From,
			To:         p.Sender.To,
			HasAPIKey:  p.HasCredentials(),
			WebhookURL: "/webhook/" + p.ID + "/shipment",
		})
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTEMPLATE\tFROM\tTO\tAPI KEY")
	for _, r := range rows {
		key := "missing"
		if r.HasAPIKey {
			key = "set"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Template, r.From, strings.Join(r.To, ","), key)
	}
	return tw.Flush()
}

// ─── render ───────────────────────────────────────────────────────────────────

func newRenderCmd(load func() (*deps, error)) *cobra.Command {
	var (
		templateID string
		clientID   string
		eventPath  string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the notification body for an event",
		Long: "Render reads a webhook payload (a file, or - for stdin) and prints the body\n" +
			"that would be emailed. Pick the variant with --template, or with --client\n" +
			"to use that client's configured template.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientID != "" {
				d, err := load()
				if err != nil {
					return err
				}
				p, ok := d.clients.Lookup(clientID)
				if !ok {
					return fmt.Errorf("client %s not found", clientID)
				}
				templateID = p.Template
			}

			ev, err := readEvent(cmd.InOrStdin(), eventPath)
			if err != nil {
				return err
			}

			res := render.Explain(templateID, ev)
			if res.Err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; used %s\n", res.Err, res.Used)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Body)
			return nil
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "default", "template id: client1|tabular, client2|narrative, default")
	cmd.Flags().StringVar(&clientID, "client", "", "use this client's configured template")
	cmd.Flags().StringVar(&eventPath, "event", "-", "path to a JSON webhook payload, - for stdin")
	return cmd
}

func readEvent(stdin io.Reader, path string) (shipment.Event, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return shipment.Event{}, err
		}
		defer f.Close()
		r = f
	}

	var ev shipment.Event
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return shipment.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// ─── test-email ───────────────────────────────────────────────────────────────

func newTestEmailCmd(load func() (*deps, error)) *cobra.Command {
	var (
		all         bool
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "test-email [clientId...]",
		Short: "Send a test email with each client's sender configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("give at least one client id, or --all")
			}

			d, err := load()
			if err != nil {
				return err
			}

			ids := args
			if all {
				ids = ids[:0:0]
				for _, p := range d.clients.Profiles() {
					ids = append(ids, p.ID)
				}
			}

			results := sendTests(cmd.Context(), d.tester, ids, concurrency)
			return reportTests(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "test every configured client")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel sends")
	return cmd
}

type testResult struct {
	clientID string
	outcome  notify.Outcome
}

func sendTests(ctx context.Context, t tester, ids []string, concurrency int) []testResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu      sync.Mutex
		results = make([]testResult, 0, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			out := t.SendTest(gctx, id)
			mu.Lock()
			results = append(results, testResult{clientID: id, outcome: out})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].clientID, results[j].clientID
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return results
}

func reportTests(w io.Writer, results []testResult) error {
	failed := 0
	for _, r := range results {
		if r.outcome.Success {
			fmt.Fprintf(w, "ok    client %s (%s) email_id=%s\n", r.clientID, r.outcome.ClientName, r.outcome.EmailID)
			continue
		}
		failed++
		fmt.Fprintf(w, "FAIL  client %s: %s\n", r.clientID, r.outcome.Error)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d test emails failed", failed, len(results))
	}
	return nil
}
