package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/goeconomy/internal/adapter/repository/file"
	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/infrastructure/auth"
)

type options struct {
	baseURL string
	token   string
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "goeconomy-cli",
		Short:         "GoEconomy CLI tool",
		Long:          `A command line interface for interacting with the GoEconomy API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("GOECONOMY_URL", "http://localhost:8080"), "Base URL of the GoEconomy API")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("GOECONOMY_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		balanceCmd(opts),
		historyCmd(opts),
		inventoryCmd(opts),
		transferCmd(opts),
		orderCmd(opts),
		reconcileCmd(opts),
		snapshotCmd(opts),
		tokenCmd(),
	)

	return rootCmd
}

func balanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <owner>",
		Short: "Show an account's balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, http.MethodGet, "/api/v1/accounts/"+url.PathEscape(args[0]), nil)
		},
	}
}

func historyCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <owner>",
		Short: "List recent journal entries of an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/accounts/%s/history?limit=%d", url.PathEscape(args[0]), limit)
			return opts.call(cmd, http.MethodGet, path, nil)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries")
	return cmd
}

func inventoryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inventory <owner>",
		Short: "Show an owner's item holdings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, http.MethodGet, "/api/v1/accounts/"+url.PathEscape(args[0])+"/inventory", nil)
		},
	}
}

func transferCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <from> <to> <currency> <amount>",
		Short: "Transfer currency between owners",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, http.MethodPost, "/api/v1/transfers", map[string]string{
				"from":     args[0],
				"to":       args[1],
				"currency": args[2],
				"amount":   args[3],
			})
		},
	}
}

func orderCmd(opts *options) *cobra.Command {
	orderCmd := &cobra.Command{
		Use:   "order",
		Short: "Market order operations",
	}

	placeCmd := &cobra.Command{
		Use:   "place <owner> <BUY|SELL> <item> <currency> <quantity> <price>",
		Short: "Place a limit order",
		Args:  cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseInt(args[4], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[4])
			}
			return opts.call(cmd, http.MethodPost, "/api/v1/orders", map[string]any{
				"owner":          args[0],
				"side":           strings.ToUpper(args[1]),
				"item_id":        args[2],
				"currency":       args[3],
				"quantity":       qty,
				"price_per_unit": args[5],
			})
		},
	}

	var owner string
	cancelCmd := &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel an active order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/orders/%s?owner=%s", url.PathEscape(args[0]), url.QueryEscape(owner))
			return opts.call(cmd, http.MethodDelete, path, nil)
		},
	}
	cancelCmd.Flags().StringVar(&owner, "owner", "", "Owner of the order")
	_ = cancelCmd.MarkFlagRequired("owner")

	var depth int
	bookCmd := &cobra.Command{
		Use:   "book <item> <currency>",
		Short: "Show the order book of a market",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/markets/%s/%s?depth=%d", url.PathEscape(args[0]), url.PathEscape(args[1]), depth)
			return opts.call(cmd, http.MethodGet, path, nil)
		},
	}
	bookCmd.Flags().IntVar(&depth, "depth", 10, "Price levels per side")

	orderCmd.AddCommand(placeCmd, cancelCmd, bookCmd)
	return orderCmd
}

func reconcileCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Check balances against open escrow",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := opts.do(cmd, http.MethodGet, "/api/v1/economy/reconcile", nil)
			if err != nil {
				return err
			}

			var report struct {
				Consistent bool `json:"consistent"`
			}
			if err := json.Unmarshal(body, &report); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			printJSON(out, json.RawMessage(body))
			if !report.Consistent {
				return fmt.Errorf("reconciliation FAILED")
			}
			fmt.Fprintln(out, "Reconciliation PASSED")
			return nil
		},
	}
}

func snapshotCmd(opts *options) *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Persist the economy state now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, http.MethodPost, "/api/v1/admin/snapshot", nil)
		},
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Summarize a snapshot file without a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := file.ReadFile(args[0])
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), summarize(snap))
			return nil
		},
	}

	snapshotCmd.AddCommand(inspectCmd)
	return snapshotCmd
}

func tokenCmd() *cobra.Command {
	var (
		secret string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a signed API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			r := domain.Role(role)
			if !r.IsValid() {
				return fmt.Errorf("unknown role %q", role)
			}
			tok, err := auth.NewJWTManager(secret, ttl).Generate(args[0], r)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleViewer), "viewer, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

// call performs a request and prints the JSON response.
func (o *options) call(cmd *cobra.Command, method, path string, payload any) error {
	body, err := o.do(cmd, method, path, payload)
	if err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), json.RawMessage(body))
	return nil
}

// do performs a request. Non-2xx responses become errors carrying the
// server's message.
func (o *options) do(cmd *cobra.Command, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(cmd.Context(), method, strings.TrimRight(o.baseURL, "/")+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	client := &http.Client{Timeout: o.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Message != "" {
				return nil, fmt.Errorf("%s (status %d): %s", apiErr.Error, resp.StatusCode, apiErr.Message)
			}
			return nil, fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("request failed (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	return body, nil
}

type snapshotSummary struct {
	Version    int               `json:"version"`
	TakenAt    time.Time         `json:"taken_at"`
	Accounts   int               `json:"accounts"`
	Holdings   int               `json:"holdings"`
	Orders     int               `json:"orders"`
	Entries    int               `json:"journal_entries"`
	Currencies map[string]int    `json:"accounts_per_currency"`
	Fees       map[string]string `json:"fees_collected,omitempty"`
}

func summarize(s *domain.Snapshot) snapshotSummary {
	sum := snapshotSummary{
		Version:    s.Version,
		TakenAt:    s.TakenAt,
		Accounts:   len(s.Accounts),
		Holdings:   len(s.Holdings),
		Orders:     len(s.Orders),
		Entries:    len(s.Journal),
		Currencies: map[string]int{},
		Fees:       map[string]string{},
	}
	for code, amount := range s.FeesCollected {
		sum.Fees[code] = amount.String()
	}
	for _, acc := range s.Accounts {
		for code := range acc.Balances {
			sum.Currencies[code]++
		}
	}
	return sum
}

func printJSON(w io.Writer, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "%v\n", v)
		return
	}
	fmt.Fprintln(w, string(data))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
