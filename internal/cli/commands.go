package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"receipts/internal/core"
	"receipts/internal/format"
	"receipts/internal/handler"
	receiptshttp "receipts/internal/http"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and image directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := BuildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "initialized archive at %s\n", app.Config.DBPath)
			return nil
		},
	}
}

func newAddCmd() *cobra.Command {
	var (
		vendor    string
		date      string
		total     string
		currency  string
		cat       string
		items     []string
		itemsJSON string
		image     string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Archive a receipt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := BuildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			parsedDate, err := core.ParseDate(date)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}
			cents, err := core.ParseDecimalToCents(total)
			if err != nil {
				return fmt.Errorf("--total is not a valid amount: %w", err)
			}

			rec := core.Receipt{
				Vendor:   vendor,
				Date:     parsedDate,
				Total:    core.Money{Cents: cents},
				Currency: currency,
				Category: cat,
			}

			rec.Items, err = parseItems(items, itemsJSON)
			if err != nil {
				return err
			}

			stored, err := app.Service.Archive(cmd.Context(), rec, image)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), handler.NewReceiptView(stored))
		},
	}

	cmd.Flags().StringVar(&vendor, "vendor", "", "merchant name (required)")
	cmd.Flags().StringVar(&date, "date", "", "purchase date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&total, "total", "", "receipt total, e.g. 45.50 (required)")
	cmd.Flags().StringVar(&currency, "currency", "", "3-letter currency code (defaults to home currency)")
	cmd.Flags().StringVar(&cat, "category", "", "spending category (defaults to keyword match)")
	cmd.Flags().StringArrayVar(&items, "item", nil, "line item as name=price, repeatable")
	cmd.Flags().StringVar(&itemsJSON, "items-json", "", `line items as JSON, e.g. [{"name":"milk","price":"4.50"}]`)
	cmd.Flags().StringVar(&image, "image", "", "path to the receipt image to store")
	cmd.MarkFlagRequired("vendor")
	cmd.MarkFlagRequired("date")
	cmd.MarkFlagRequired("total")

	return cmd
}

func parseItems(pairs []string, itemsJSON string) ([]core.Item, error) {
	if itemsJSON != "" && len(pairs) > 0 {
		return nil, errors.New("use either --item or --items-json, not both")
	}

	if itemsJSON != "" {
		var payloads []handler.ItemPayload
		if err := json.Unmarshal([]byte(itemsJSON), &payloads); err != nil {
			return nil, fmt.Errorf("--items-json is not valid JSON: %w", err)
		}
		out := make([]core.Item, 0, len(payloads))
		for _, p := range payloads {
			cents, err := core.ParseDecimalToCents(p.Price.String())
			if err != nil {
				return nil, fmt.Errorf("item %q has an invalid price %q", p.Name, p.Price)
			}
			out = append(out, core.Item{Name: p.Name, Price: core.Money{Cents: cents}})
		}
		return out, nil
	}

	out := make([]core.Item, 0, len(pairs))
	for _, pair := range pairs {
		name, price, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("--item must be name=price, got %q", pair)
		}
		cents, err := core.ParseDecimalToCents(price)
		if err != nil {
			return nil, fmt.Errorf("item %q has an invalid price %q", name, price)
		}
		out = append(out, core.Item{Name: name, Price: core.Money{Cents: cents}})
	}
	return out, nil
}

func newShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("receipt id must be an integer, got %q", args[0])
			}

			app, err := BuildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			rec, err := app.Service.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), handler.NewReceiptView(rec))
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.Receipt(rec))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the receipt as JSON")
	return cmd
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <token>",
		Short: "Find receipts whose vendor contains a token",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := BuildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Engine.Execute(cmd.Context(), core.SearchIntent{Token: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.Result(res))
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var (
		cat   string
		month string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List receipts, optionally by category or month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := BuildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			filter := core.ReceiptFilter{Category: cat}
			if month != "" {
				filter.Month, err = core.ParseMonth(month)
				if err != nil {
					return fmt.Errorf("--month must be YYYY-MM: %w", err)
				}
			}

			receipts, err := app.Store.Find(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(receipts) > app.Config.ListLimit {
				receipts = receipts[:app.Config.ListLimit]
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.Receipts(receipts))
			return nil
		},
	}

	cmd.Flags().StringVar(&cat, "category", "", "filter by category")
	cmd.Flags().StringVar(&month, "month", "", "filter by month, YYYY-MM")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <YYYY-MM>",
		Short: "Summarize a month's spending per currency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			month, err := core.ParseMonth(args[0])
			if err != nil {
				return fmt.Errorf("month must be YYYY-MM: %w", err)
			}

			app, err := BuildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Engine.Execute(cmd.Context(), core.SummarizeIntent{Month: month})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.Result(res))
			return nil
		},
	}
}

func newNLPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nlp <utterance>",
		Short: "Answer a free-text question, English or Chinese",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := BuildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			intent := app.Interpreter.Interpret(strings.Join(args, " "))
			res, err := app.Engine.Execute(cmd.Context(), intent)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.Result(res))
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	var (
		yes         bool
		deleteImage bool
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("receipt id must be an integer, got %q", args[0])
			}

			if !yes && !confirm(cmd, fmt.Sprintf("delete receipt #%d? [y/N] ", id)) {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}

			app, err := BuildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Service.Delete(cmd.Context(), id, deleteImage); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted receipt #%d\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&deleteImage, "delete-image", false, "also remove the stored image file")
	return cmd
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func newHandleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "handle",
		Short: "Archive a recognizer JSON payload from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}

			app, err := BuildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			resp, err := app.Handler.Handle(cmd.Context(), raw)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("payload rejected: %s", resp.Error)
			}
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := BuildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			srv := receiptshttp.NewServer(":"+app.Config.Port, app.Service, app.Handler, app.Store, app.Interpreter, app.Config.ListLimit)

			ctx, done := GracefulShutdown(slog.Default(), 10*time.Second, func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "error", err)
				}
			})

			slog.Info("Serving receipt API", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			WaitForShutdown(ctx, done)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
