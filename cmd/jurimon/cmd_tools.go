package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/jurimon/dbopen"
	"github.com/hazyhaar/jurimon/judit"
	"github.com/hazyhaar/jurimon/shield"
	"github.com/hazyhaar/jurimon/trace"
)

func init() {
	rootCmd.AddCommand(normalizeCmd, quotaCmd, maintenanceCmd, tracesCmd)
	tracesCmd.Flags().Duration("min", 0, "only statements at least this long (default trace.slow_threshold)")
	tracesCmd.Flags().String("op", "", "only statements of this operation, e.g. judit_create_request")
	tracesCmd.Flags().Int("limit", 20, "maximum entries")
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <file|->",
	Short: "Normalize a saved backend payload into a timeline (no backend call)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			body []byte
			err  error
		)
		if args[0] == "-" {
			body, err = io.ReadAll(cmd.InOrStdin())
		} else {
			body, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("read payload: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), judit.NormalizePayload(body))
	},
}

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Print the current query quota",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := setupLogging("error")
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout+5*time.Second)
		defer cancel()
		a, err := openApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()
		q := a.svc.Quota(ctx)
		if q.Loading {
			return fmt.Errorf("quota unavailable: backend did not answer")
		}
		return printJSON(cmd.OutOrStdout(), q)
	},
}

var maintenanceCmd = &cobra.Command{
	Use:       "maintenance <on|off> [message]",
	Short:     "Switch maintenance mode; running servers pick it up on the next poll",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var active bool
		switch args[0] {
		case "on":
			active = true
		case "off":
		default:
			return fmt.Errorf("want on or off, got %q", args[0])
		}
		msg := ""
		if len(args) == 2 {
			msg = args[1]
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll(), dbopen.WithSchema(shield.Schema))
		if err != nil {
			return fmt.Errorf("open %s: %w", cfg.DBPath, err)
		}
		defer db.Close()
		if err := shield.SetMaintenance(cmd.Context(), db, active, msg); err != nil {
			return fmt.Errorf("set maintenance: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "maintenance %s\n", args[0])
		return nil
	},
}

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "List recent slow SQL statements from the trace database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		f := trace.Filter{MinDuration: cfg.Trace.SlowThreshold}
		if cmd.Flags().Changed("min") {
			f.MinDuration, _ = cmd.Flags().GetDuration("min")
		}
		f.Operation, _ = cmd.Flags().GetString("op")
		f.Limit, _ = cmd.Flags().GetInt("limit")

		db, err := dbopen.Open(cfg.Trace.DBPath, dbopen.WithMkdirAll(), dbopen.WithSchema(trace.Schema))
		if err != nil {
			return fmt.Errorf("open %s: %w", cfg.Trace.DBPath, err)
		}
		defer db.Close()
		entries, err := trace.Recent(cmd.Context(), db, f)
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []trace.Entry{}
		}
		return printJSON(cmd.OutOrStdout(), entries)
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
