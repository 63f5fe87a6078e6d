package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runger/cyclebuf/internal/config"
	"github.com/runger/cyclebuf/internal/storage"
)

var showCmd = &cobra.Command{
	Use:   "show <record> [buffer]",
	Short: "Show a record's buffer contents, oldest first",
	Long: `Show the logical contents of a record's buffers, oldest first.

Without a buffer argument, every configured buffer is shown. Reference
buffers are resolved in one lookup; entries whose target record was deleted
are shown as (missing).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	rec, err := store.GetRecord(ctx, args[0])
	if err != nil {
		return err
	}

	buffers := cfg.Buffers
	if len(args) == 2 {
		buffers = nil
		for _, b := range cfg.Buffers {
			if b.Name == args[1] {
				buffers = []config.BufferConfig{b}
			}
		}
		if buffers == nil {
			return fmt.Errorf("buffer %q is not configured", args[1])
		}
	}

	for _, b := range buffers {
		entries, err := store.ViewBuffer(ctx, rec.RecordID, b.Name)
		if err != nil {
			return err
		}

		fmt.Printf("%s (%d/%d):\n", b.Name, len(entries), b.Capacity)
		if len(entries) == 0 {
			fmt.Println("  (empty)")
			continue
		}
		for i, e := range entries {
			fmt.Printf("  %2d. %s\n", i+1, formatEntry(e))
		}
	}
	return nil
}

func formatEntry(e storage.Entry) string {
	if e.Missing {
		return fmt.Sprintf("(missing) %v", e.Value)
	}
	if e.Record != nil {
		return e.Record.Name
	}
	if raw, ok := e.Value.(json.RawMessage); ok {
		return string(raw)
	}
	return fmt.Sprintf("%v", e.Value)
}
