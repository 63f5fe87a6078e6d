package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runger/cyclebuf/internal/config"
	"github.com/runger/cyclebuf/internal/storage"
)

var appendStaged bool

var appendCmd = &cobra.Command{
	Use:   "append <record> <buffer> <value>",
	Short: "Append a value to a record's buffer",
	Long: `Append a value to a record's buffer, evicting the oldest entry once the
buffer is full.

By default the append runs as one atomic conditional update inside SQLite:
the target slot, pointer advance, and length clamp are all computed against
the current row, so concurrent appenders never lose writes. With --staged the
append runs in memory against a loaded copy and is flushed back, which is the
mode to combine with other record changes when the caller owns the record.

For buffers with slot type "record", the value is the name of the record to
reference.

Examples:
  cyclebuf append playlist recent_tracks "Song Title"
  cyclebuf append board recent_editors alice
  cyclebuf append server load_samples 0.73 --staged`,
	Args: cobra.ExactArgs(3),
	RunE: runAppend,
}

func init() {
	appendCmd.Flags().BoolVar(&appendStaged, "staged", false, "Stage the append in memory and flush, instead of updating atomically")
}

func runAppend(cmd *cobra.Command, args []string) error {
	recordName, bufferName, rawValue := args[0], args[1], args[2]

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
	rec, err := store.GetRecord(ctx, recordName)
	if err != nil {
		return err
	}

	value, err := resolveValue(cfg, store, cmd, bufferName, rawValue)
	if err != nil {
		return err
	}

	if appendStaged {
		err = store.AppendStaged(ctx, rec.RecordID, bufferName, value)
	} else {
		err = store.AppendAtomic(ctx, rec.RecordID, bufferName, value)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Appended to %s.%s\n", recordName, bufferName)
	return nil
}

// resolveValue maps the CLI argument to the value the store expects: for
// record buffers the named record itself, for json buffers a raw document
// when the argument parses as JSON and a plain string otherwise, and the raw
// string for every other buffer's codec to interpret.
func resolveValue(cfg *config.Config, store *storage.SQLiteStore, cmd *cobra.Command, bufferName, rawValue string) (any, error) {
	for _, b := range cfg.Buffers {
		if b.Name != bufferName {
			continue
		}
		switch b.Slot {
		case "record":
			ref, err := store.GetRecord(cmd.Context(), rawValue)
			if err != nil {
				return nil, fmt.Errorf("referenced record %q: %w", rawValue, err)
			}
			return ref, nil
		case "json":
			if json.Valid([]byte(rawValue)) {
				return json.RawMessage(rawValue), nil
			}
			return rawValue, nil
		}
	}
	return rawValue, nil
}
