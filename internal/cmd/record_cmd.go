package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

var rmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a record",
	Long: `Delete a record. Buffers of other records may still reference it; those
entries show up as missing when viewed, they do not block deletion.`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List records",
	RunE:  runLs,
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.CreateRecord(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Created record %s (%s)\n", rec.Name, rec.RecordID)
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteRecord(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted record %s\n", args[0])
	return nil
}

func runLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.ListRecords(cmd.Context())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No records.")
		return nil
	}
	for _, rec := range records {
		created := time.UnixMilli(rec.CreatedAtUnixMs).Format("2006-01-02 15:04")
		fmt.Printf("%-24s %s  %s\n", rec.Name, rec.RecordID, created)
	}
	return nil
}
