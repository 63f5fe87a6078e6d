package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and allocate buffer columns",
	Long: `Create the cyclebuf database and allocate columns for every buffer in the
configuration. Running init again after a config change allocates columns for
new buffers; existing buffers and their data are left untouched.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("Initialized %d buffer(s):\n", len(cfg.Buffers))
	for _, b := range cfg.Buffers {
		slot := b.Slot
		if slot == "" {
			slot = "text"
		}
		fmt.Printf("  %-16s capacity=%-4d slot=%s\n", b.Name, b.Capacity, slot)
	}
	return nil
}
