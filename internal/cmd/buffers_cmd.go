package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var buffersCmd = &cobra.Command{
	Use:   "buffers",
	Short: "List configured buffers",
	RunE:  runBuffers,
}

func runBuffers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	for _, b := range cfg.Buffers {
		slot := b.Slot
		if slot == "" {
			slot = "text"
		}
		fmt.Printf("%-24s capacity %-4d %s\n", b.Name, b.Capacity, slot)
	}
	return nil
}
