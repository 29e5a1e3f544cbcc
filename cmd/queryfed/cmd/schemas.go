package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queryfed/queryfed/internal/server"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "Print the discovered schema of every configured database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		sys, err := server.Assemble(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer sys.Close()

		snaps, err := sys.Catalog.GetAllSchemas(cmd.Context())
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			fmt.Printf("%s (%s)\n", snap.DatabaseID, snap.Dialect)
			for _, t := range snap.Tables {
				fmt.Printf("  %s", t.Name)
				if t.RowCount > 0 {
					fmt.Printf(" [%d rows]", t.RowCount)
				}
				fmt.Println()
				for _, col := range t.Columns {
					fmt.Printf("    %-30s %s\n", col.Name, col.Type)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemasCmd)
}
