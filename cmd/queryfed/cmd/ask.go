package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/queryfed/queryfed/internal/models"
	"github.com/queryfed/queryfed/internal/server"
)

var (
	askMaxRows   int
	askMaxChunks int
	askTimeout   int
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question and exit",
	Args:  cobra.MinimumNArgs(1),
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

		res, err := sys.Pipeline.Ask(cmd.Context(), &models.AskRequest{
			Query:      strings.Join(args, " "),
			MaxRows:    askMaxRows,
			MaxChunks:  askMaxChunks,
			TimeoutSec: askTimeout,
		})
		if err != nil {
			return err
		}

		if askJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		fmt.Println(res.Answer)
		if len(res.Sources) > 0 {
			fmt.Println("\nSources:")
			for _, src := range res.Sources {
				line := fmt.Sprintf("  [%s] %s", src.Type, src.Identifier)
				if src.RowCount > 0 {
					line += fmt.Sprintf(" (%d rows)", src.RowCount)
				}
				if src.Error != "" {
					line += " - unavailable: " + src.Error
				}
				fmt.Println(line)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().IntVar(&askMaxRows, "max-rows", 0, "Row cap per database (default from server config)")
	askCmd.Flags().IntVar(&askMaxChunks, "max-chunks", 0, "Document chunk cap")
	askCmd.Flags().IntVar(&askTimeout, "timeout", 0, "Overall timeout in seconds")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full result as JSON")
	rootCmd.AddCommand(askCmd)
}
