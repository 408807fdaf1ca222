package commands

import (
	"fmt"

	"github.com/fenilmodi00/nuri-bid-crawler/services"
	"github.com/spf13/cobra"
)

var (
	exportFormat *string
	exportDir    *string
)

func init() {
	exportFormat = exportCmd.Flags().String("format", "json", "Output format: json or yaml.")
	exportDir = exportCmd.Flags().String("dir", "", "Output directory (default EXPORT_DIR).")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Writes every stored bid to a timestamped file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		dir := *exportDir
		if dir == "" {
			dir = cfg.ExportDir
		}
		result, err := services.NewExportService(store, nil).Export(cmd.Context(), dir, *exportFormat)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d bids to %s\n", result.Records, result.Path)
		return nil
	},
}
