package commands

import (
	"fmt"
	"io"

	"github.com/fenilmodi00/nuri-bid-crawler/database"
	"github.com/fenilmodi00/nuri-bid-crawler/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var (
	listStatus *string
	listLimit  *int
)

func init() {
	listStatus = listCmd.Flags().String("status", "", "Only show bids with this portal status.")
	listLimit = listCmd.Flags().Int("limit", 20, "Maximum rows to show, 0 for all.")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Shows stored bids, most recently collected first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		bids, err := store.List(cmd.Context(), database.ListOptions{Status: *listStatus, Limit: *listLimit})
		if err != nil {
			return err
		}
		total, err := store.Count(cmd.Context())
		if err != nil {
			return err
		}
		renderBids(cmd.OutOrStdout(), bids, total)
		return nil
	},
}

func renderBids(w io.Writer, bids []models.BidRecord, total int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Bid number", "Status", "Deadline", "Title", "Collected"})
	for _, b := range bids {
		t.AppendRow(table.Row{b.BidNumber, b.Status, b.Deadline, text.Trim(b.Title, 40), b.CollectedAt.Format("2006-01-02 15:04")})
	}
	t.AppendFooter(table.Row{"", "", "", "shown / stored", fmt.Sprintf("%d / %d", len(bids), total)})
	t.SetStyle(table.StyleLight)
	t.Render()
}
