package commands

import (
	"os"

	"ehms-backend/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(announcementsCmd)
}

var announcementsCmd = &cobra.Command{
	Use:   "announcements",
	Short: "Fetches the news board and prints the announcements.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := readConfig()

		user := resolveUser(ctx, cfg)
		client := createClient(ctx, cfg)

		announcements, err := client.Announcements(ctx, user)
		if err != nil {
			serviceutil.Fatal("fetch announcements", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Date", "Title", "Body"})
		for _, a := range announcements {
			t.AppendRow(table.Row{a.Date, a.Title, a.Body})
		}
		t.Render()
	},
}
