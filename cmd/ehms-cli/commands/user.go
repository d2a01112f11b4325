package commands

import (
	"os"

	"ehms-backend/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(userCmd)
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Fetches and prints the user's profile details.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := readConfig()

		user := resolveUser(ctx, cfg)
		client := createClient(ctx, cfg)

		details, err := client.UserDetails(ctx, user)
		if err != nil {
			serviceutil.Fatal("fetch user details", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRow(table.Row{"Name", details.Name})
		t.AppendRow(table.Row{"Album number", details.AlbumNumber})
		t.AppendRow(table.Row{"Faculty", details.Faculty})
		t.AppendRow(table.Row{"Field of study", details.FieldOfStudy})
		t.AppendRow(table.Row{"E-mail", details.Email})
		t.Render()
	},
}
