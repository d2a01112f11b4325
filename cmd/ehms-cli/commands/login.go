package commands

import (
	"log/slog"

	"ehms-backend/lib/scrapers/ehms/core"
	"ehms-backend/lib/util/serviceutil"
	"ehms-backend/services/keychain"

	"github.com/spf13/cobra"
)

var loginUsername *string
var loginPassword *string

func init() {
	loginUsername = loginCmd.Flags().String("username", "", "The portal login.")
	loginPassword = loginCmd.Flags().String("password", "", "The portal password.")
	loginCmd.MarkFlagRequired("username")
	loginCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login --username <login> --password <password>",
	Short: "Stores portal credentials in the keychain.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()

		// reject blank credentials before they reach the keychain
		_, err := core.NewUser(*loginUsername, *loginPassword)
		if err != nil {
			serviceutil.Fatal("invalid credentials", err)
		}

		kc := openKeychain(cfg)
		err = kc.SetUsernamePassword(
			cmd.Context(),
			credentialNamespace,
			*loginUsername,
			keychain.UsernamePassword{
				Username: *loginUsername,
				Password: *loginPassword,
			},
		)
		if err != nil {
			serviceutil.Fatal("store credentials", err)
		}

		slog.Info("stored credentials", "user", *loginUsername, "keychain", cfg.Keychain)
	},
}
