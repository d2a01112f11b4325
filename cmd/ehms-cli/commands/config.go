package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"ehms-backend/lib/configutil"
	"ehms-backend/lib/scrapers/ehms/core"
	"ehms-backend/lib/scrapers/ehms/view"
	"ehms-backend/lib/util/serviceutil"
	"ehms-backend/services/keychain"
	keychaindb "ehms-backend/services/keychain/db"

	_ "modernc.org/sqlite"
)

const credentialNamespace = "ehms"

type Config struct {
	BaseUrl  string `json:"base_url"`
	Keychain string `json:"keychain"`
	User     string `json:"user"`
}

func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("read config", err)
	}
	if cfg.BaseUrl == "" {
		cfg.BaseUrl = "https://ehms.pk.edu.pl"
	}
	if cfg.Keychain == "" {
		cfg.Keychain = "keychain.db"
	}
	return cfg
}

func openKeychain(cfg Config) keychain.Service {
	sqlite, err := sql.Open("sqlite", cfg.Keychain)
	if err != nil {
		serviceutil.Fatal("open keychain database", err)
	}
	_, err = sqlite.Exec(keychaindb.Schema)
	if err != nil {
		serviceutil.Fatal("migrate keychain database", err)
	}
	return keychain.NewService(sqlite)
}

// resolveUser loads credentials from the keychain. An explicit `user`
// in the config wins; otherwise a lone stored credential is used so
// `login` followed by a fetch command just works.
func resolveUser(ctx context.Context, cfg Config) *core.User {
	kc := openKeychain(cfg)

	id := cfg.User
	if id == "" {
		ids, err := kc.ListUsernamePassword(ctx, credentialNamespace)
		if err != nil {
			serviceutil.Fatal("list keychain credentials", err)
		}
		switch len(ids) {
		case 0:
			serviceutil.Fatal(
				"no stored credentials",
				errors.New("run `ehms-cli login` first"),
			)
		case 1:
			id = ids[0]
		default:
			serviceutil.Fatal(
				"multiple stored credentials",
				errors.New("set `user` in config.json5 to pick one"),
			)
		}
	}

	key, found, err := kc.GetUsernamePassword(ctx, credentialNamespace, id)
	if err != nil {
		serviceutil.Fatal("read credentials from keychain", err)
	}
	if !found {
		serviceutil.Fatal(
			"no stored credentials",
			fmt.Errorf("no credentials stored for user %q", id),
		)
	}

	user, err := core.NewUser(key.Username, key.Password)
	if err != nil {
		serviceutil.Fatal("invalid stored credentials", err)
	}
	return user
}

func createClient(ctx context.Context, cfg Config) view.Client {
	coreClient, err := core.NewClient(ctx, core.ClientOptions{
		BaseUrl: cfg.BaseUrl,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize ehms client", err)
	}
	return view.NewClient(coreClient)
}
