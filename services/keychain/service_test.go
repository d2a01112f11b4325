package keychain

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ehms-backend/lib/telemetry"
	"ehms-backend/services/keychain/db"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupService(t *testing.T) Service {
	cleanup := telemetry.SetupForTesting(t, "test:keychain")
	t.Cleanup(cleanup)

	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlite.Close() })

	_, err = sqlite.Exec(db.Schema)
	if err != nil {
		t.Fatal(err)
	}
	return NewService(sqlite)
}

func TestService(t *testing.T) {
	service := setupService(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	{
		_, found, err := service.GetUsernamePassword(ctx, "ehms", "jkowalski")
		require.NoError(t, err)
		require.False(t, found)
	}
	{
		err := service.SetUsernamePassword(ctx, "ehms", "jkowalski", UsernamePassword{
			Username: "jkowalski",
			Password: "hunter2",
		})
		require.NoError(t, err)

		key, found, err := service.GetUsernamePassword(ctx, "ehms", "jkowalski")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, UsernamePassword{Username: "jkowalski", Password: "hunter2"}, key)
	}
	{
		// overwrite under the same key
		err := service.SetUsernamePassword(ctx, "ehms", "jkowalski", UsernamePassword{
			Username: "jkowalski",
			Password: "correct horse battery staple",
		})
		require.NoError(t, err)

		key, found, err := service.GetUsernamePassword(ctx, "ehms", "jkowalski")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "correct horse battery staple", key.Password)
	}
	{
		// namespaces are isolated
		_, found, err := service.GetUsernamePassword(ctx, "other-portal", "jkowalski")
		require.NoError(t, err)
		require.False(t, found)
	}
	{
		// listing is scoped to the namespace
		ids, err := service.ListUsernamePassword(ctx, "ehms")
		require.NoError(t, err)
		require.Equal(t, []string{"jkowalski"}, ids)

		ids, err = service.ListUsernamePassword(ctx, "other-portal")
		require.NoError(t, err)
		require.Empty(t, ids)
	}
	{
		err := service.DeleteUsernamePassword(ctx, "ehms", "jkowalski")
		require.NoError(t, err)

		_, found, err := service.GetUsernamePassword(ctx, "ehms", "jkowalski")
		require.NoError(t, err)
		require.False(t, found)
	}
}
