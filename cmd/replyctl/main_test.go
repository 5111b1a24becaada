package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/replyflow/internal/app/bootstrap"
	appconfig "github.com/wolfman30/replyflow/internal/config"
	"github.com/wolfman30/replyflow/internal/conversation"
)

// useTempStore points openStore at a fresh SQLite file shared by every
// command run in the test.
func useTempStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replyctl.db")
	prev := openStore
	openStore = func(ctx context.Context, _ *appconfig.Config) (bootstrap.Store, error) {
		return conversation.OpenSQLiteStore(ctx, path)
	}
	t.Cleanup(func() { openStore = prev })
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "menu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCatalogSeedAndShow(t *testing.T) {
	useTempStore(t)
	seed := writeSeed(t, "tenant: Moon Kitchen\nitems:\n  - name: Raita\n    price: 80\n  - name: Biryani\n    price: 350\n")

	out, err := run(t, "catalog", "seed", "--tenant", "3", "--file", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 2 items for tenant 3")

	out, err = run(t, "catalog", "show", "--tenant", "3")
	require.NoError(t, err)
	assert.Equal(t, "- Biryani: 350\n- Raita: 80\n", out)
}

func TestCatalogSeedRejectsInvalidFile(t *testing.T) {
	useTempStore(t)
	seed := writeSeed(t, "items:\n  - name: Naan\n    price: -5\n")

	_, err := run(t, "catalog", "seed", "--file", seed)
	require.Error(t, err)
}

func TestCatalogShowEmpty(t *testing.T) {
	useTempStore(t)
	out, err := run(t, "catalog", "show", "--tenant", "9")
	require.NoError(t, err)
	assert.Equal(t, "No menu items yet.\n", out)
}

func TestTranscript(t *testing.T) {
	path := useTempStore(t)
	ctx := context.Background()

	store, err := conversation.OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.EnsureTenant(ctx, 1, "Moon Kitchen"))
	id, err := store.GetOrCreateConversation(ctx, 1, "923001234567")
	require.NoError(t, err)
	require.NoError(t, store.AppendTurn(ctx, id, conversation.RoleCustomer, "2 biryani"))
	require.NoError(t, store.AppendTurn(ctx, id, conversation.RoleBot, "Total: 700"))
	require.NoError(t, store.Close())

	out, err := run(t, "transcript", "--address", "+92 300 1234567")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "customer")
	assert.Contains(t, lines[0], "2 biryani")
	assert.Contains(t, lines[1], "Total: 700")

	_, err = run(t, "transcript", "--address", "923009999999")
	require.Error(t, err)
}
