package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnomegl/teleinvite/internal/config"
	"github.com/gnomegl/teleinvite/internal/database"
	"github.com/gnomegl/teleinvite/internal/types"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append(args, "--env-file="))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigureWithPresets(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TG_ARE_YOU_SURE", "y")
	t.Setenv("TG_CURRENT_SESSION_NAME", "alice")
	t.Setenv("TG_WANTED_TO_ADD_MORE_CLIENT", "n")
	t.Setenv("TG_WANT_TO_USE_PROXY", "n")

	_, err := execute(t, "", "configure", "--home", home,
		"--api-id", "4242", "--api-hash", "cafe", "--group-id=-1001234567")
	require.NoError(t, err)

	cfg, err := config.Load(config.GetConfigPath(home))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, []string{"alice"}, cfg.SessionNames())
	assert.Equal(t, &config.API{APIID: 4242, APIHash: "cafe"}, cfg.API)
	assert.Equal(t, int64(1234567), cfg.TargetID())
	assert.Nil(t, cfg.Proxy)

	assert.FileExists(t, config.GetLogPath(home))
}

func TestSkipWizardNeedsSavedConfig(t *testing.T) {
	home := t.TempDir()
	_, err := execute(t, "", "--home", home, "--skip-wizard")
	assert.ErrorContains(t, err, "no saved configuration")
}

func TestExclude(t *testing.T) {
	home := t.TempDir()

	out, err := execute(t, "", "exclude", "add", "5,6", "7", "--home", home)
	require.NoError(t, err)
	assert.Contains(t, out, "3 users excluded")

	out, err = execute(t, "", "exclude", "add", "6", "--home", home)
	require.NoError(t, err)
	assert.Contains(t, out, "0 users excluded")

	out, err = execute(t, "", "exclude", "remove", "6", "--home", home)
	require.NoError(t, err)
	assert.Contains(t, out, "1 users removed")

	out, err = execute(t, "", "exclude", "list", "--home", home)
	require.NoError(t, err)
	assert.Equal(t, "5\n7\n", out)

	_, err = execute(t, "", "exclude", "add", "abc", "--home", home)
	assert.ErrorContains(t, err, "invalid user ID: abc")
}

func TestHistory(t *testing.T) {
	home := t.TempDir()
	exports := t.TempDir()
	ctx := context.Background()

	db, err := database.New(config.GetDatabasePath(home))
	require.NoError(t, err)
	runID, err := db.StartRun(ctx, 1234)
	require.NoError(t, err)
	require.NoError(t, db.RecordInvites(ctx, runID, 1234, 1, "alice", []int64{10, 11}))
	require.NoError(t, db.FinishRun(ctx, runID, 2))
	require.NoError(t, db.Close())

	out, err := execute(t, "", "history", "--home", home, "--json", "--csv", "--output-dir", exports)
	require.NoError(t, err)
	assert.Contains(t, out, "Target: -1001234 | Session: alice | Invited: 2")
	assert.Contains(t, out, runID)

	assert.FileExists(t, filepath.Join(exports, "teleinvite_history.json"))
	data, err := os.ReadFile(filepath.Join(exports, "teleinvite_history.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "alice")
}

func TestHistoryEmpty(t *testing.T) {
	out, err := execute(t, "", "history", "--home", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No invitations recorded yet")
}

func TestApplyPresets(t *testing.T) {
	saved := &config.Config{
		Clients: []config.Client{{SessionName: "a"}},
		API:     &config.API{APIID: 1, APIHash: "old"},
		Group:   &config.Group{GroupIDToInvite: 5},
	}
	v := viper.New()
	v.Set("api_hash", "new")
	v.Set("invite_group_id", int64(-1009))

	cfg := applyPresets(saved, v)
	assert.Equal(t, &config.API{APIID: 1, APIHash: "new"}, cfg.API)
	assert.Equal(t, int64(9), cfg.TargetID())
	assert.Equal(t, "old", saved.API.APIHash)
}

func TestPrintConversations(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	printConversations(cmd, []types.Conversation{
		{ID: 1, Title: "target", Megagroup: true},
		{ID: 2, Title: "source", Megagroup: true, Participants: 12},
		{ID: 3, Title: "news", Username: "news", Broadcast: true},
	}, 1)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "> -1001 "))
	assert.True(t, strings.HasPrefix(lines[1], "* -1002 "))
	assert.Contains(t, lines[2], "news (@news)")
	assert.Equal(t, "3 conversations, 1 groups to collect members from", lines[4])
}

func TestParseInt64List(t *testing.T) {
	ids, err := parseInt64List([]string{"1, 2", "3", ","})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
}
