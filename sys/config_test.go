package sys

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets keys for the test and restores them afterwards, including
// any value godotenv writes.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeDotEnv(t *testing.T, lines ...string) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(strings.Join(lines, "\n")+"\n"), 0o600))
}

func TestLoadConfigAppliesDotEnvLogLevel(t *testing.T) {
	clearEnv(t, EnvDiscordToken, EnvDebug, EnvSilent, EnvEventTimezone, EnvDatabasePath, EnvMongoDB, EnvGuildRoles)
	t.Cleanup(func() { InitLogger(false, false) })

	InitLogger(false, false)
	require.False(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))

	writeDotEnv(t, "DISCORD_TOKEN=token", "DEBUG=true", "EVENT_TIMEZONE=UTC")

	_, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}

func TestLoadConfigStoreDefaults(t *testing.T) {
	clearEnv(t, EnvDiscordToken, EnvDebug, EnvSilent, EnvEventTimezone, EnvDatabasePath, EnvMongoDB, EnvGuildRoles)
	t.Cleanup(func() { InitLogger(false, false) })

	writeDotEnv(t, "DISCORD_TOKEN=token", "EVENT_TIMEZONE=UTC")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "deme", cfg.MongoDB)
	assert.True(t, strings.HasPrefix(cfg.DatabasePath, "deme.db?"), cfg.DatabasePath)
}

func TestValidateRejectsMalformedIDs(t *testing.T) {
	cfg := &Config{Token: "token", SummaryChannelID: "not-a-snowflake"}
	assert.Error(t, cfg.Validate())

	cfg.SummaryChannelID = "123456789012345678"
	assert.NoError(t, cfg.Validate())

	assert.Error(t, (&Config{}).Validate())
}

func TestParseGuildRoles(t *testing.T) {
	roles, err := parseGuildRoles(" Guild 1:1308011055875624961, Guild 2:1308011121801953311 ,")
	require.NoError(t, err)
	assert.Equal(t, []GuildRole{
		{Name: "Guild 1", RoleID: "1308011055875624961"},
		{Name: "Guild 2", RoleID: "1308011121801953311"},
	}, roles)

	cfg := &Config{GuildRoles: roles}
	assert.Equal(t, "Guild 2", cfg.GuildRoleName("1308011121801953311"))
	assert.Empty(t, cfg.GuildRoleName("1"))

	none, err := parseGuildRoles("")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = parseGuildRoles("Guild 1")
	assert.Error(t, err)
	_, err = parseGuildRoles("Guild 1:abc")
	assert.Error(t, err)
}
