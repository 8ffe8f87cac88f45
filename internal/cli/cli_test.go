package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPipeline/internal/domain"
)

// writeConfig stores a sqlite-backed config in a temp dir so that state
// survives between command invocations.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()

	dir := t.TempDir()
	body := `database:
  driver: sqlite
  dsn: "file:` + filepath.Join(dir, "pipeline.db") + `?_busy_timeout=5000"
lock:
  backend: memory
logging:
  level: error
sources:
  - name: Lokal
    url: https://lokal.example/feed
    lang: de
    category: lokales
    kind: rss
    trustScore: 0.8
` + extra
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// execute runs the root command with fresh flag values.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "newspipeline 1.2.3\n", out)
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "nonexistent-command")
	assert.Error(t, err)
}

func TestHelpListsCommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"run", "trigger", "publish", "draft", "source", "migrate", "config", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	path := writeConfig(t, `llm:
  provider: openai
  apiKey: sk-very-secret
channels:
  telegram:
    botToken: "123:abc"
    chatId: "@news"
`)

	out, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, maskedSecret)
	assert.Contains(t, out, "@news")
	assert.NotContains(t, out, "sk-very-secret")
	assert.NotContains(t, out, "123:abc")
}

func TestConfigValidate(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t, ""), "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration ok")

	bad := writeConfig(t, `pipeline:
  factCheckThreshold: 1.5
`)
	_, err = execute(t, "--config", bad, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "factCheckThreshold")
}

func TestMigrateAndSourceCommands(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "--config", path, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema is up to date")

	out, err = execute(t, "--config", path, "source", "add", "Stadtblatt", "https://stadtblatt.example/news",
		"--kind", "html", "--category", "Lokales", "--trust", "0.9")
	require.NoError(t, err)
	assert.Equal(t, "added source 1\n", out)

	_, err = execute(t, "--config", path, "source", "add", "Doppelt", "https://stadtblatt.example/news")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	out, err = execute(t, "--config", path, "source", "disable", "1")
	require.NoError(t, err)
	assert.Equal(t, "source 1 disabled\n", out)

	out, err = execute(t, "--config", path, "source", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "LAST FETCH")
	fields := strings.Fields(lines[1])
	assert.Equal(t, []string{"1", "Stadtblatt", "html", "de", "lokales", "0.90", "no", "never", "0"}, fields)

	_, err = execute(t, "--config", path, "source", "enable", "x")
	assert.Error(t, err)
}

func TestTriggerPrintsRunResult(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "--config", path, "trigger", domain.HookCleanup)
	require.NoError(t, err)

	var res domain.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, domain.HookCleanup, res.Hook)
	assert.True(t, res.Success)

	out, err = execute(t, "--config", path, "source", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Lokal", "trigger seeds configured sources")

	_, err = execute(t, "--config", path, "trigger", "reindex")
	assert.Error(t, err)
}

func TestDraftCommandErrors(t *testing.T) {
	path := writeConfig(t, "")

	_, err := execute(t, "--config", path, "draft", "approve", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid id "abc"`)

	_, err = execute(t, "--config", path, "draft", "approve", "42", "--editor", "anna")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = execute(t, "--config", path, "draft", "schedule", "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--at is required")

	_, err = execute(t, "--config", path, "draft", "approve", "42", "--at", "tomorrow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --at")

	out, err := execute(t, "--config", path, "draft", "list")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPublishWithoutChannels(t *testing.T) {
	path := writeConfig(t, "")

	_, err := execute(t, "--config", path, "publish", "0")
	require.Error(t, err)

	_, err = execute(t, "--config", path, "publish", "7")
	assert.Error(t, err)
}
