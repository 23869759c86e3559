package prompt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrompter(t *testing.T, input string) (*Prompter, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	presets, err := NewPresets("")
	require.NoError(t, err)
	var out, errOut bytes.Buffer
	p := New(strings.NewReader(input), &out, presets, WithRetryDelay(0), WithErrorOutput(&errOut))
	return p, &out, &errOut
}

func TestStringReadsLine(t *testing.T) {
	p, out, _ := newTestPrompter(t, "  alice \nbob\n")

	got, err := p.String("current_session_name", "Enter session name: ")
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
	assert.Contains(t, out.String(), "Enter session name: ")

	got, err = p.String("current_session_name", "Enter session name: ")
	require.NoError(t, err)
	assert.Equal(t, "bob", got)
}

func TestLastLineWithoutNewline(t *testing.T) {
	p, _, _ := newTestPrompter(t, "y")
	ok, err := p.Confirm("are_you_sure", "Are you sure? (y/n) ")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEOF(t *testing.T) {
	p, _, _ := newTestPrompter(t, "")
	_, err := p.String("api_hash", "Enter your API hash: ")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestConfirm(t *testing.T) {
	p, _, _ := newTestPrompter(t, "y\nY\nn\nyes\n\n")
	want := []bool{true, false, false, false, false}
	for _, w := range want {
		got, err := p.Confirm("", "? ")
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}
}

func TestInt64RetriesUntilValid(t *testing.T) {
	p, _, errOut := newTestPrompter(t, "abc\n12x\n-1001234\n")
	got, err := p.Int64("invite_group_id", "Enter ID: ")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234), got)
	assert.Equal(t, 2, strings.Count(errOut.String(), "invalid syntax"))
}

func TestPresetFromEnv(t *testing.T) {
	t.Setenv("TG_API_ID", "777")
	t.Setenv("TG_ARE_YOU_SURE", "n")
	p, out, _ := newTestPrompter(t, "")

	assert.True(t, p.Preset("api_id"))
	assert.False(t, p.Preset("api_hash"))

	id, err := p.Int("api_id", "Enter your API ID: ")
	require.NoError(t, err)
	assert.Equal(t, 777, id)

	sure, err := p.Confirm("are_you_sure", "Are you sure? ")
	require.NoError(t, err)
	assert.False(t, sure)
	assert.Empty(t, out.String(), "preset answers are not prompted")
}

func TestInvalidPresetFails(t *testing.T) {
	t.Setenv("TG_PROXY_PORT", "not-a-port")
	p, _, _ := newTestPrompter(t, "")
	_, err := p.Int("proxy_port", "Enter the port? ")
	assert.ErrorContains(t, err, "TG_PROXY_PORT")
}

func TestPresetsFromDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TG_API_HASH=fromfile\n"), 0600))
	t.Setenv("TG_API_HASH", "")
	require.NoError(t, os.Unsetenv("TG_API_HASH"))

	presets, err := NewPresets(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Unsetenv("TG_API_HASH") })

	p := New(strings.NewReader(""), io.Discard, presets)
	got, err := p.String("api_hash", "Enter your API hash: ")
	require.NoError(t, err)
	assert.Equal(t, "fromfile", got)
}

func TestMissingDotEnvIgnored(t *testing.T) {
	_, err := NewPresets(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestSecretWithoutTerminal(t *testing.T) {
	p, _, _ := newTestPrompter(t, "hunter2\n")
	got, err := p.Secret("password", "Enter your 2FA password: ")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
}

func TestDecline(t *testing.T) {
	p, _, _ := newTestPrompter(t, "\nyes\ny\nN\nn\n")
	want := []bool{false, false, false, false, true}
	for _, w := range want {
		got, err := p.Decline("want_to_use_this_client", "Do you want to use this client? (y/n): ")
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}
}

func TestCancelledQuestion(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	errInterrupted := errors.New("interrupted")
	ctx, cancel := context.WithCancelCause(context.Background())
	p := New(r, io.Discard, nil, WithContext(ctx))

	done := make(chan error, 1)
	go func() {
		_, err := p.String("code", "Enter the code: ")
		done <- err
	}()
	cancel(errInterrupted)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errInterrupted)
	case <-time.After(time.Second):
		t.Fatal("question did not return after cancel")
	}

	// The read still in flight answers the next question.
	go func() { _, _ = io.WriteString(w, "12345\n") }()
	got, err := p.StringContext(context.Background(), "code", "Enter the code: ")
	require.NoError(t, err)
	assert.Equal(t, "12345", got)
}
