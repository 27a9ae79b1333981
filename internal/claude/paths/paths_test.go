package paths

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeProjectPath(t *testing.T) {
	assert.Equal(t, "-home-user-my-project", EncodeProjectPath("/home/user/my-project"))
	assert.Equal(t, "-srv-app-v2-0", EncodeProjectPath("/srv/app.v2.0"))
	assert.Equal(t, "-rel-path", EncodeProjectPath("rel/path"))
}

func TestIsSessionID(t *testing.T) {
	assert.True(t, IsSessionID("cf568042-7147-4fba-a2ca-c6a646581260"))
	assert.False(t, IsSessionID("not-a-uuid"))
	assert.False(t, IsSessionID(""))
	assert.False(t, IsSessionID("cf568042-7147-4fba-a2ca-c6a6465812601"))
}

func writeTranscript(t *testing.T, dir, id, content string, modTime time.Time) {
	t.Helper()
	path := filepath.Join(dir, id+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestLatestSessionID(t *testing.T) {
	claudeDir := t.TempDir()
	workDir := "/home/user/proj"
	projectDir := ProjectDir(claudeDir, workDir)
	require.NoError(t, os.MkdirAll(projectDir, 0755))

	now := time.Now()
	conversation := `{"type":"user","message":"hi"}` + "\n" + `{"type":"assistant","message":"hello"}` + "\n"
	snapshotOnly := `{"type":"file-history-snapshot"}` + "\n"

	t.Run("NoTranscripts", func(t *testing.T) {
		_, err := LatestSessionID(claudeDir, "/nowhere")
		assert.Error(t, err)
	})

	t.Run("PrefersConversationOverNewerSnapshot", func(t *testing.T) {
		writeTranscript(t, projectDir, "cf568042-7147-4fba-a2ca-c6a646581260", conversation, now.Add(-time.Hour))
		writeTranscript(t, projectDir, "aa568042-7147-4fba-a2ca-c6a646581260", snapshotOnly, now)

		id, err := LatestSessionID(claudeDir, workDir)
		require.NoError(t, err)
		assert.Equal(t, "cf568042-7147-4fba-a2ca-c6a646581260", id)
	})

	t.Run("PicksMostRecentConversation", func(t *testing.T) {
		writeTranscript(t, projectDir, "bb568042-7147-4fba-a2ca-c6a646581260", conversation, now.Add(time.Minute))

		id, err := LatestSessionID(claudeDir, workDir)
		require.NoError(t, err)
		assert.Equal(t, "bb568042-7147-4fba-a2ca-c6a646581260", id)
	})

	t.Run("SkipsForkedSessions", func(t *testing.T) {
		forked := `{"type":"queue-operation"}` + "\n" + conversation
		writeTranscript(t, projectDir, "cc568042-7147-4fba-a2ca-c6a646581260", forked, now.Add(2*time.Minute))

		id, err := LatestSessionID(claudeDir, workDir)
		require.NoError(t, err)
		assert.Equal(t, "bb568042-7147-4fba-a2ca-c6a646581260", id)
	})

	t.Run("IgnoresNonUUIDFiles", func(t *testing.T) {
		writeTranscript(t, projectDir, "notes", conversation, now.Add(time.Hour))

		id, err := LatestSessionID(claudeDir, workDir)
		require.NoError(t, err)
		assert.Equal(t, "bb568042-7147-4fba-a2ca-c6a646581260", id)
	})

	t.Run("SnapshotOnlyFallback", func(t *testing.T) {
		otherDir := "/home/user/other"
		other := ProjectDir(claudeDir, otherDir)
		require.NoError(t, os.MkdirAll(other, 0755))
		writeTranscript(t, other, "dd568042-7147-4fba-a2ca-c6a646581260", snapshotOnly, now)

		id, err := LatestSessionID(claudeDir, otherDir)
		require.NoError(t, err)
		assert.Equal(t, "dd568042-7147-4fba-a2ca-c6a646581260", id)
	})
}
