// Package paths locates Claude's own session files on disk. The agent
// stores one JSONL transcript per session under a per-project directory
// whose name is derived from the project path; resolving that layout lets
// the host resume a session even when it was started outside CodMate.
package paths

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EncodeProjectPath encodes a filesystem path the way Claude names its
// project directories: "/" and "." both become "-", with a leading dash.
func EncodeProjectPath(path string) string {
	encoded := strings.ReplaceAll(path, "/", "-")
	encoded = strings.ReplaceAll(encoded, ".", "-")
	encoded = strings.TrimPrefix(encoded, "-")
	return "-" + encoded
}

// DefaultClaudeDir returns ~/.claude, the agent's state root
func DefaultClaudeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".claude")
}

// ProjectDir returns the transcript directory for a working directory
func ProjectDir(claudeDir, workDir string) string {
	return filepath.Join(claudeDir, "projects", EncodeProjectPath(workDir))
}

// IsSessionID reports whether s looks like a Claude session UUID
func IsSessionID(s string) bool {
	return len(s) == 36 && strings.Count(s, "-") == 4
}

// LatestSessionID returns the ID of the most recently modified resumable
// session for workDir, preferring transcripts with real conversation
// content over snapshot-only files. Ties on modification time go to the
// larger file.
func LatestSessionID(claudeDir, workDir string) (string, error) {
	projectDir := ProjectDir(claudeDir, workDir)
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return "", fmt.Errorf("no session transcripts for %s: %w", workDir, err)
	}

	var best, bestAny *candidate

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		sessionID := strings.TrimSuffix(entry.Name(), ".jsonl")
		if !IsSessionID(sessionID) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		c := &candidate{id: sessionID, size: info.Size(), modTime: info.ModTime().UnixNano()}
		if c.newerThan(bestAny) {
			bestAny = c
		}
		if hasConversation(filepath.Join(projectDir, entry.Name())) && c.newerThan(best) {
			best = c
		}
	}

	// Snapshot-only transcripts are still resumable, just less likely to
	// be the one the user means
	if best == nil {
		best = bestAny
	}
	if best == nil {
		return "", fmt.Errorf("no session transcripts for %s", workDir)
	}
	return best.id, nil
}

type candidate struct {
	id      string
	size    int64
	modTime int64
}

func (c *candidate) newerThan(other *candidate) bool {
	if other == nil {
		return true
	}
	if c.modTime != other.modTime {
		return c.modTime > other.modTime
	}
	return c.size > other.size
}

// hasConversation checks the head of a transcript for user or assistant
// turns. Files holding only file-history snapshots, and forked sessions
// the agent spawned for automated chores, are skipped.
func hasConversation(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for lineCount := 0; scanner.Scan() && lineCount < 50; lineCount++ {
		line := scanner.Text()
		if lineCount == 0 && strings.Contains(line, `"type":"queue-operation"`) {
			return false
		}
		if strings.Contains(line, `"type":"user"`) || strings.Contains(line, `"type":"assistant"`) {
			return true
		}
	}
	return false
}
