package services

import (
	"fmt"
	"os"

	"github.com/loocor/codmate/internal/claude/paths"
	"github.com/loocor/codmate/internal/logger"
	"github.com/loocor/codmate/internal/term"
)

// LaunchProvider resolves ConsoleSpecs for the terminal host. The host
// itself never invents defaults: everything it passes to the process comes
// from here, byte-for-byte.
type LaunchProvider struct {
	store     *SessionStore
	claudeDir string
}

// NewLaunchProvider creates a launch provider backed by the session store
func NewLaunchProvider(store *SessionStore) *LaunchProvider {
	return &LaunchProvider{store: store, claudeDir: paths.DefaultClaudeDir()}
}

// ShellSpec resolves a plain login-shell terminal in dir
func (p *LaunchProvider) ShellSpec(dir string) term.ConsoleSpec {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}

	return term.ConsoleSpec{
		Command: shell,
		Args:    []string{"--login"},
		Dir:     dir,
		Env:     terminalEnv(),
	}
}

// AgentSpec resolves the command for a CLI agent in dir. When resume is
// set and a stored session exists for the directory, the agent is asked to
// continue its previous conversation; with nothing stored, the agent's own
// transcript directory is consulted so sessions started outside the host
// can still be picked up.
func (p *LaunchProvider) AgentSpec(agent, dir string, resume bool) term.ConsoleSpec {
	switch agent {
	case "claude":
		args := []string{}
		if resume {
			if id := p.claudeSessionID(dir); id != "" {
				args = append(args, "--resume", id)
			} else if p.store != nil && p.store.FindByDirectory(dir) != nil {
				args = append(args, "--continue")
			}
		}
		return term.ConsoleSpec{
			Command: "claude",
			Args:    args,
			Dir:     dir,
			Env:     terminalEnv(),
		}
	default:
		return p.ShellSpec(dir)
	}
}

// claudeSessionID finds the session to resume in dir: the stored record
// wins, then the agent's own transcripts.
func (p *LaunchProvider) claudeSessionID(dir string) string {
	if p.store != nil {
		if state := p.store.FindByDirectory(dir); state != nil && state.AgentSessionID != "" {
			return state.AgentSessionID
		}
	}
	if p.claudeDir == "" {
		return ""
	}
	id, err := paths.LatestSessionID(p.claudeDir, dir)
	if err != nil {
		logger.Debugf("No agent transcripts for %s: %v", dir, err)
		return ""
	}
	return id
}

// terminalEnv is the inherited environment plus the terminal identity the
// emulation engine expects.
func terminalEnv() []string {
	env := os.Environ()
	env = append(env,
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
		fmt.Sprintf("CODMATE=%s", "1"),
	)
	return env
}
