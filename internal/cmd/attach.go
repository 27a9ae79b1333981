package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	xterm "golang.org/x/term"

	"github.com/loocor/codmate/internal/config"
	"github.com/loocor/codmate/internal/services"
	"github.com/loocor/codmate/internal/term"
)

var (
	attachDir     string
	attachAgent   string
	attachSession string
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "⌨️  Attach a terminal session to this console",
	Long: `# ⌨️ Local Attach

**Host a session in-process and wire it to your current terminal.**

Useful for trying the session host without the desktop front-end, and
for resuming a stored agent session straight from the shell.

## 💡 Examples

Open a plain shell session:
` + "```bash\ncodmate attach\n```" + `

Resume a stored agent session:
` + "```bash\ncodmate attach --session <id> --agent claude\n```",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAttach()
	},
}

func init() {
	attachCmd.Flags().StringVar(&attachDir, "dir", "", "working directory for the session (default: current)")
	attachCmd.Flags().StringVar(&attachAgent, "agent", "shell", "agent to launch (shell, claude)")
	attachCmd.Flags().StringVar(&attachSession, "session", "", "stored session ID to resume")
	rootCmd.AddCommand(attachCmd)
}

func runAttach() error {
	if !xterm.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("attach requires an interactive terminal")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dir := attachDir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return err
		}
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	registry := term.NewRegistry()
	defer registry.Shutdown()
	coordinator := term.NewCoordinator(registry, cursorPolicy(cfg))
	launch := services.NewLaunchProvider(store)

	var key term.SessionKey
	var spec term.ConsoleSpec
	sessionID := attachSession
	if attachSession != "" {
		key = term.ResumeKey(attachSession)
		spec = launch.AgentSpec(attachAgent, dir, true)
	} else {
		sessionID = uuid.NewString()
		key = term.DraftKey(sessionID)
		if attachAgent != "shell" {
			spec = launch.AgentSpec(attachAgent, dir, false)
		} else {
			spec = launch.ShellSpec(dir)
		}
	}

	oldState, err := xterm.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer xterm.Restore(int(os.Stdin.Fd()), oldState)

	surface := newConsoleSurface()
	if err := coordinator.Bind(surface, key, spec, appearance(cfg)); err != nil {
		return err
	}
	if err := store.Ensure(sessionID, attachAgent, dir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record session %s: %v\n", sessionID, err)
	}

	sess, ok := registry.Get(key)
	if !ok {
		return fmt.Errorf("session %s vanished before attach", key)
	}

	done := make(chan struct{})
	sess.SetExitHandler(func(error) { close(done) })

	// Propagate window size changes to the session
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	go func() {
		for range winch {
			coordinator.Resized(surface)
		}
	}()

	// Forward keystrokes until the process exits or stdin closes
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				if werr := sess.Write(buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	<-done
	surface.close()
	coordinator.SurfaceClosed(surface)
	return nil
}

// consoleSurface binds a session to the process's own controlling terminal.
// Overlay geometry is meaningless here (no pixel container), so it stays
// hidden and Height reports zero.
type consoleSurface struct {
	id    string
	alive atomic.Bool
}

func newConsoleSurface() *consoleSurface {
	s := &consoleSurface{id: uuid.NewString()}
	s.alive.Store(true)
	return s
}

func (s *consoleSurface) close() { s.alive.Store(false) }

func (s *consoleSurface) ID() string    { return s.id }
func (s *consoleSurface) Alive() bool   { return s.alive.Load() }
func (s *consoleSurface) Focused() bool { return true }

func (s *consoleSurface) Size() (cols, rows uint16) {
	w, h, err := xterm.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return 80, 24
	}
	return uint16(w), uint16(h)
}

func (s *consoleSurface) Height() int { return 0 }

func (s *consoleSurface) Render(p []byte) {
	if s.alive.Load() {
		_, _ = os.Stdout.Write(p)
	}
}

func (s *consoleSurface) ApplyAppearance(term.Appearance) {}

// SetCursor maps cursor styles onto DECSCUSR so the hosting terminal
// mirrors what an embedded surface would show
func (s *consoleSurface) SetCursor(style term.CursorStyle) {
	if !s.alive.Load() {
		return
	}
	seq := "\x1b[2 q"
	switch style {
	case term.CursorBlockBlink:
		seq = "\x1b[1 q"
	case term.CursorUnderline:
		seq = "\x1b[4 q"
	case term.CursorBar:
		seq = "\x1b[6 q"
	}
	_, _ = os.Stdout.WriteString(seq)
}

func (s *consoleSurface) SetOverlay(term.OverlayGeometry, bool) {}
func (s *consoleSurface) RequestRedraw()                        {}
func (s *consoleSurface) RequestFocus()                         {}
