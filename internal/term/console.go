package term

import (
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// console abstracts the pty-connected process behind a Session. Tests
// substitute an in-memory implementation so registry and attachment
// behavior can be exercised without spawning real shells.
type console interface {
	io.ReadWriteCloser
	// Resize propagates a window size change to the process
	Resize(cols, rows uint16) error
	// Kill terminates the process if it is still running
	Kill() error
	// Wait blocks until the process has exited
	Wait() error
}

// launcher starts the process described by spec attached to a console
type launcher func(spec ConsoleSpec, cols, rows uint16) (console, error)

// ptyConsole is the production console backed by creack/pty
type ptyConsole struct {
	cmd  *exec.Cmd
	ptmx *os.File
}

// startPTY launches the spec's command on a new pty. The spec's argument
// vector, working directory and environment are passed through unmodified.
func startPTY(spec ConsoleSpec, cols, rows uint16) (console, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, err
	}

	return &ptyConsole{cmd: cmd, ptmx: ptmx}, nil
}

func (c *ptyConsole) Read(p []byte) (int, error)  { return c.ptmx.Read(p) }
func (c *ptyConsole) Write(p []byte) (int, error) { return c.ptmx.Write(p) }
func (c *ptyConsole) Close() error                { return c.ptmx.Close() }

func (c *ptyConsole) Resize(cols, rows uint16) error {
	return pty.Setsize(c.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

func (c *ptyConsole) Kill() error {
	if c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}

func (c *ptyConsole) Wait() error {
	return c.cmd.Wait()
}
