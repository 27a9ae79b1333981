package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/loocor/codmate/internal/config"
	"github.com/loocor/codmate/internal/services"
	"github.com/loocor/codmate/internal/tui"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "📋 Browse and annotate stored sessions",
	Long: `# 📋 Session Management

**List, inspect, and annotate the agent sessions CodMate has stored.**

## 💡 Examples

List all stored sessions:
` + "```bash\ncodmate sessions list\n```" + `

Show one session with its notes:
` + "```bash\ncodmate sessions show <id>\n```" + `

Attach a note:
` + "```bash\ncodmate sessions annotate <id> \"left off mid-refactor\"\n```" + `

Browse interactively:
` + "```bash\ncodmate sessions browse\n```",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		sessions := store.List()
		if len(sessions) == 0 {
			fmt.Println("No stored sessions.")
			return nil
		}

		for _, s := range sessions {
			title := s.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%-38s %-8s %-30s %s\n", s.ID, s.Agent, title, s.LastAccess.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one session and its notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		state, err := store.Load(args[0])
		if err != nil {
			return err
		}
		if state == nil {
			return fmt.Errorf("no session found for ID %s", args[0])
		}

		var md strings.Builder
		fmt.Fprintf(&md, "# %s\n\n", state.ID)
		fmt.Fprintf(&md, "- **Agent:** %s\n", state.Agent)
		fmt.Fprintf(&md, "- **Directory:** %s\n", state.WorkingDirectory)
		fmt.Fprintf(&md, "- **Created:** %s\n", state.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Fprintf(&md, "- **Last access:** %s\n\n", state.LastAccess.Format("2006-01-02 15:04"))
		if len(state.Annotations) > 0 {
			md.WriteString("## 📝 Notes\n\n")
			for _, note := range state.Annotations {
				fmt.Fprintf(&md, "- %s _(%s)_\n", note.Text, note.CreatedAt.Format("Jan 2 15:04"))
			}
		}

		rendered, err := glamour.Render(md.String(), "auto")
		if err != nil {
			fmt.Print(md.String())
			return nil
		}
		fmt.Print(rendered)
		return nil
	},
}

var sessionsAnnotateCmd = &cobra.Command{
	Use:   "annotate <id> <text>",
	Short: "Attach a note to a stored session",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Annotate(args[0], strings.Join(args[1:], " ")); err != nil {
			return err
		}
		fmt.Println("Note saved.")
		return nil
	},
}

var sessionsBrowseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse sessions in an interactive TUI",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		return tui.NewBrowser(store).Run()
	},
}

func openStore() (*services.SessionStore, error) {
	store, err := services.NewSessionStore(config.Runtime.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return store, nil
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsAnnotateCmd)
	sessionsCmd.AddCommand(sessionsBrowseCmd)
	rootCmd.AddCommand(sessionsCmd)
}
