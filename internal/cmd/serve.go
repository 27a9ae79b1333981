package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/loocor/codmate/internal/config"
	"github.com/loocor/codmate/internal/handlers"
	"github.com/loocor/codmate/internal/logger"
	"github.com/loocor/codmate/internal/macos"
	"github.com/loocor/codmate/internal/middleware"
	"github.com/loocor/codmate/internal/services"
	"github.com/loocor/codmate/internal/term"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "🌐 Start the session host API server",
	Long: `# 🌐 CodMate Server

**Host terminal sessions behind a local WebSocket and REST API.**

The desktop front-end connects here: it opens one WebSocket per visible
terminal and the server keeps the underlying processes alive no matter
how often those connections come and go.

## 🔌 Endpoints

- **GET /v1/terminal** - WebSocket terminal transport
- **GET /v1/sessions** - list stored sessions
- **POST /v1/sessions/:id/annotations** - annotate a session

## 💡 Examples

Start on the default address:
` + "```bash\ncodmate serve\n```" + `

Bind somewhere else:
` + "```bash\ncodmate serve --addr 127.0.0.1:7070\n```",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	logger.Configure(logger.GetLogLevelFromEnv(false), false)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	store, err := services.NewSessionStore(config.Runtime.StateDir)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	registry := term.NewRegistry()
	coordinator := term.NewCoordinator(registry, cursorPolicy(cfg))
	launch := services.NewLaunchProvider(store)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "codmate",
	})
	app.Use(fiberrecover.New())
	app.Use(middleware.NewAuthMiddleware().RequireAuth)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "sessions": len(registry.Keys())})
	})

	v1 := app.Group("/v1")
	handlers.NewTerminalHandler(registry, coordinator, launch, store, appearance(cfg)).RegisterRoutes(v1)
	handlers.NewSessionsHandler(store, registry).RegisterRoutes(v1)

	// Keep the machine awake while we host sessions (macOS only)
	if assertion, aerr := macos.NewPowerAssertion("CodMate hosting terminal sessions"); aerr == nil {
		defer func() {
			if rerr := assertion.Release(); rerr != nil {
				logger.Warnf("Failed to release power assertion: %v", rerr)
			}
		}()
	} else {
		logger.Debugf("Power assertion unavailable: %v", aerr)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("🖥️ CodMate listening on %s", addr)
		errCh <- app.Listen(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		registry.Shutdown()
		return err
	case sig := <-stop:
		logger.Infof("Received %s, shutting down", sig)
	}

	if err := app.Shutdown(); err != nil {
		logger.Warnf("Server shutdown error: %v", err)
	}
	registry.Shutdown()
	return nil
}

func appearance(cfg *config.Config) term.Appearance {
	return term.Appearance{
		FontFamily: cfg.Terminal.FontFamily,
		FontSize:   cfg.Terminal.FontSize,
		Theme:      cfg.Terminal.Theme,
	}
}

func cursorPolicy(cfg *config.Config) term.CursorPolicy {
	policy := term.DefaultCursorPolicy()
	if style := parseCursorStyle(cfg.Terminal.CursorFocused); style != "" {
		policy.Focused = style
	}
	if style := parseCursorStyle(cfg.Terminal.CursorUnfocused); style != "" {
		policy.Unfocused = style
	}
	return policy
}

// parseCursorStyle maps a config value to a cursor style, returning ""
// for anything unrecognized so the default survives config typos.
func parseCursorStyle(s string) term.CursorStyle {
	switch term.CursorStyle(s) {
	case term.CursorBlock, term.CursorBlockBlink, term.CursorBlockOutline,
		term.CursorUnderline, term.CursorBar:
		return term.CursorStyle(s)
	}
	return ""
}
