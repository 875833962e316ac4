package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/config"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/engine"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/export"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/observability"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/persona"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/prompt"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/web/handlers"
)

const version = "0.1.0"

var (
	dbPath       string
	cfgPath      string
	providerFlag string
	offline      bool
	debugFlag    bool
	appConfig    *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agora",
	Short: "Chat and debate with historical personas",
	Long: `agora talks to historical personas through any OpenAI-compatible model,
Gemini or Anthropic, and stages multi-round debates between them.

Every exchange is stored in a session log so personas remember what was said.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgPath != "" {
			appConfig, err = config.LoadFrom(cfgPath)
		} else {
			appConfig, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if dbPath != "" {
			appConfig.Store.Driver = config.DriverSQLite
			appConfig.Store.SQLitePath = dbPath
		}
		if offline {
			providerFlag = "scripted"
		}

		level := slog.LevelWarn
		if debugFlag {
			level = slog.LevelDebug
		}
		observability.InitLogger(os.Stderr, level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: ~/.agora/agora.db)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.agora/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "", "Model backend (default: gateway.provider from config)")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Use the scripted backend, no network")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(debateCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(personasCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

func getEngine(ctx context.Context) (*engine.Engine, func(), error) {
	return appConfig.CreateEngine(ctx, providerFlag)
}

// signalContext is canceled on Ctrl+C so long debates stop between turns.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ============================================================================
// SESSION COMMAND
// ============================================================================

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new empty session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, cleanup, err := getEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		session, err := eng.StartSession(ctx)
		if err != nil {
			return err
		}
		fmt.Println(session.ID)
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionNewCmd)
}

// ============================================================================
// CHAT COMMAND
// ============================================================================

var (
	chatSession    string
	chatShowPrompt bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [persona] [message]",
	Short: "Send one message to a persona",
	Long: `Send one message to a persona and print the reply.

Examples:
  agora chat lincoln "What is the Union worth?"
  agora chat socrates "And justice?" --session 3f2a
  agora chat douglass "Is freedom partial?" --offline`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		eng, cleanup, err := getEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		sessionID, err := resolveOrStartSession(ctx, eng, chatSession)
		if err != nil {
			return err
		}

		reply, err := eng.SendMessage(ctx, sessionID, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return describeError(err)
		}

		r := newRenderer(os.Stdout)
		if chatShowPrompt {
			r.Title("Prompt")
			fmt.Println(prompt.Render(reply.Prompt))
			fmt.Println()
		}
		r.Turn(args[0], reply.Text)
		fmt.Println()
		r.Info("session %s  |  model %s", reply.SessionID, reply.Model)
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "Session id or prefix (default: start a new session)")
	chatCmd.Flags().BoolVar(&chatShowPrompt, "show-prompt", false, "Print the composed prompt")
}

// ============================================================================
// DEBATE COMMAND
// ============================================================================

var (
	debateSession  string
	debatePersonas []string
	debateRounds   int
)

var debateCmd = &cobra.Command{
	Use:   "debate [starting message]",
	Short: "Run a debate between personas",
	Long: `Run a multi-round debate. Personas speak in the given order every round,
each answering the one before.

Examples:
  agora debate "Is secession lawful?" --personas lincoln,davis
  agora debate "What is a just government?" -P socrates,jefferson,hamilton -r 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		eng, cleanup, err := getEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		sessionID, err := resolveOrStartSession(ctx, eng, debateSession)
		if err != nil {
			return err
		}

		req := core.DebateRequest{
			SessionID:       sessionID,
			StartingMessage: strings.Join(args, " "),
			Personas:        debatePersonas,
			Rounds:          debateRounds,
		}

		r := newRenderer(os.Stdout)
		r.Title("Debate: %s", req.StartingMessage)
		r.Info("session %s  |  model %s", sessionID, eng.Model())

		start := time.Now()
		transcript, err := eng.RunDebate(ctx, req, func(turn *core.Turn, entry core.TranscriptEntry) {
			r.Turn(displayName(entry.Speaker), entry.Text)
		})
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println("\nInterrupted. Turns so far are saved in session " + shortID(sessionID))
				return nil
			}
			return describeError(err)
		}

		fmt.Println()
		r.Info("%d replies in %s", len(transcript), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	debateCmd.Flags().StringVarP(&debateSession, "session", "s", "", "Session id or prefix (default: start a new session)")
	debateCmd.Flags().StringSliceVarP(&debatePersonas, "personas", "P", []string{"lincoln", "davis"}, "Personas in speaking order")
	debateCmd.Flags().IntVarP(&debateRounds, "rounds", "r", 0, "Rounds (default: debate.default_rounds)")
}

// ============================================================================
// SESSIONS / SHOW / DELETE COMMANDS
// ============================================================================

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, cleanup, err := getEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		sessions, err := eng.ListSessions(ctx, 50, 0)
		if err != nil {
			return err
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions found. Start one with: agora chat lincoln \"Hello\"")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTURNS\tCREATED")
		fmt.Fprintln(w, "--\t-----\t-------")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%d\t%s\n", shortID(s.ID), s.TurnCount, s.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		w.Flush()
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a session log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, cleanup, err := getEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		sessionID, err := findSessionByPrefix(ctx, eng, args[0])
		if err != nil {
			return err
		}
		session, turns, err := eng.GetSessionWithTurns(ctx, sessionID)
		if err != nil {
			return err
		}

		r := newRenderer(os.Stdout)
		r.Title("Session %s", session.ID)
		r.Info("Created %s  |  %d turns", session.CreatedAt.Local().Format(time.RFC3339), len(turns))
		for _, t := range turns {
			r.Turn(displayName(t.Speaker), t.Content)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a session and its log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, cleanup, err := getEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		sessionID, err := findSessionByPrefix(ctx, eng, args[0])
		if err != nil {
			return err
		}
		if err := eng.DeleteSession(ctx, sessionID); err != nil {
			return err
		}

		fmt.Printf("Deleted session: %s\n", sessionID)
		return nil
	},
}

// ============================================================================
// EXPORT COMMAND
// ============================================================================

var exportCmd = &cobra.Command{
	Use:   "export [id] [format]",
	Short: "Export a session to file",
	Long: `Export a session log to markdown, PDF, or JSON.

Examples:
  agora export 3f2a markdown
  agora export 3f2a pdf
  agora export 3f2a json -o debate.json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, cleanup, err := getEngine(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		sessionID, err := findSessionByPrefix(ctx, eng, args[0])
		if err != nil {
			return err
		}
		session, turns, err := eng.GetSessionWithTurns(ctx, sessionID)
		if err != nil {
			return err
		}

		exporter, err := export.GetExporter(export.Format(strings.ToLower(args[1])))
		if err != nil {
			return err
		}

		outputPath, _ := cmd.Flags().GetString("output")
		if outputPath == "" {
			outputPath = export.GenerateFilename(session, turns, exporter.FileExtension())
		}

		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}
		defer file.Close()

		if err := exporter.Export(session, turns, file); err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}

		fmt.Printf("Exported to: %s\n", outputPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Output file path")
}

// ============================================================================
// PERSONAS COMMAND
// ============================================================================

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List available personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := appConfig.PersonaCatalog()
		names, err := catalog.Names()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTONE")
		fmt.Fprintln(w, "--\t----\t----")
		for _, name := range names {
			p, err := catalog.Load(name)
			if err != nil {
				fmt.Fprintf(w, "%s\t(invalid)\t%v\n", name, err)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.Tone)
		}
		w.Flush()
		return nil
	},
}

var personaShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a persona profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := appConfig.PersonaCatalog().Load(args[0])
		if err != nil {
			return err
		}

		r := newRenderer(os.Stdout)
		r.Title("%s (%s)", p.Name, p.ID)
		fmt.Printf("  Tone:        %s\n", p.Tone)
		fmt.Printf("  Political:   %s\n", p.Beliefs.Political)
		fmt.Printf("  Freedom:     %s\n", p.Beliefs.Freedom)
		fmt.Printf("  War:         %s\n", p.Beliefs.War)
		fmt.Printf("  Government:  %s\n", p.Beliefs.Government)
		fmt.Printf("  Values:      %s\n", p.Beliefs.Values)
		if p.Style.Syntax != "" {
			fmt.Printf("  Syntax:      %s\n", p.Style.Syntax)
		}
		if len(p.Style.Phrases) > 0 {
			fmt.Printf("  Phrases:     %s\n", strings.Join(p.Style.Phrases, "; "))
		}
		return nil
	},
}

func init() {
	personasCmd.AddCommand(personaShowCmd)
}

// ============================================================================
// CONFIG COMMAND
// ============================================================================

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Config file: %s\n\n", config.DefaultConfigPath())

		fmt.Println("Current settings:")
		fmt.Printf("  Store: %s\n", appConfig.Store.Driver)
		fmt.Printf("  Default provider: %s\n", appConfig.Gateway.Provider)
		fmt.Printf("  Temperature: %.2f, max tokens: %d\n", appConfig.Gateway.Temperature, appConfig.Gateway.MaxTokens)
		fmt.Printf("  History limit: %d, char budget: %d\n", appConfig.Prompt.HistoryLimit, appConfig.Prompt.CharBudget)
		fmt.Printf("  Debate rounds: %d, pacing: %s\n", appConfig.Debate.DefaultRounds, appConfig.Debate.PacingDelay)
		fmt.Println("\nProviders:")
		for name, p := range appConfig.Gateway.Providers {
			status := "disabled"
			if p.Enabled {
				status = "enabled"
			}
			fmt.Printf("  %s: %s (model: %s)\n", name, status, p.Model)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create example config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigPath()
		if cfgPath != "" {
			path = cfgPath
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(config.GenerateExample()), 0644); err != nil {
			return err
		}

		fmt.Printf("Created config at: %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// ============================================================================
// SERVE COMMAND
// ============================================================================

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("port") && appConfig.Server.Port != 0 {
			servePort = appConfig.Server.Port
		}
		if !debugFlag {
			observability.InitLogger(os.Stdout, observability.ParseLevel(appConfig.LogLevel))
		}

		ctx, cancel := signalContext()
		defer cancel()

		if appConfig.Telemetry.Enabled {
			tp, err := observability.InitTracer(ctx, appConfig.Telemetry.ServiceName, version)
			if err != nil {
				slog.Warn("Tracing disabled", "error", err)
			} else {
				defer tp.Shutdown(context.Background())
			}
		}

		eng, cleanup, err := getEngine(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}
		defer cleanup()

		h := handlers.New(eng, handlers.Options{
			AllowedOrigins: appConfig.Server.AllowedOrigins,
			Debug:          debugFlag,
		})

		fmt.Printf("\nStarting agora on http://localhost:%d (provider %s, model %s)\n\n", servePort, eng.Provider(), eng.Model())
		fmt.Println("Endpoints:")
		fmt.Println("  POST /start_session/   - Start a session")
		fmt.Println("  POST /message/         - Chat with a persona")
		fmt.Println("  POST /debate/          - Run a debate")
		fmt.Println("  GET  /health           - Store and provider liveness")
		fmt.Println("\nPress Ctrl+C to stop the server")

		return handlers.ListenAndServe(ctx, fmt.Sprintf(":%d", servePort), h.Router())
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8000, "Server port")
}

// ============================================================================
// HELPERS
// ============================================================================

// resolveOrStartSession returns the session matching prefix, or a new one when prefix is empty.
func resolveOrStartSession(ctx context.Context, eng *engine.Engine, prefix string) (string, error) {
	if prefix != "" {
		return findSessionByPrefix(ctx, eng, prefix)
	}
	session, err := eng.StartSession(ctx)
	if err != nil {
		return "", err
	}
	return session.ID, nil
}

func findSessionByPrefix(ctx context.Context, eng *engine.Engine, prefix string) (string, error) {
	if core.ValidSessionID(prefix) {
		session, _, err := eng.GetSessionWithTurns(ctx, prefix)
		if err != nil {
			return "", err
		}
		if session == nil {
			return "", fmt.Errorf("%w: %s", core.ErrSessionNotFound, prefix)
		}
		return session.ID, nil
	}

	sessions, err := eng.ListSessions(ctx, 100, 0)
	if err != nil {
		return "", err
	}
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, prefix) {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", core.ErrSessionNotFound, prefix)
}

// describeError turns engine errors into short CLI messages.
func describeError(err error) error {
	var gwErr *core.GatewayError
	switch {
	case errors.As(err, &gwErr):
		return fmt.Errorf("model backend %s failed (%s): %s", gwErr.Provider, gwErr.Kind, gwErr.Detail)
	case errors.Is(err, core.ErrPersonaNotFound):
		return fmt.Errorf("%w (available: %s)", err, strings.Join(persona.List(), ", "))
	default:
		return err
	}
}

func displayName(speaker string) string {
	if p := persona.Get(speaker); p != nil {
		return p.Name
	}
	switch speaker {
	case core.SpeakerUser:
		return "You"
	case core.SpeakerBot:
		return "Persona"
	}
	return speaker
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
