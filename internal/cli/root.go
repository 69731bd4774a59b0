// Package cli wires the checklist commands: the API server, data import and
// the optimistic client commands that talk to it.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"checklist-cli/internal/blob"
	"checklist-cli/internal/config"
	"checklist-cli/internal/format"
	"checklist-cli/internal/logging"
	"checklist-cli/internal/remote"
	"checklist-cli/internal/session"
	"checklist-cli/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type App struct {
	ConfigPath string
	Server     string
	Token      string
	PrettyJSON bool
	Format     string
	LogLevel   string

	cfg *config.Config
	log *zap.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "checklist",
		Short:        "Machine checklist CLI, terminal browser and API server",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Serve the API with the default sqlite database
  checklist serve

  # Load machines, assemblies, parts and items from YAML
  checklist import plant.yaml

  # Show the tree, then move the first part of an assembly to the end
  checklist tree show --format text
  checklist tree move-part asm-xxxx 0 2

  # Browse interactively
  checklist browse
`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.log != nil {
				_ = app.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("CHECKLIST_CONFIG", ""), "Path to config.yaml (default ~/.checklist/config.yaml)")
	cmd.PersistentFlags().StringVar(&app.Server, "server", "", "API base URL (overrides remote.base_url)")
	cmd.PersistentFlags().StringVar(&app.Token, "token", "", "Bearer token sent with every API request")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("CHECKLIST_FORMAT", "json"), "Output format (json|edn|text)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newTreeCmd(app))
	cmd.AddCommand(newItemsCmd(app))
	cmd.AddCommand(newAttachmentsCmd(app))
	cmd.AddCommand(newBrowseCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newPublishCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

func (app *App) init() error {
	path := app.ConfigPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if s := strings.TrimSpace(app.Server); s != "" {
		cfg.Remote.BaseURL = s
	}
	if tok := strings.TrimSpace(app.Token); tok != "" {
		if cfg.Remote.Headers == nil {
			cfg.Remote.Headers = map[string]string{}
		}
		cfg.Remote.Headers["Authorization"] = "Bearer " + tok
	}
	if lvl := strings.TrimSpace(app.LogLevel); lvl != "" {
		cfg.Log.Level = lvl
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	app.cfg = cfg
	app.log = log
	app.ConfigPath = path
	return nil
}

func (app *App) client() (*remote.Client, error) {
	return remote.NewClient(app.cfg.Remote.BaseURL,
		remote.WithHeader(app.cfg.RemoteHeader()),
		remote.WithTimeout(app.cfg.RemoteTimeout()),
		remote.WithLogger(app.log.Named("remote")),
	)
}

// session returns a client session with the tree loaded.
func (app *App) session(ctx context.Context, opts ...session.Option) (*session.Session, *remote.Client, error) {
	c, err := app.client()
	if err != nil {
		return nil, nil, err
	}
	opts = append([]session.Option{session.WithLogger(app.log.Named("session"))}, opts...)
	s := session.New(c, opts...)
	if err := s.Load(ctx); err != nil {
		return nil, nil, err
	}
	return s, c, nil
}

// openStore opens the server-side database and blob store from config.
func (app *App) openStore(ctx context.Context) (*store.Store, error) {
	blobs, err := blob.Open(ctx, app.cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	return store.Open(ctx, app.cfg.Database, blobs,
		store.WithLogger(app.log.Named("store")),
		store.WithMaxAttachmentBytes(app.cfg.Server.MaxUploadBytes),
	)
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// envelope is the {"data": ...} output shape. text, when set, is the
// rendering used by --format text.
type envelope struct {
	Data any `json:"data"`
	text func() string
}

func (e envelope) Text() string {
	if e.text == nil {
		var b strings.Builder
		_ = format.WriteJSON(&b, e.Data, true)
		return b.String()
	}
	return e.text()
}

func writeOut(cmd *cobra.Command, app *App, data any, text func() string) error {
	return format.Write(cmd.OutOrStdout(), envelope{Data: data, text: text}, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

func (app *App) styles(cmd *cobra.Command) format.Styles {
	_, color := cmd.OutOrStdout().(*os.File)
	return format.NewStyles(cmd.OutOrStdout(), color)
}
