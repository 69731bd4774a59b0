package cli

import (
	"fmt"
	"os"

	"checklist-cli/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (file, env and flags)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := redacted(app.cfg)
			return writeOut(cmd, app, map[string]any{"path": app.ConfigPath, "config": cfg}, func() string {
				b, err := yaml.Marshal(cfg)
				if err != nil {
					return err.Error() + "\n"
				}
				return fmt.Sprintf("# %s\n%s", app.ConfigPath, b)
			})
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(app.ConfigPath); err == nil && !force {
				return writeErr(cmd, fmt.Errorf("config exists: %s (use --force to overwrite)", app.ConfigPath))
			}
			if err := app.cfg.Save(app.ConfigPath); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"path": app.ConfigPath}, func() string {
				return "wrote " + app.ConfigPath + "\n"
			})
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

// redacted copies cfg with secrets masked.
func redacted(cfg *config.Config) config.Config {
	out := *cfg
	if out.Blob.S3.SecretKey != "" {
		out.Blob.S3.SecretKey = "****"
	}
	if len(cfg.Remote.Headers) > 0 {
		out.Remote.Headers = make(map[string]string, len(cfg.Remote.Headers))
		for k := range cfg.Remote.Headers {
			out.Remote.Headers[k] = "****"
		}
	}
	return out
}
