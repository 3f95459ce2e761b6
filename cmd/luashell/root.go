package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dshills/luashell/internal/app"
	"github.com/dshills/luashell/internal/config"
	"github.com/dshills/luashell/internal/plugin"
)

// Style definitions for command output.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	versionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	successIcon = versionStyle.Render("✓")
	errorIcon   = errorStyle.Render("✗")
	infoIcon    = pathStyle.Render("•")
)

// shutdownTimeout bounds the wait for outstanding completions on exit.
const shutdownTimeout = 5 * time.Second

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath   string
	logLevel     string
	packagesDirs []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "luashell",
		Short: "A package host for an embedded Lua shell",
		Long: titleStyle.Render("luashell") + ` - a package host for an embedded Lua shell

Packages live in subdirectories of the packages directories. Each holds a
package.json manifest naming its entry module; luashell loads them in
dependency order and hands each one the core services.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default is "+config.DefaultPath()+")")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringSliceVarP(&opts.packagesDirs, "packages", "p", nil, "packages directories (overrides the config)")

	cmd.AddCommand(
		newRunCmd(opts),
		newListCmd(opts),
		newPrefsCmd(opts),
		newEvalCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func versionString() string {
	if version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

// loadConfig reads the configuration and applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if len(o.packagesDirs) > 0 {
		cfg.Packages.Dirs = o.packagesDirs
		cfg.ExpandPaths()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp builds the application, logging to the command's stderr.
func (o *rootOptions) newApp(cmd *cobra.Command, cfg *config.Config) (*app.Application, error) {
	if cfg == nil {
		var err error
		if cfg, err = o.loadConfig(); err != nil {
			return nil, err
		}
	}
	if cfg.Constants == nil {
		cfg.Constants = map[string]any{}
	}
	if _, ok := cfg.Constants["version"]; !ok {
		cfg.Constants["version"] = version
	}
	return app.New(app.Options{Config: cfg, LogOutput: cmd.ErrOrStderr()})
}

// startApp builds and starts the application, returning the load report.
func (o *rootOptions) startApp(cmd *cobra.Command, cfg *config.Config) (*app.Application, *plugin.Report, error) {
	application, err := o.newApp(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	report, err := application.Start(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return application, report, nil
}

// shutdown stops the application with a bounded wait.
func shutdown(application *app.Application) error {
	ctx, cancel := contextWithShutdownTimeout()
	defer cancel()
	return application.Shutdown(ctx)
}

func contextWithShutdownTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), shutdownTimeout)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "luashell %s\n", versionString())
		},
	}
}
