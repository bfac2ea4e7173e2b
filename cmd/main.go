package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kass/go-fissura/pkg/config"
	"github.com/kass/go-fissura/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configFile   string
	envFile      string
	projectsRoot string
	projectName  string
	logLevel     string
	logFormat    string
	verbose      bool

	cfg    config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fissura",
	Short: "Organize building inspection photos by building and facade",
	Long: `Reads GPS position and compass heading from inspection photos, groups them into
buildings by proximity and files them under <projects>/<project>/images/<building>/fachada-<facade>.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before FISSURA_* variables")
	rootCmd.PersistentFlags().StringVar(&projectsRoot, "projects-root", "", "Directory holding all projects")
	rootCmd.PersistentFlags().StringVarP(&projectName, "project", "p", "", "Project name")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Shorthand for --log-level debug")

	rootCmd.AddCommand(processCmd, scanCmd, detectCmd, catalogCmd, projectCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		stop()
		os.Exit(1)
	}
}

// setup loads the layered configuration and lets explicitly set flags win
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFile, envFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("projects-root") {
		loaded.ProjectsRoot = projectsRoot
	}
	if flags.Changed("project") {
		loaded.Project = projectName
	}
	if flags.Changed("log-level") {
		loaded.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		loaded.Log.Format = logFormat
	}
	if verbose {
		loaded.Log.Level = "debug"
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	logger, err = logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return err
}
