package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-shh/internal/config"
	"github.com/jrsteele09/go-shh/internal/logging"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logJSON    bool
	logVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "shh",
	Short:         "Share secrets through single use links",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&logJSON, "json", "j", false, "log as JSON")
	rootCmd.PersistentFlags().BoolVarP(&logVerbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(initCmd, serverCmd, workerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers flags the user set over the config file and environment,
// then configures logging from the result.
func loadConfig(cmd *cobra.Command, overrides map[string]any) (*config.Settings, error) {
	if overrides == nil {
		overrides = map[string]any{}
	}
	if cmd.Flags().Changed("json") {
		overrides["log.json"] = logJSON
	}
	if cmd.Flags().Changed("verbose") {
		overrides["log.verbose"] = logVerbose
	}

	cfg, err := config.Load(configPath, overrides)
	if err != nil {
		return nil, err
	}
	logging.Configure(cfg.GetLogJSON(), cfg.GetLogVerbose())
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
