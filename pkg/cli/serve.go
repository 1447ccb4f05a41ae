package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/apicentric/pulsed/pkg/config"
	"github.com/apicentric/pulsed/pkg/engine"
	"github.com/apicentric/pulsed/pkg/logging"
	"github.com/apicentric/pulsed/pkg/service"
)

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	servicesDir string
	configPath  string
	logLevel    string
	logFormat   string
}

var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start simulated services and run until interrupted",
	Example: `  # Serve every definition in a directory
  pulsed serve --services ./services

  # Serve a single definition
  pulsed serve --config users.yaml

  # JSON logs for CI parsing
  pulsed serve --services ./services --log-format json`,
	RunE: runServe,
}

func init() {
	f := &serveFlagVals

	serveCmd.Flags().StringVarP(&f.servicesDir, "services", "s", "", "Directory of service definition files (YAML or JSON)")
	serveCmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to a single service definition file")
	serveCmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")

	serveCmd.MarkFlagsOneRequired("services", "config")
	serveCmd.MarkFlagsMutuallyExclusive("services", "config")

	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	f := &serveFlagVals

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(f.logLevel),
		Format: logging.ParseFormat(f.logFormat),
	})

	definitions, err := loadDefinitions(f.servicesDir, f.configPath, func(loadErr *config.LoadError) {
		log.Error("skipping definition", "file", loadErr.Path, "error", loadErr.Err)
	})
	if err != nil {
		return err
	}
	if len(definitions) == 0 {
		return fmt.Errorf("no loadable service definitions")
	}

	manager := engine.NewManager(log)
	started := 0
	for _, def := range definitions {
		rt, err := manager.Start(def)
		if err != nil {
			// One broken service never blocks its neighbors.
			log.Error("service failed to start", "service", def.Name, "error", err)
			continue
		}
		fmt.Printf("  %s listening on :%d\n", def.Name, rt.Port())
		started++
	}
	if started == 0 {
		return fmt.Errorf("no services started")
	}
	log.Info("engine up", "services", started)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return manager.StopAll(ctx)
}

func loadDefinitions(dir, file string, onSkip func(*config.LoadError)) ([]*service.Definition, error) {
	if file != "" {
		def, err := config.LoadFromFile(file)
		if err != nil {
			return nil, err
		}
		return []*service.Definition{def}, nil
	}

	result, err := config.LoadDirectory(dir)
	if err != nil {
		return nil, err
	}
	for i := range result.Errors {
		onSkip(&result.Errors[i])
	}
	return result.Definitions, nil
}
