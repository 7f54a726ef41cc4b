// Command archc compiles archetype scripts into pre-resolved, validated,
// de-duplicated archetype images, and enumerates their input variations.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oxhq/archc/internal/config"
)

func main() {
	// Best effort: a missing .env is the normal case.
	_ = godotenv.Load()
	cfg := config.LoadConfig()

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	root := &cobra.Command{
		Use:           "archc",
		Short:         "Archetype script compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newCompileCmd(cfg, log),
		newValidateCmd(cfg, log),
		newVariationsCmd(cfg, log),
		newDiffCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// scriptCwd returns the directory the script's relative references resolve
// against.
func scriptCwd(scriptPath string) (string, error) {
	abs, err := filepath.Abs(scriptPath)
	if err != nil {
		return "", err
	}
	return filepath.Dir(abs), nil
}
