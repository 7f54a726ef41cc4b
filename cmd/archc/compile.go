package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oxhq/archc/internal/cache"
	"github.com/oxhq/archc/internal/compiler"
	"github.com/oxhq/archc/internal/config"
	"github.com/oxhq/archc/internal/model"
	"github.com/oxhq/archc/internal/script"
)

type compileFlags struct {
	output         string
	validateOnly   bool
	skipValidation bool
	ignoreErrors   bool
	noOutput       bool
	noTransient    bool
}

func (f compileFlags) flags() compiler.Flags {
	var out compiler.Flags
	if f.validateOnly {
		out |= compiler.ValidateOnly
	}
	if f.skipValidation {
		out |= compiler.SkipValidation
	}
	if f.ignoreErrors {
		out |= compiler.IgnoreErrors
	}
	if f.noOutput {
		out |= compiler.NoOutput
	}
	if f.noTransient {
		out |= compiler.NoTransient
	}
	return out
}

func (f compileFlags) String() string {
	var parts []string
	for _, p := range []struct {
		set  bool
		name string
	}{
		{f.validateOnly, "validate-only"},
		{f.skipValidation, "skip-validation"},
		{f.ignoreErrors, "ignore-errors"},
		{f.noOutput, "no-output"},
		{f.noTransient, "no-transient"},
	} {
		if p.set {
			parts = append(parts, p.name)
		}
	}
	return strings.Join(parts, ",")
}

func newCompileCmd(cfg *config.Config, log *logrus.Logger) *cobra.Command {
	var flags compileFlags
	cmd := &cobra.Command{
		Use:   "compile <script>",
		Short: "Compile a script into an archetype image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cfg, log, args[0], flags)
		},
	}
	cmd.Flags().StringVarP(&flags.output, "output", "o", "archetype-image", "image output directory")
	cmd.Flags().BoolVar(&flags.validateOnly, "validate-only", false, "stop after validation")
	cmd.Flags().BoolVar(&flags.skipValidation, "skip-validation", false, "build without validating")
	cmd.Flags().BoolVar(&flags.ignoreErrors, "ignore-errors", false, "build even when validation fails")
	cmd.Flags().BoolVar(&flags.noOutput, "no-output", false, "skip output rendering")
	cmd.Flags().BoolVar(&flags.noTransient, "no-transient", false, "drop transient variables")
	return cmd
}

func newValidateCmd(cfg *config.Config, log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <script>",
		Short: "Validate a script without building an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cfg, log, args[0], compileFlags{validateOnly: true})
		},
	}
}

func runCompile(cfg *config.Config, log *logrus.Logger, scriptPath string, flags compileFlags) error {
	raw, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	sum := sha256.Sum256(raw)
	checksum := hex.EncodeToString(sum[:])

	var store *cache.Store
	if !cfg.CacheDisabled {
		store, err = cache.Open(cfg.CachePath)
		if err != nil {
			log.WithError(err).Warn("compile cache unavailable")
		} else {
			defer store.Close()
			if last, err := store.LastRun(checksum); err == nil && last != nil && last.Flags == flags.String() && last.ErrorCount == 0 {
				fmt.Printf("%s unchanged since last compile (%s)\n", scriptPath, last.CreatedAt.Format("2006-01-02 15:04:05"))
			}
		}
	}

	cwd, err := scriptCwd(scriptPath)
	if err != nil {
		return err
	}
	loader := script.NewFileLoader()
	root, err := loader.Load(scriptPath, false)
	if err != nil {
		return err
	}

	c := compiler.New(root, cwd,
		compiler.WithLoader(loader),
		compiler.WithLogger(logrus.NewEntry(log)))
	img, err := c.Compile(flags.flags())
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			recordRun(log, store, checksum, flags, nil, len(verr.Errors()))
		}
		return err
	}

	if flags.validateOnly {
		fmt.Printf("%s is valid\n", scriptPath)
		recordRun(log, store, checksum, flags, nil, 0)
		return nil
	}

	if err := img.Write(flags.output); err != nil {
		return err
	}
	fmt.Printf("compiled %s -> %s (%d blobs)\n", scriptPath, flags.output, img.Blobs.Len())

	blobs := map[string]int{}
	for _, id := range img.Blobs.IDs() {
		content, _ := img.Blobs.Get(id)
		blobs[id] = len(content)
	}
	recordRun(log, store, checksum, flags, blobs, 0)
	return nil
}

func recordRun(log *logrus.Logger, store *cache.Store, checksum string, flags compileFlags, blobs map[string]int, errorCount int) {
	if store == nil {
		return
	}
	if err := store.RecordRun(checksum, flags.String(), blobs, errorCount, nil); err != nil {
		log.WithError(err).Warn("compile cache not updated")
	}
}
