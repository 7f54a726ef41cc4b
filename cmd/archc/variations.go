package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oxhq/archc/internal/compiler"
	"github.com/oxhq/archc/internal/config"
	"github.com/oxhq/archc/internal/expr"
	"github.com/oxhq/archc/internal/script"
)

func newVariationsCmd(cfg *config.Config, log *logrus.Logger) *cobra.Command {
	var rawFilters []string
	cmd := &cobra.Command{
		Use:   "variations <script>",
		Short: "Enumerate every legal input configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := make([]*expr.Expression, 0, len(rawFilters))
			for _, raw := range rawFilters {
				e, err := expr.Parse(raw)
				if err != nil {
					return fmt.Errorf("filter %q: %w", raw, err)
				}
				filters = append(filters, e)
			}

			cwd, err := scriptCwd(args[0])
			if err != nil {
				return err
			}
			loader := script.NewFileLoader()
			root, err := loader.Load(args[0], false)
			if err != nil {
				return err
			}
			c := compiler.New(root, cwd,
				compiler.WithLoader(loader),
				compiler.WithLogger(logrus.NewEntry(log)),
				compiler.WithVariationProgress(cfg.VariationProgressRows))

			variations, err := c.Variations(filters)
			if err != nil {
				return err
			}
			for _, v := range variations {
				keys := make([]string, 0, len(v))
				for k := range v {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				pairs := make([]string, 0, len(keys))
				for _, k := range keys {
					pairs = append(pairs, k+"="+v[k])
				}
				fmt.Println(strings.Join(pairs, " "))
			}
			fmt.Printf("%d variation(s)\n", len(variations))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&rawFilters, "filter", nil, "exclusion filter expression (repeatable)")
	return cmd
}
