package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <imageDirA> <imageDirB>",
		Short: "Compare two compiled archetype images",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, err := diffImages(args[0], args[1])
			if err != nil {
				return err
			}
			if changed {
				os.Exit(2)
			}
			fmt.Println("images are identical")
			return nil
		},
	}
}

func diffImages(dirA, dirB string) (bool, error) {
	names := map[string]bool{"main.xml": true}
	for _, dir := range []string{dirA, dirB} {
		entries, err := os.ReadDir(filepath.Join(dir, "blobs"))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return false, err
		}
		for _, e := range entries {
			names[filepath.Join("blobs", e.Name())] = true
		}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	changed := false
	for _, name := range sorted {
		a := readOrEmpty(filepath.Join(dirA, name))
		b := readOrEmpty(filepath.Join(dirB, name))
		if a == b {
			continue
		}
		changed = true
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(a),
			B:        difflib.SplitLines(b),
			FromFile: filepath.Join(dirA, name),
			ToFile:   filepath.Join(dirB, name),
			Context:  3,
		})
		if err != nil {
			return false, err
		}
		fmt.Print(diff)
	}
	return changed, nil
}

func readOrEmpty(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
