// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/llir/llvm/asm"
	"github.com/spf13/cobra"

	"z0/internal/config"
	"z0/internal/diag"
	"z0/internal/driver"
)

var version = "0.1.0"

func main() {
	var cfgPath string
	var prefixOverride string

	rootCmd := &cobra.Command{
		Use:     "z0",
		Short:   "z0 checks a compiled C0 subset for contract violations and unsafe arithmetic",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".z0.yml", "path to a z0 configuration file")
	rootCmd.PersistentFlags().StringVar(&prefixOverride, "prefix", "", "override the analysis function-name prefix")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.ll>",
		Short: "Analyze an LLVM IR module once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath, prefixOverride)
			if err != nil {
				return err
			}
			ok, err := analyzeOnce(args[0], cfg)
			if err != nil {
				return err
			}
			if !ok {
				os.Exit(1)
			}
			return nil
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch <file.ll>",
		Short: "Re-run analyze every time the file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath, prefixOverride)
			if err != nil {
				return err
			}
			return watchAndAnalyze(args[0], cfg)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("z0 v%s\n", version)
		},
	}

	rootCmd.AddCommand(analyzeCmd, watchCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func loadConfig(path, prefixOverride string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if prefixOverride != "" {
		cfg.FunctionPrefix = prefixOverride
	}
	return cfg, nil
}

// analyzeOnce parses path as LLVM IR and runs the analyzer once. Exit
// code is the driver's: success if every analyzed function verified,
// failure otherwise.
func analyzeOnce(path string, cfg config.Config) (bool, error) {
	m, err := asm.ParseFile(path)
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", path, err)
	}

	rep := diag.NewReporter(os.Stdout, os.Stderr)
	_, ok := driver.Run(m, cfg, rep)
	return ok, nil
}

// watchAndAnalyze re-runs analyzeOnce on every write to path, for an
// edit-compile-check loop.
func watchAndAnalyze(path string, cfg config.Config) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	name := filepath.Base(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	color.Cyan("watching %s for changes (ctrl-c to stop)", path)
	if _, err := analyzeOnce(path, cfg); err != nil {
		color.Red("%v", err)
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			color.Cyan("\n%s changed, re-analyzing...", path)
			if _, err := analyzeOnce(path, cfg); err != nil {
				color.Red("%v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			color.Red("watcher error: %v", err)
		}
	}
}
