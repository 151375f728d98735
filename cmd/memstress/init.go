package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [profile.yaml]",
		Short: "Write a starter workload profile",
		Long: `The init command writes the built-in workload profile as YAML, ready
to edit and hand to run. Without a path it prints to stdout.

Example:
  memstress init
  memstress init churn.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args)
		},
	}
}

func runInit(args []string) error {
	data, err := yaml.Marshal(defaultProfile())
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if len(args) == 0 {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	printInfo("Wrote %s\n", args[0])
	return nil
}
