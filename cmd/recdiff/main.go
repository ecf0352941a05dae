// recdiff is a small developer utility over the change-set generator: it
// reads two JSON record files and prints the change set between them.
// Build with: go build -o bin/recdiff ./cmd/recdiff
// Usage: recdiff old.json new.json
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/arthur-debert/recordstore/record"
	"github.com/spf13/cobra"
)

var compact bool

var rootCmd = &cobra.Command{
	Use:   "recdiff <old.json> <new.json>",
	Short: "Print the change set between two record files",
	Long:  "Compare two JSON record files and print the revision change set a record store would persist for the transition, or nothing when the records are equal.",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func init() {
	rootCmd.Flags().BoolVarP(&compact, "compact", "c", false, "print the change set on a single line")
}

func runDiff(cmd *cobra.Command, args []string) error {
	old, err := loadValue(args[0])
	if err != nil {
		return err
	}
	new, err := loadValue(args[1])
	if err != nil {
		return err
	}

	changes := record.GenerateChanges(old, new)
	if changes == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "no changes")
		return nil
	}

	var out []byte
	if compact {
		out, err = json.Marshal(changes)
	} else {
		out, err = json.MarshalIndent(changes, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode change set: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func loadValue(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return value, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
