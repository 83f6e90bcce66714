// cmd/tools/registry-updater/main.go
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dispatch-workers/pkg/registry"
)

var registryPath string

var rootCmd = &cobra.Command{
	Use:   "registry-updater",
	Short: "Inspect and maintain the dispatch activity registry",
	Long: `Inspect and maintain pkg/registry/activities.json.

The worker binary embeds the registry; rebuild after editing it.`,
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the activities bound to dispatch task types",
	RunE:  runList,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the registry file, including its input schemas",
	RunE:  runValidate,
}

var updateCmd = &cobra.Command{
	Use:     "update <taskType> <field> <value>",
	Short:   "Update a field of an existing activity",
	Example: "  registry-updater update plan-emergency-diversion timeout 45s",
	Args:    cobra.ExactArgs(3),
	RunE:    runUpdate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&registryPath, "path", "pkg/registry/activities.json", "path to registry file")
	rootCmd.AddCommand(listCmd, validateCmd, updateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runList(cmd *cobra.Command, args []string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	for _, a := range reg.Activities {
		fmt.Fprintf(cmd.OutOrStdout(), "%-28s %-10s v%-6s timeout=%-4s retries=%d\n", a.TaskType, a.Category, a.Version, a.Timeout, a.Retries)
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	taskType, field, value := args[0], args[1], args[2]

	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	activity, ok := reg.Find(taskType)
	if !ok {
		return fmt.Errorf("task type %s not found", taskType)
	}

	switch field {
	case "version":
		activity.Version = value
	case "displayName":
		activity.DisplayName = value
	case "description":
		activity.Description = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		activity.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		activity.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	if err := reg.Validate(); err != nil {
		return err
	}
	if err := reg.Save(registryPath, time.Now()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s, field %s to %s\n", taskType, field, value)
	return nil
}
