// cmd/advisor/registry.go
package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"immigration-advisor/internal/common/camunda"
	"immigration-advisor/internal/common/config"
	"immigration-advisor/pkg/registry"
)

func newRegistryCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the activity registry used by the job workers",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "registry file (default: the built-in registry)")

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check that every worker has a registry entry with a usable schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			problems := validateRegistry(reg, workerTaskTypes)
			for _, p := range problems {
				fmt.Fprintln(cmd.ErrOrStderr(), p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("registry validation failed: %d problem(s)", len(problems))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Registry validation passed.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered activities with their resolved timeout and retries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			return listRegistry(cmd.OutOrStdout(), reg)
		},
	})

	return cmd
}

// validateRegistry reports activities that cannot be served: a worker with
// no entry, an entry no worker handles, and entries whose timeout or input
// schema do not parse.
func validateRegistry(reg *registry.ActivityRegistry, taskTypes []string) []string {
	var problems []string
	if len(reg.Activities) == 0 {
		return []string{"registry contains no activities"}
	}

	served := make(map[string]bool, len(taskTypes))
	for _, taskType := range taskTypes {
		served[taskType] = true
		if _, ok := reg.Find(taskType); !ok {
			problems = append(problems, fmt.Sprintf("%s: no registry entry", taskType))
		}
	}

	ids := make(map[string]bool, len(reg.Activities))
	for _, a := range reg.Activities {
		if a.ID == "" {
			problems = append(problems, fmt.Sprintf("%s: missing id", a.TaskType))
		} else if ids[a.ID] {
			problems = append(problems, fmt.Sprintf("%s: duplicate id", a.ID))
		}
		ids[a.ID] = true

		if !served[a.TaskType] {
			problems = append(problems, fmt.Sprintf("%s: no worker handles this task type", a.TaskType))
		}
		if a.Timeout != "" && a.TimeoutDuration() <= 0 {
			problems = append(problems, fmt.Sprintf("%s: invalid timeout %q", a.TaskType, a.Timeout))
		}
		if _, err := camunda.ResolveJob(&config.Config{}, reg, a.TaskType); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", a.TaskType, err))
		}
	}
	return problems
}

func listRegistry(w io.Writer, reg *registry.ActivityRegistry) error {
	activities := append([]registry.Activity(nil), reg.Activities...)
	sort.Slice(activities, func(i, j int) bool { return activities[i].TaskType < activities[j].TaskType })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK TYPE\tTIMEOUT\tRETRIES\tSTATUS")
	for _, a := range activities {
		settings, err := camunda.ResolveJob(&config.Config{}, reg, a.TaskType)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", a.TaskType, settings.Timeout, settings.MaxRetries, a.ImplementationStatus)
	}
	return tw.Flush()
}
