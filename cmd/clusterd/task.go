package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/ClusterLabs/pcs-sub012/internal/archive"
	"github.com/ClusterLabs/pcs-sub012/internal/client"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

var (
	taskParams     []string
	taskParamsJSON string
	taskWait       bool
	taskArchived   bool
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, inspect and kill tasks on a running daemon",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <command>",
	Short: "Schedule a command",
	Long: `Schedule a command and print its task ident.

Parameter values given with -p are parsed as JSON when possible and taken as
plain strings otherwise.`,
	Example: `  clusterd task create cluster.status
  clusterd task create sleep -p seconds=5 --wait
  clusterd task create echo --params '{"nodes":["a","b"]}'`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskCreate,
}

var taskGetCmd = &cobra.Command{
	Use:   "get <task_ident>",
	Short: "Print a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskGet,
}

var taskKillCmd = &cobra.Command{
	Use:   "kill <task_ident>",
	Short: "Kill a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskKill,
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskCreateCmd, taskGetCmd, taskKillCmd)

	taskCreateCmd.Flags().StringArrayVarP(&taskParams, "param", "p", nil, "command parameter as key=value")
	taskCreateCmd.Flags().StringVar(&taskParamsJSON, "params", "", "command parameters as a JSON object")
	taskCreateCmd.Flags().BoolVar(&taskWait, "wait", false, "wait for the task to finish and print it")

	taskGetCmd.Flags().BoolVar(&taskArchived, "archived", false, "read the task from the archive instead of the daemon")
}

func newClient() (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Client)
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	params, err := buildParams(taskParamsJSON, taskParams)
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	ident, err := c.CreateTask(ctx, args[0], params)
	if err != nil {
		return err
	}
	if !taskWait {
		fmt.Fprintln(cmd.OutOrStdout(), ident)
		return nil
	}

	dto, err := c.WaitTask(ctx, ident)
	if err != nil {
		return fmt.Errorf("wait for task %s: %w", ident, err)
	}
	if err := printJSON(cmd, dto); err != nil {
		return err
	}
	if dto.TaskFinishType != types.FinishSuccess {
		return fmt.Errorf("task %s finished with %s", ident, dto.TaskFinishType)
	}
	return nil
}

func runTaskGet(cmd *cobra.Command, args []string) error {
	if taskArchived {
		return runArchivedGet(cmd, args[0])
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	dto, err := c.GetTask(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, dto)
}

func runArchivedGet(cmd *cobra.Command, ident string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := archive.NewRedis(cmd.Context(), cfg.Archive)
	if err != nil {
		return err
	}
	defer a.Close()

	dto, err := a.Load(cmd.Context(), ident)
	if errors.Is(err, archive.ErrNotArchived) {
		return fmt.Errorf("task %s is not in the archive", ident)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd, dto)
}

func runTaskKill(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	return c.KillTask(cmd.Context(), args[0])
}

// buildParams merges the --params object with -p pairs; pairs win.
func buildParams(rawJSON string, pairs []string) (map[string]any, error) {
	params := map[string]any{}
	if rawJSON != "" {
		if err := sonic.UnmarshalString(rawJSON, &params); err != nil {
			return nil, fmt.Errorf("--params must be a JSON object: %w", err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		var v any
		if err := sonic.UnmarshalString(value, &v); err != nil {
			v = value
		}
		params[key] = v
	}
	return params, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
