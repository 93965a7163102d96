package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// marathonCmd groups marathon lifecycle operations.
var marathonCmd = &cobra.Command{
	Use:   "marathon",
	Short: "Inspect and manage the long-running marathon task",
}

var marathonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the marathon state and recent checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.teardown(cmd)

		machine := rt.orch.Marathon()
		fmt.Printf("state: %s\n", machine.State())

		task := machine.CurrentTask()
		if task == nil {
			fmt.Println("no active task")
			return nil
		}
		fmt.Printf("task: %s (%s)\n", task.Description, task.ID)

		checkpoints, err := machine.History(10)
		if err != nil {
			return err
		}
		for _, cp := range checkpoints {
			kind := "manual"
			if cp.Automatic {
				kind = "auto"
			}
			fmt.Printf("  %s  [%s]  %s\n", cp.CreatedAt.Format("2006-01-02 15:04:05"), kind, cp.Description)
		}
		return nil
	},
}

var marathonTransferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Hand the active task off and print the continuation payload",
	Long: `Transfers the active marathon task out of this process and prints the
serializable continuation (task, session id, last checkpoint) for a
follow-up session to restore from.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.teardown(cmd)

		cont, err := rt.orch.Marathon().Transfer()
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(cont, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var marathonRestoreCmd = &cobra.Command{
	Use:   "restore [checkpoint-id]",
	Short: "Re-activate a task from a prior checkpoint in this session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.teardown(cmd)

		task, err := rt.orch.Marathon().Restore(args[0], rt.orch.CurrentSession().ID)
		if err != nil {
			return err
		}

		fmt.Printf("restored task %s: %s\n", task.ID, task.Description)
		return nil
	},
}

var marathonCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Mark the active marathon task as done",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.teardown(cmd)

		machine := rt.orch.Marathon()
		task := machine.CurrentTask()
		if err := machine.Complete(); err != nil {
			return err
		}
		if task != nil {
			fmt.Printf("completed task %s: %s\n", task.ID, task.Description)
		}
		return nil
	},
}

func init() {
	marathonCmd.AddCommand(marathonStatusCmd)
	marathonCmd.AddCommand(marathonTransferCmd)
	marathonCmd.AddCommand(marathonRestoreCmd)
	marathonCmd.AddCommand(marathonCompleteCmd)
}
