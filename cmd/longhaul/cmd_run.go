package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runCmd processes a single symbolic command through the pipeline.
var runCmd = &cobra.Command{
	Use:   "run [command]",
	Short: "Process one symbolic command through the pipeline",
	Long: `Parses the command, runs the applicable steps in fixed order
(load, execute, update, marathon), and prints the aggregated result.

Example:
  longhaul run "--- +++ capture https://dashboard.internal/status"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.teardown(cmd)

		raw := strings.Join(args, " ")
		resp := rt.orch.ProcessCommand(cmd.Context(), raw)
		printResponse(resp)

		if !resp.Success {
			// Partial progress is reported above; the exit code still
			// signals failure to scripts.
			return fmt.Errorf("command finished with %d error(s)", len(resp.Errors))
		}
		return nil
	},
}

// replCmd processes commands interactively until EOF or "quit".
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Process symbolic commands interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.teardown(cmd)

		// Finalize the session on Ctrl-C as well.
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		done := make(chan struct{})
		go func() {
			select {
			case <-sigs:
				fmt.Println("\nshutting down...")
				os.Stdin.Close()
			case <-done:
			}
		}()
		defer func() {
			signal.Stop(sigs)
			close(done)
		}()

		fmt.Printf("longhaul session %s (quit to exit)\n", rt.orch.CurrentSession().ID)

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "quit" || line == "exit" {
				break
			}

			resp := rt.orch.ProcessCommand(cmd.Context(), line)
			printResponse(resp)
		}
		return nil
	},
}

func printResponse(resp interface{}) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		logger.Warn("failed to render response", zap.Error(err))
		fmt.Printf("%+v\n", resp)
		return
	}
	fmt.Println(string(data))
}
