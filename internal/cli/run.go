package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <request...>",
	Short: "Run one workflow request and print the report",
	Long: `Run drives a single workflow from the command line: the request is
planned, reviewed, executed step by step, and the final report is printed
to stdout.

Example:
  mofflow run "find a copper MOF and optimize its structure"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		request := strings.Join(args, " ")
		st := rt.orch.Run(ctx, request)

		if st.Plan != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Plan: %s\n\n", strings.Join(st.Plan.Steps, " -> "))
		}
		fmt.Fprintln(cmd.OutOrStdout(), st.Report)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
