package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := buildRoot(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// buildRoot creates the root command with every subcommand attached.
func buildRoot(out, errOut io.Writer) *cobra.Command {
	globalFlags := &GlobalFlags{}
	pmrCommand := command{global: globalFlags, out: out, errOut: errOut}

	root := createRootCommand(globalFlags)
	root.SetOut(out)
	root.SetErr(errOut)
	root.AddCommand(
		createStartCommand(pmrCommand),
		createListCommand(pmrCommand),
		createStopCommand(pmrCommand),
		createRestartCommand(pmrCommand),
		createDeleteCommand(pmrCommand),
		createLogCommand(pmrCommand),
		createHistoryCommand(pmrCommand),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "pmr",
		Short: "Local process manager",
		Long: `pmr starts programs in the background, remembers them in a registry and lets you
list, stop, restart, delete and tail them from later invocations.

Examples:
  pmr start sleep 300
  pmr start --name web --config web.json
  pmr list
  pmr restart web
  pmr log 1`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.Home, "home", "", "state directory (default $PMR_HOME or ~/.pmr)")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "console log level: debug, info, warn, error")
	return root
}

func createStartCommand(pmrCommand command) *cobra.Command {
	f := &StartFlags{}
	cmd := &cobra.Command{
		Use:   "start [--config FILE] [--name NAME] [target] [-- args...]",
		Short: "Start a new program or a registered process",
		Long: `Start launches target. When target names an existing id or process it is
started again under the same id; otherwise target is run as a new program.

Examples:
  pmr start sleep 300
  pmr start --name api ./server --port 8080
  pmr start --config app.json -- --verbose
  pmr start 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Target, f.Args = splitTarget(args, cmd.ArgsLenAtDash())
			return pmrCommand.Start(cmd.Context(), *f)
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "", "descriptor file with name, program and args (json, yaml or toml)")
	cmd.Flags().StringVarP(&f.Name, "name", "n", "", "process name")
	cmd.Flags().StringVar(&f.Namespace, "namespace", "", "namespace (default \"default\")")
	return cmd
}

func createListCommand(pmrCommand command) *cobra.Command {
	f := &ListFlags{}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "ps", "status"},
		Short:   "List supervised processes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pmrCommand.List(cmd.Context(), *f)
		},
	}
	cmd.Flags().BoolVarP(&f.System, "system", "s", false, "list every process of the host")
	cmd.Flags().StringVarP(&f.Output, "output", "o", "table", "output format: table, json, yaml")
	return cmd
}

func createStopCommand(pmrCommand command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <target>",
		Short: "Stop a process by id or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return pmrCommand.Stop(cmd.Context(), args[0])
		},
	}
}

func createRestartCommand(pmrCommand command) *cobra.Command {
	f := &RestartFlags{}
	cmd := &cobra.Command{
		Use:   "restart [--config FILE] [target] [-- args...]",
		Short: "Restart a process, or start it when unknown",
		Long: `Restart stops target and runs it again with the program, arguments and working
directory recorded when it was first started. An unknown target is started as
a new program.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Target, f.Args = splitTarget(args, cmd.ArgsLenAtDash())
			return pmrCommand.Restart(cmd.Context(), *f)
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "", "descriptor file used when target is unknown")
	cmd.Flags().StringVar(&f.Namespace, "namespace", "", "namespace for a new process")
	return cmd
}

func createDeleteCommand(pmrCommand command) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <target>",
		Aliases: []string{"rm", "del"},
		Short:   "Stop a process if needed and remove it from the registry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return pmrCommand.Delete(cmd.Context(), args[0])
		},
	}
}

func createLogCommand(pmrCommand command) *cobra.Command {
	return &cobra.Command{
		Use:     "log <target>",
		Aliases: []string{"logs"},
		Short:   "Follow the output of a process",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return pmrCommand.Log(cmd.Context(), args[0])
		},
	}
}

func createHistoryCommand(pmrCommand command) *cobra.Command {
	f := &HistoryFlags{}
	cmd := &cobra.Command{
		Use:   "history [target]",
		Short: "Show recorded lifecycle events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.Target = args[0]
			}
			return pmrCommand.History(cmd.Context(), *f)
		},
	}
	cmd.Flags().IntVarP(&f.Limit, "limit", "l", 20, "maximum number of events")
	cmd.Flags().StringVarP(&f.Output, "output", "o", "table", "output format: table, json, yaml")
	return cmd
}
