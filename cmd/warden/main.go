package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands
type GlobalFlags struct {
	ConfigPath string
}

// QueryFlags holds flags for commands that talk to a running supervisor
type QueryFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

// RunFlags holds flags for the run command
type RunFlags struct {
	Script  string
	WorkDir string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	queryFlags := &QueryFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(globalFlags, runFlags),
		createURLCommand(queryFlags),
		createStatusCommand(queryFlags),
		createStopCommand(queryFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "warden",
		Short: "Backend service lifecycle supervisor",
		Long: `Warden supervises a backend service on behalf of a desktop
application shell: it launches the service detached, discovers its URL and
PID through a handshake file, and tears it down cleanly on exit.

Examples:
  warden run --script=./start_server.sh
  warden url
  warden status
  warden stop`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func createRunCommand(globalFlags *GlobalFlags, runFlags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the supervisor in the foreground",
		Long: `Run launches the configured backend service and supervises it until
the process receives SIGINT or SIGTERM, then runs the shutdown sequence:
terminate the service, append the audit entry, remove the handshake file.

Examples:
  warden run --config=warden.toml
  warden run --script="python server.py" --workdir=/opt/app`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(globalFlags.ConfigPath, *runFlags)
		},
	}
	cmd.Flags().StringVar(&runFlags.Script, "script", "", "launch script (overrides config)")
	cmd.Flags().StringVar(&runFlags.WorkDir, "workdir", "", "working directory for the script (overrides config)")
	return cmd
}

func createURLCommand(flags *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Print the backend service URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(flags.APIUrl, flags.APITimeout)
			url, err := client.ServiceURL()
			if err != nil {
				return err
			}
			fmt.Println(url)
			return nil
		},
	}
	addQueryFlags(cmd, flags)
	return cmd
}

func createStatusCommand(flags *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the backend service status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(flags.APIUrl, flags.APITimeout)
			st, err := client.Status()
			if err != nil {
				return err
			}
			printJSON(st)
			return nil
		},
	}
	addQueryFlags(cmd, flags)
	return cmd
}

func createStopCommand(flags *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask the running supervisor to shut down",
		Long: `Stop asks the supervisor to run its shutdown sequence. The
supervisor process exits after terminating the backend service.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(flags.APIUrl, flags.APITimeout)
			if err := client.Stop(); err != nil {
				return err
			}
			fmt.Println("stop requested")
			return nil
		},
	}
	addQueryFlags(cmd, flags)
	return cmd
}

func addQueryFlags(cmd *cobra.Command, flags *QueryFlags) {
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "", "supervisor API URL (e.g. http://127.0.0.1:8780/api)")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
}
