package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/wlock/cmd/lock"
	"github.com/ValentinKolb/wlock/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "wlock",
		Short: "cooperative lock coordinator",
		Long: fmt.Sprintf(`wLock (v%s)

Cooperative, named locks for concurrent code in a single process.
Requests are granted in FIFO order, support shared and exclusive
modes, non-blocking probes and lock stealing.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of wLock",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("wLock v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
