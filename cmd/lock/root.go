package lock

import (
	"github.com/ValentinKolb/wlock/cmd/util"
	"github.com/ValentinKolb/wlock/lib/common"
	"github.com/ValentinKolb/wlock/lib/lock"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
)

var (
	Logger = logger.GetLogger(common.LoggerCmd)

	// registry collects the metrics of the lock manager created for the command
	registry gometrics.Registry

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:               "lock",
		Short:             "Run lock scenarios and benchmarks",
		Long:              "Run lock scenarios and benchmarks against an in-process lock manager. The lock manager is installed as the process-wide default for the duration of the command.",
		PersistentPreRunE: setupLockManager,
	}
)

func init() {
	// Add subcommands to lock command
	LockCommands.AddCommand(demoCmd)
	LockCommands.AddCommand(perfCmd)

	// Add lock manager flags to the lock command
	util.SetupLockManagerFlags(LockCommands)
}

// setupLockManager creates the lock manager and installs it as the default
func setupLockManager(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := util.InitLogging(); err != nil {
		return err
	}

	registry = gometrics.NewRegistry()
	lock.SetDefault(util.NewLockManager(registry))
	Logger.Debugf("installed in-process lock manager")

	return nil
}
