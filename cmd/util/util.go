package util

import (
	"strings"

	"github.com/ValentinKolb/wlock/lib/common"
	"github.com/ValentinKolb/wlock/lib/lockmgr"
	"github.com/ValentinKolb/wlock/lib/lockmgr/local"
	"github.com/joho/godotenv"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. WLOCK_LOG_LEVEL)
	EnvPrefix = "wlock"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupLockManagerFlags adds the flags configuring the lock manager to a command
func SetupLockManagerFlags(cmd *cobra.Command) {
	key := "client-id"
	cmd.PersistentFlags().String(key, "", WrapString("Client ID reported for all locks of this process (empty = random)"))
}

// InitConfig loads .env files and initializes viper to read environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// InitLogging sets up the loggers with the configured log level
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}

// GetLockManagerOptions reads the lock manager options from viper
func GetLockManagerOptions(registry metrics.Registry) *local.Options {
	return &local.Options{
		ClientID: viper.GetString("client-id"),
		Registry: registry,
	}
}

// NewLockManager creates the in-process lock manager from the configuration
func NewLockManager(registry metrics.Registry) lockmgr.ILockManager {
	return local.NewLockManager(GetLockManagerOptions(registry))
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
