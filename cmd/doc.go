// Package cmd implements the command-line interface of wLock. It runs lock
// scenarios and benchmarks against an in-process lock manager.
//
// The package is organized into several subpackages:
//
//   - lock: Commands for lock scenarios (demo) and contention benchmarks (perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set through environment variables with the WLOCK_
// prefix (e.g. WLOCK_LOG_LEVEL=debug) or in a .env / .env.local file.
//
// See wlock -help for a list of all commands.
package cmd
