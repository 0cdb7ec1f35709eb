package lock

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/wlock/cmd/util"
	"github.com/ValentinKolb/wlock/lib/lock"
	"github.com/ValentinKolb/wlock/lib/lockmgr"
	vmetrics "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Contention benchmark for the lock manager",
		Long:    "Runs exclusive, shared, probe and mixed lock workloads in parallel against the in-process lock manager.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__perf"
	perfNumThreads = 10
	perfKeySpread  = 10
	perfSkip       = make([]string, 0)
	perfTests      = []string{"exclusive", "shared", "probe", "mixed"}
)

func init() {
	// add flags
	key := "skip"
	perfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. shared,probe)"))
	key = "threads"
	perfCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per CPU competing for the locks"))
	key = "keys"
	perfCmd.Flags().Int(key, 10, util.WrapString("How many different lock names to use for the tests (fewer names = more contention)"))
	key = "csv"
	perfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "metrics"
	perfCmd.Flags().Bool(key, false, util.WrapString("Print the collected lock metrics after the benchmark"))
}

func processPerfConfig(_ *cobra.Command, _ []string) error {
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread < 1 {
		return fmt.Errorf("keys must be at least 1 (got %d)", perfKeySpread)
	}
	if perfNumThreads < 1 {
		return fmt.Errorf("threads must be at least 1 (got %d)", perfNumThreads)
	}
	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	fmt.Println("Contention benchmark for the lock manager")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Keys: %d\n", perfKeySpread)
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)

	for _, test := range perfTests {
		bindings, err := getBindings(test)
		if err != nil {
			return err
		}

		// grants per worker of the last benchmark run
		var (
			mu     sync.Mutex
			grants []float64
		)

		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(test) {
				return
			}

			mu.Lock()
			grants = grants[:0]
			mu.Unlock()

			b.SetParallelism(perfNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter, granted := 0, 0
				for pb.Next() {
					l := bindings[counter%len(bindings)]
					ok, err := perfOp(ctx, test, counter, l)
					if err != nil {
						Logger.Warningf("(%s) - error on lock %s: %v", test, l.Name(), err)
					}
					if ok {
						granted++
					}
					counter++
				}

				mu.Lock()
				grants = append(grants, float64(granted))
				mu.Unlock()
			})
		})

		results[test] = result
		printResult(test, result)
		if result.NsPerOp() != 0 {
			fmt.Printf("%-20s%s\n", "", util.NewFairness(grants))
		}
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	if viper.GetBool("metrics") {
		fmt.Println("\nLock manager metrics:")
		if registry != nil {
			gometrics.WriteOnce(registry, os.Stdout)
		}
		fmt.Println("\nRequest metrics:")
		vmetrics.WritePrometheus(os.Stdout, false)
	}

	return nil
}

// perfOp runs a single request and release of the given benchmark and reports if the lock was granted
func perfOp(ctx context.Context, test string, counter int, l *lock.Binding) (bool, error) {
	var opts *lockmgr.Options
	switch test {
	case "exclusive":
		opts = nil
	case "shared":
		opts = &lockmgr.Options{Mode: lockmgr.ModeShared}
	case "probe":
		opts = &lockmgr.Options{IfAvailable: true}
	case "mixed":
		switch counter % 4 {
		case 0: // exclusive
			opts = &lockmgr.Options{Mode: lockmgr.ModeExclusive}
		case 1, 2: // shared
			opts = &lockmgr.Options{Mode: lockmgr.ModeShared}
		case 3: // probe
			opts = &lockmgr.Options{IfAvailable: true}
		}
	}

	h, err := l.Request(ctx, opts)
	if err != nil {
		return false, err
	}
	granted := h.Granted()
	h.Release()
	return granted, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// getBindings binds perfKeySpread lock names of a test to the default lock manager
func getBindings(test string) ([]*lock.Binding, error) {
	bindings := make([]*lock.Binding, perfKeySpread)
	for i := range bindings {
		b, err := lock.BindDefault(fmt.Sprintf("%s-%s-%d", perfKeyPrefix, test, i))
		if err != nil {
			return nil, err
		}
		bindings[i] = b
	}
	return bindings, nil
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped", "Threads", "Keys Count"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, test := range perfTests {
		result, ok := results[test]
		if !ok {
			continue
		}

		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return writer.Error()
}
