package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/aKV/cmd/util"
	"github.com/ValentinKolb/aKV/lib/store"
	"github.com/google/uuid"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Benchmark an aKV server",
		Long: `Runs write, write-sync, read and await scenarios against the configured shard
and reports the latency percentiles of every scenario. All keys of a run are prefixed with
a random run id, so runs do not interfere with each other.`,
		Args: cobra.NoArgs,
		RunE: runBenchCmd,
	}

	// benchScenarios lists all scenarios in the order they are run
	benchScenarios = []string{"write", "write-sync", "read", "await"}
)

func init() {
	key := "threads"
	benchCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines issuing requests"))
	key = "ops"
	benchCmd.Flags().Int(key, 1000, util.WrapString("Number of operations per scenario"))
	key = "value-size"
	benchCmd.Flags().Int(key, 100, util.WrapString("Size of the written values (in bytes)"))
	key = "keys"
	benchCmd.Flags().Int(key, 100, util.WrapString("How many different keys the write and read scenarios use"))
	key = "skip"
	benchCmd.Flags().String(key, "", util.WrapString("Scenarios to skip (comma separated - e.g. write,await)"))
	key = "csv"
	benchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

// benchConfig configures a benchmark run
type benchConfig struct {
	RunID     string
	Threads   int
	Ops       int
	ValueSize int
	Keys      int
	Skip      []string
}

// benchResult holds the measurements of one scenario
type benchResult struct {
	Name    string
	Skipped bool
	Elapsed time.Duration
	Timer   gometrics.Timer
	Errors  gometrics.Counter
}

// OpsPerSec returns the throughput of the scenario
func (r benchResult) OpsPerSec() float64 {
	if r.Skipped || r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Timer.Count()) / r.Elapsed.Seconds()
}

func runBenchCmd(cmd *cobra.Command, _ []string) error {
	config := benchConfig{
		RunID:     uuid.Must(uuid.NewV7()).String(),
		Threads:   viper.GetInt("threads"),
		Ops:       viper.GetInt("ops"),
		ValueSize: viper.GetInt("value-size"),
		Keys:      viper.GetInt("keys"),
	}
	if skip := viper.GetString("skip"); skip != "" {
		config.Skip = strings.Split(skip, ",")
	}

	fmt.Println("Benchmark for aKV servers")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Run ID: %s\nThreads: %d\nOps: %d\n", config.RunID, config.Threads, config.Ops)
	fmt.Println()

	results, err := runBench(cmd.Context(), rpcStore, config)
	if err != nil {
		return err
	}
	for _, r := range results {
		printResult(r)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %w", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runBench runs all scenarios that are not skipped against s
func runBench(ctx context.Context, s store.IStore, config benchConfig) ([]benchResult, error) {
	if config.Threads <= 0 || config.Ops <= 0 || config.Keys <= 0 || config.ValueSize < 0 {
		return nil, fmt.Errorf("threads, ops and keys must be positive")
	}

	registry := gometrics.NewRegistry()
	value := make([]byte, config.ValueSize)
	keys := make([][]byte, config.Keys)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("__bench/%s/%d", config.RunID, i))
	}

	scenarios := map[string]func(ctx context.Context, i int) error{
		"write": func(ctx context.Context, i int) error {
			return s.Write(ctx, keys[i%len(keys)], value)
		},
		"write-sync": func(ctx context.Context, i int) error {
			return s.WriteSync(ctx, keys[i%len(keys)], value)
		},
		"read": func(ctx context.Context, i int) error {
			_, _, err := s.Read(ctx, keys[i%len(keys)])
			return err
		},
		// a round trip: park a waiter on a fresh key and resolve it with a write
		"await": func(ctx context.Context, i int) error {
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			key := []byte(fmt.Sprintf("__bench/%s/await-%d", config.RunID, i))
			errCh := make(chan error, 1)
			go func() {
				_, err := s.AwaitRead(ctx, key)
				errCh <- err
			}()
			if err := s.Write(ctx, key, value); err != nil {
				return err
			}
			return <-errCh
		},
	}

	results := make([]benchResult, 0, len(benchScenarios))
	for _, name := range benchScenarios {
		result := benchResult{
			Name:   name,
			Timer:  gometrics.GetOrRegisterTimer(name, registry),
			Errors: gometrics.GetOrRegisterCounter(name+".errors", registry),
		}
		if shouldSkip(config.Skip, name) {
			result.Skipped = true
			results = append(results, result)
			continue
		}

		// the read scenario needs existing keys
		if name == "read" {
			for _, k := range keys {
				if err := s.WriteSync(ctx, k, value); err != nil {
					return nil, fmt.Errorf("failed to prepare keys: %w", err)
				}
			}
		}

		result.Elapsed = runScenario(ctx, config, scenarios[name], result.Timer, result.Errors)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, nil
}

// runScenario distributes config.Ops calls of op over config.Threads goroutines
func runScenario(ctx context.Context, config benchConfig, op func(context.Context, int) error, timer gometrics.Timer, errs gometrics.Counter) time.Duration {
	var (
		next    atomic.Int64
		wg      sync.WaitGroup
		logOnce sync.Once
	)

	start := time.Now()
	for t := 0; t < config.Threads; t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1) - 1)
				if i >= config.Ops || ctx.Err() != nil {
					return
				}
				opStart := time.Now()
				if err := op(ctx, i); err != nil {
					errs.Inc(1)
					logOnce.Do(func() { fmt.Printf("error during benchmark: %v\n", err) })
					continue
				}
				timer.UpdateSince(opStart)
			}
		}()
	}
	wg.Wait()

	return time.Since(start)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(skip []string, scenario string) bool {
	for _, s := range skip {
		if strings.TrimSpace(s) == scenario {
			return true
		}
	}
	return false
}

// printResult prints the result of a scenario in a formatted way
func printResult(r benchResult) {
	if r.Skipped {
		fmt.Printf("%-12sskipped\n", r.Name)
		return
	}

	t := r.Timer.Snapshot()
	ps := t.Percentiles([]float64{0.5, 0.95, 0.99})
	fmt.Printf("%-12s%8.0f ops/sec  p50=%-10s p95=%-10s p99=%-10s max=%-10s errors=%d\n",
		r.Name,
		r.OpsPerSec(),
		time.Duration(ps[0]),
		time.Duration(ps[1]),
		time.Duration(ps[2]),
		time.Duration(t.Max()),
		r.Errors.Count(),
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []benchResult, config benchConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{
		"Scenario", "Skipped", "Ops", "Errors", "OpsPerSec",
		"MeanNs", "P50Ns", "P95Ns", "P99Ns", "MaxNs",
		"Endpoints", "TimeoutSec", "RetryCount", "ShardID", "Serializer",
		"Threads", "ValueSize", "Keys", "RunID",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	client := util.GetClientConfig()
	for _, r := range results {
		t := r.Timer.Snapshot()
		ps := t.Percentiles([]float64{0.5, 0.95, 0.99})

		row := []string{
			r.Name,
			strconv.FormatBool(r.Skipped),
			strconv.FormatInt(t.Count(), 10),
			strconv.FormatInt(r.Errors.Count(), 10),
			fmt.Sprintf("%.0f", r.OpsPerSec()),
			fmt.Sprintf("%.0f", t.Mean()),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			strconv.FormatInt(t.Max(), 10),
			strings.Join(client.Endpoints, ";"),
			strconv.Itoa(client.TimeoutSecond),
			strconv.Itoa(client.RetryCount),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			strconv.Itoa(config.Threads),
			strconv.Itoa(config.ValueSize),
			strconv.Itoa(config.Keys),
			config.RunID,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for scenario %s: %w", r.Name, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
