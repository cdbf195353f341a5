// Command stmdemo exercises the gostm core from the outside: running a
// contended counter transaction, switching the active algorithm, and
// printing the resolved configuration.
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/dborchard/gostm/pkg/stm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	algorithm  string
	workers    int
	iterations int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stmdemo",
		Short: "Exercise the gostm concurrency-control core",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&algorithm, "algorithm", "", "algorithm to run under (overrides config default)")

	runCmd := newRunCommand()
	runCmd.Flags().IntVar(&workers, "workers", 8, "number of concurrent goroutines contending on one counter")
	runCmd.Flags().IntVar(&iterations, "iterations", 1000, "increments per worker")

	rootCmd.AddCommand(runCmd, newSwitchCommand(), newStatsCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (stm.Config, error) {
	if configPath == "" {
		cfg := stm.DefaultConfig()
		if algorithm != "" {
			cfg.DefaultAlgorithm = algorithm
		}
		return cfg, nil
	}
	cfg, err := stm.LoadConfig(configPath)
	if err != nil {
		return stm.Config{}, err
	}
	if algorithm != "" {
		cfg.DefaultAlgorithm = algorithm
	}
	return cfg, nil
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a contended counter transaction and report the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rt, err := stm.NewRuntime(cfg, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer rt.Logger().Sync() //nolint:errcheck

			var counter uint64
			var wg sync.WaitGroup
			wg.Add(workers)
			for i := 0; i < workers; i++ {
				go func() {
					defer wg.Done()
					tx := rt.AttachThread()
					defer rt.DetachThread(tx)
					for j := 0; j < iterations; j++ {
						stm.Atomic(tx, func(tx *stm.Tx) {
							cur := tx.Read(&counter, ^uint64(0))
							tx.Write(&counter, cur+1, ^uint64(0))
						})
					}
				}()
			}
			wg.Wait()

			fmt.Printf("algorithm=%s workers=%d iterations=%d counter=%d (want %d)\n",
				rt.ActiveAlgorithm(), workers, iterations, counter, uint64(workers*iterations))
			return nil
		},
	}
}

func newSwitchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <algorithm>",
		Short: "Start a runtime, run one transaction, then switch to another algorithm and run one more",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rt, err := stm.NewRuntime(cfg, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer rt.Logger().Sync() //nolint:errcheck

			var v uint64
			tx := rt.AttachThread()
			fmt.Printf("before switch: active=%s\n", rt.ActiveAlgorithm())
			stm.Atomic(tx, func(tx *stm.Tx) { tx.Write(&v, 1, ^uint64(0)) })
			rt.DetachThread(tx)

			if err := rt.SwitchAlgorithm(args[0]); err != nil {
				return err
			}

			tx = rt.AttachThread()
			defer rt.DetachThread(tx)
			fmt.Printf("after switch: active=%s\n", rt.ActiveAlgorithm())
			stm.Atomic(tx, func(tx *stm.Tx) { tx.Write(&v, v+1, ^uint64(0)) })
			fmt.Printf("v=%d\n", v)
			return nil
		},
	}
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the default configuration and registered algorithm names",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("orec-table-size=%d\n", cfg.OrecTableSize)
			fmt.Printf("default-algorithm=%s\n", cfg.DefaultAlgorithm)
			fmt.Printf("max-read-set-len=%d max-write-set-len=%d\n", cfg.MaxReadSetLen, cfg.MaxWriteSetLen)
			fmt.Println("registered: CohortsEager, PipelineTurbo, LLTAMD64, OrecEagerRedo")
			return nil
		},
	}
}
