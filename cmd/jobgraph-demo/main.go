// Command jobgraph-demo drives the scheduler through the classic demo
// scenarios: a flat parallel-for batch, a two-group dependency graph, and
// a pause/resume cycle. Optionally serves Prometheus metrics while running.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	jobgraph "github.com/tidegate/jobgraph"
	jgprom "github.com/tidegate/jobgraph/observability/prometheus"
)

var (
	flagWorkers     int
	flagScratch     int
	flagIterations  int
	flagMetricsAddr string
	flagVerbose     bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "jobgraph-demo",
		Short:        "jobgraph-demo builds and drains DAG job graphs",
		Long:         "jobgraph-demo builds and drains job graphs to exercise the scheduler under different shapes.",
		SilenceUsage: true,
	}

	root.PersistentFlags().IntVar(&flagWorkers, "workers", jobgraph.MaxThreads()-1, "Worker count (default: hardware threads minus one)")
	root.PersistentFlags().IntVar(&flagScratch, "scratch", 4096*1024, "Scratch arena budget in bytes")
	root.PersistentFlags().IntVar(&flagIterations, "iterations", 3, "Number of graph build/kick/wait cycles")
	root.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Log scheduler lifecycle events")

	root.AddCommand(
		newParallelForCmd(),
		newDependenciesCmd(),
		newPauseResumeCmd(),
	)

	return root
}

// newScheduler builds a scheduler per the shared flags and wires metrics
// when --metrics-addr is set.
func newScheduler() (*jobgraph.Scheduler, func(), error) {
	desc := jobgraph.SchedulerDesc{
		NumWorkers:   flagWorkers,
		ScratchBytes: flagScratch,
	}
	if flagVerbose {
		desc.Logger = jobgraph.NewDefaultLogger()
	}

	cleanup := func() {}
	if flagMetricsAddr != "" {
		reg := prometheus.NewRegistry()
		exporter, err := jgprom.NewMetricsExporter("jobgraph", reg, jgprom.ExporterOptions{})
		if err != nil {
			return nil, nil, err
		}
		desc.Metrics = exporter

		poller, err := jgprom.NewStatsPoller(reg, time.Second)
		if err != nil {
			return nil, nil, err
		}

		sch := jobgraph.New(desc)
		poller.AddScheduler(sch.ID(), sch)
		poller.Start(context.Background())

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: flagMetricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintln(os.Stderr, "metrics server:", err)
			}
		}()
		fmt.Printf("serving metrics on %s/metrics\n", flagMetricsAddr)

		cleanup = func() {
			poller.Stop()
			server.Close()
		}
		return sch, cleanup, nil
	}

	return jobgraph.New(desc), cleanup, nil
}

// work burns CPU on a small integer hash so the demo has something to
// parallelize.
func work(index uint32) uint64 {
	var result uint64
	for x := uint32(0); x < 5000; x++ {
		for y := uint32(0); y < 500; y++ {
			result += uint64((y ^ (x + 10)) * (y - 1))
			result = result << (index % 16)
			result = result >> (index / 2 % 8)
		}
		result |= uint64(x)
	}
	return result
}

func newParallelForCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "parallel-for",
		Short: "Run N independent compute jobs and wait on a barrier group",
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, cleanup, err := newScheduler()
			if err != nil {
				return err
			}
			defer cleanup()
			defer sch.Stop()

			for iter := 0; iter < flagIterations; iter++ {
				items := make([]uint32, count)
				for i := range items {
					items[i] = uint32(i)
				}

				begin := time.Now()
				if err := jobgraph.ParallelFor(sch, items, func(item *uint32) {
					*item = uint32(work(*item))
				}); err != nil {
					return err
				}
				fmt.Printf("iteration %d: %d jobs in %v\n", iter, count, time.Since(begin))

				if err := sch.Reset(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 100, "Number of parallel jobs")
	return cmd
}

func newDependenciesCmd() *cobra.Command {
	var children int
	cmd := &cobra.Command{
		Use:   "dependencies",
		Short: "Build the two-group fan-in graph and wait on the parent job",
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, cleanup, err := newScheduler()
			if err != nil {
				return err
			}
			defer cleanup()
			defer sch.Stop()

			for iter := 0; iter < flagIterations; iter++ {
				begin := time.Now()

				var counter jobgraph.Counter
				parent, err := buildFanInGraph(sch, &counter, children)
				if err != nil {
					return err
				}

				if err := sch.Kick(); err != nil {
					return err
				}
				// Waiting on the parent is equivalent to waiting on the
				// counter: the parent depends on everything else.
				sch.WaitJob(parent)

				fmt.Printf("iteration %d: %d jobs in %v (counter=%d)\n",
					iter, children+5, time.Since(begin), counter.Value())
				printRecent(sch, 5)

				if err := sch.Reset(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&children, "children", 30, "Total child jobs split across the two groups")
	return cmd
}

func newPauseResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pause-resume",
		Short: "Kick a graph, pause dispatch mid-flight, then resume and drain",
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, cleanup, err := newScheduler()
			if err != nil {
				return err
			}
			defer cleanup()
			defer sch.Stop()

			var counter jobgraph.Counter
			parent, err := buildFanInGraph(sch, &counter, 30)
			if err != nil {
				return err
			}

			if err := sch.Kick(); err != nil {
				return err
			}

			sch.SetPaused(true)
			fmt.Printf("paused with %d jobs in flight\n", sch.Stats().Inflight)
			sch.Sleep(time.Second)

			sch.SetPaused(false)
			sch.WaitJob(parent)
			fmt.Println("resumed and drained")
			return sch.Reset()
		},
	}
	return cmd
}

// buildFanInGraph wires parent <- group{0,1} <- group job <- children, the
// same shape as the dependency demo that ships with the scheduler.
func buildFanInGraph(sch *jobgraph.Scheduler, counter *jobgraph.Counter, children int) (*jobgraph.Job, error) {
	parent, err := sch.CreateJob(func(any) {
		fmt.Println("parent, runs after both groups have finished")
	}, nil, counter)
	if err != nil {
		return nil, err
	}
	parent.SetName("parent")

	indices := make([]uint32, children)

	for g := 0; g < 2; g++ {
		group, err := sch.CreateGroup(parent)
		if err != nil {
			return nil, err
		}

		g := g
		groupJob, err := sch.CreateJob(func(any) {
			fmt.Printf("group %d job, runs after its children\n", g)
		}, nil, counter)
		if err != nil {
			return nil, err
		}
		groupJob.SetName(fmt.Sprintf("group%d-job", g))
		if err := sch.Depend(group, groupJob); err != nil {
			return nil, err
		}

		lo, hi := g*children/2, (g+1)*children/2
		for i := lo; i < hi; i++ {
			indices[i] = uint32(i)
			child, err := sch.CreateJob(func(data any) {
				idx := *data.(*uint32)
				work(idx)
			}, &indices[i], counter)
			if err != nil {
				return nil, err
			}
			child.SetName(fmt.Sprintf("child-%d", i))
			if err := sch.Depend(groupJob, child); err != nil {
				return nil, err
			}
		}
	}
	return parent, nil
}

func printRecent(sch *jobgraph.Scheduler, limit int) {
	for _, rec := range sch.RecentJobs(limit) {
		fmt.Printf("  %-12s worker=%d duration=%v\n", rec.Name, rec.WorkerID, rec.Duration)
	}
}
