package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clusterlib/clusterlib/pkg/clusterlib"
	"github.com/clusterlib/clusterlib/pkg/log"
	"github.com/clusterlib/clusterlib/pkg/metrics"
	"github.com/clusterlib/clusterlib/pkg/repository/raftrepo"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "clusterlib-cli",
	Short:   "Bootstrap a clusterlib node and materialize an application tree",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("clusterlib-cli version %s\nCommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to clusterlib-cli YAML config (defaults used if omitted)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(treeCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Bootstrap a single-node reference Repository and serve the configured tree",
	Long: `Boots a single-node raft+bbolt reference Repository, materializes the
applications/groups/nodes named in the config, starts a health-checking
Server for every Node, exposes Prometheus metrics, and blocks until
interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		repo, err := raftrepo.New(raftrepo.Config{
			NodeID:   cfg.NodeID,
			BindAddr: cfg.BindAddr,
			DataDir:  cfg.DataDir,
		})
		if err != nil {
			return fmt.Errorf("bootstrap repository: %w", err)
		}

		waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repo.WaitForLeader(waitCtx); err != nil {
			return fmt.Errorf("waiting for raft leader: %w", err)
		}
		fmt.Printf("clusterlib repository ready (node %s, raft %s)\n", cfg.NodeID, cfg.BindAddr)

		factory := clusterlib.NewFactoryOps(repo, log.WithComponent("factory"))

		servers, err := materialize(factory, cfg)
		if err != nil {
			return fmt.Errorf("materialize tree: %w", err)
		}
		fmt.Printf("✓ materialized %d application(s)\n", len(cfg.Applications))

		printTree(factory)

		metricsAddr := "127.0.0.1:9091"
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
			}
		}()
		fmt.Printf("✓ metrics endpoint: http://%s/metrics\n", metricsAddr)
		fmt.Println("clusterlib-cli running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		for _, s := range servers {
			s.Stop()
		}
		factory.Shutdown()
		factory.Wait()
		if err := repo.Close(); err != nil {
			return fmt.Errorf("close repository: %w", err)
		}
		fmt.Println("✓ shutdown complete")
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Bootstrap an ephemeral in-memory node, materialize the config, print the tree, and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		repo, err := raftrepo.NewSingleNodeForTest(cfg.NodeID, cfg.DataDir)
		if err != nil {
			return fmt.Errorf("bootstrap in-memory repository: %w", err)
		}
		defer repo.Close()

		waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.WaitForLeader(waitCtx); err != nil {
			return fmt.Errorf("waiting for raft leader: %w", err)
		}

		factory := clusterlib.NewFactoryOps(repo, log.WithComponent("factory"))
		defer func() {
			factory.Shutdown()
			factory.Wait()
		}()

		if _, err := materialize(factory, cfg); err != nil {
			return fmt.Errorf("materialize tree: %w", err)
		}
		printTree(factory)
		return nil
	},
}
