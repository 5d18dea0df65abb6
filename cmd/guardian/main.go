package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/replicated-store/guardian/applier"
	"github.com/replicated-store/guardian/config"
	"github.com/replicated-store/guardian/driver"
	"github.com/replicated-store/guardian/guardian"
	"github.com/replicated-store/guardian/leadership"
	"github.com/replicated-store/guardian/liveness"
	"github.com/replicated-store/guardian/logging"
	"github.com/replicated-store/guardian/transport"
	"github.com/replicated-store/guardian/view"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "guardian",
	Version: "development",
	Short:   "the partition guardian decision service",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the guardian's tick loop and transport servers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		return runMain(cmd.Context())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "load and validate the guardian config file, then exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return err
		}
		fmt.Printf("config OK: maxReplicaCount=%d shardCount=%d tickInterval=%s\n",
			cfg.MaxReplicaCount, cfg.ShardCount, cfg.TickInterval)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print a table of node load from a running guardian's admin API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		return statusMain(adminAddress)
	},
}

var adminAddress string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "guardian.yaml", "path to the guardian config file")
	statusCmd.Flags().StringVar(&adminAddress, "admin-address", "http://localhost:9701", "base URL of a running guardian's admin API")
	rootCmd.AddCommand(runCmd, validateCmd, statusCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runMain(ctx context.Context) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		logging.Log.Warningf("guardian: falling back to defaults: %v", err)
		cfg = config.Default()
	}
	logging.SetLevel(cfg.LogLevel)

	v := view.New()

	staleAfter, err := time.ParseDuration(cfg.HeartbeatStale)
	if err != nil || staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	tracker := liveness.NewHeartbeatTracker(staleAfter)
	app := applier.NewInMemory()

	val := &guardian.Validator{Collector: tracker}
	cure := &guardian.CureEngine{Config: cfg, Collector: tracker}

	drv := driver.New(v, val, cure, app, tracker, cfg)
	app.OnApply = drv.ApplyReconfigure

	watch := transport.NewWatchFeed()
	hub := transport.NewRaftHub()
	srv := transport.NewServer(v, hub, watch, tracker)

	if len(cfg.MetaReplicas) > 0 {
		peers := make(map[uint64]leadership.PeerAddress, len(cfg.MetaReplicas))
		for i, addr := range cfg.MetaReplicas {
			id := uint64(i + 1)
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return fmt.Errorf("metaReplicas[%d] %q: %w", i, addr, err)
			}
			portNum, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("metaReplicas[%d] %q: invalid port: %w", i, addr, err)
			}

			peer := leadership.PeerAddress{NodeID: id, Host: host, Port: portNum}
			peers[id] = peer
			if id != cfg.LocalReplicaID {
				hub.AddPeer(peer)
			}
		}

		elector := leadership.NewElector(cfg.LocalReplicaID, peers, hub)
		elector.OnLeadershipChange(func(isLeader bool) {
			if isLeader {
				logging.Log.Infof("guardian: replica %d became leader, starting tick loop", cfg.LocalReplicaID)
				go drv.Start(ctx)
			} else {
				logging.Log.Infof("guardian: replica %d lost leadership, stopping tick loop", cfg.LocalReplicaID)
				drv.Stop()
			}
		})

		go elector.Run(ctx, 100*time.Millisecond)
	} else {
		// No peer set configured: this is the sole replica, so it is
		// always the leader.
		go drv.Start(ctx)
	}

	go func() {
		logging.Log.Infof("guardian: proposal/raft transport listening on %s", cfg.ListenAddress)
		if err := http.ListenAndServe(cfg.ListenAddress, srv.Handler()); err != nil {
			logging.Log.Errorf("guardian: transport server exited: %v", err)
		}
	}()

	go func() {
		logging.Log.Infof("guardian: admin API listening on %s", cfg.AdminAddress)
		if err := http.ListenAndServe(cfg.AdminAddress, transport.NewAdminRouter(v)); err != nil {
			logging.Log.Errorf("guardian: admin server exited: %v", err)
		}
	}()

	<-ctx.Done()
	drv.Stop()
	return nil
}

type nodeStatus struct {
	Node           string `json:"node"`
	Alive          bool   `json:"alive"`
	PrimaryCount   int    `json:"primary_count"`
	PartitionCount int    `json:"partition_count"`
}

func statusMain(baseURL string) error {
	resp, err := http.Get(baseURL + "/nodes")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var nodes []nodeStatus
	if err := json.NewDecoder(resp.Body).Decode(&nodes); err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Node", "Alive", "Primaries", "Partitions"})
	for _, n := range nodes {
		table.Append([]string{n.Node, fmt.Sprintf("%v", n.Alive), fmt.Sprintf("%d", n.PrimaryCount), fmt.Sprintf("%d", n.PartitionCount)})
	}
	table.Render()

	return nil
}
