package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/knodir/SOL/etcd"
	"github.com/knodir/SOL/opt"
	"github.com/knodir/SOL/opt/gurobi"
)

const defaultModelFile = "sol_model.lp"

var (
	configFile string
	modelFile  string
	cfg        *SolConfig
)

// log init
func init() {
	logDir := "./logs"
	os.MkdirAll(logDir, 0755)

	fileLogger := &lumberjack.Logger{
		Filename:   logDir + "/sol.log",
		MaxSize:    100,  // MB
		MaxBackups: 7,    // Keep 7 old log files
		MaxAge:     30,   // Days
		Compress:   true, // Compress old log files
	}

	multiWriter := io.MultiWriter(os.Stdout, fileLogger)
	log.SetOutput(multiWriter)

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	log.SetLevel(log.InfoLevel)
}

var rootCmd = &cobra.Command{
	Use:   "sol",
	Short: "Build and solve path-based traffic engineering models",
	Long: `sol builds a linear optimization over candidate paths of a network
topology. Traffic classes consume node and link resources along their
paths; the model is handed to a solver backend and the resulting path
fractions are reported and optionally published to etcd.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(configFile)
		if err != nil {
			return err
		}
		level, _ := log.ParseLevel(cfg.Log.Level)
		log.SetLevel(level)
		gurobi.SetDefaultConfig(cfg.gurobiConfig())
		return nil
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the model and write it in the backend's input format",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildServiceChaining(cfg)
		if err != nil {
			return err
		}
		out := modelFile
		if out == "" {
			out = cfg.Output.Model
		}
		if out == "" {
			out = defaultModelFile
		}
		return p.writeModel(out)
	},
}

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Build and solve the model, then report and publish the routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		p, err := buildServiceChaining(cfg)
		if err != nil {
			return err
		}
		if out := firstNonEmpty(modelFile, cfg.Output.Model); out != "" {
			if err := p.writeModel(out); err != nil {
				return err
			}
		}
		rep, err := p.solve(ctx, cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "status %s, objective %g, %d traffic classes\n", rep.Status, rep.Objective, len(rep.Classes))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the routes published to etcd",
	RunE: func(cmd *cobra.Command, args []string) error {
		etcdCfg, ok := cfg.etcdConfig()
		if !ok {
			return errors.New("[sol] - no etcd endpoints configured")
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		watcher, err := etcd.NewRouteWatcher(etcdCfg)
		if err != nil {
			return err
		}
		defer watcher.Close()

		out := cmd.OutOrStdout()
		return watcher.Watch(ctx, func(u etcd.RouteUpdate, deleted bool) error {
			if deleted {
				fmt.Fprintf(out, "tc %d (%d->%d) removed\n", u.TrafficClass, u.Src, u.Dst)
				return nil
			}
			for _, rec := range u.Paths {
				fmt.Fprintf(out, "tc %d (%d->%d) path %d %v: %g flows\n", u.TrafficClass, u.Src, u.Dst, rec.ID, rec.Nodes, rec.NumFlows)
			}
			return nil
		})
	},
}

var clearRoutes bool

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the routes stored in etcd, or remove them with --clear",
	RunE: func(cmd *cobra.Command, args []string) error {
		etcdCfg, ok := cfg.etcdConfig()
		if !ok {
			return errors.New("[sol] - no etcd endpoints configured")
		}
		publisher, err := etcd.NewRoutePublisher(etcdCfg)
		if err != nil {
			return err
		}
		defer publisher.Close()

		out := cmd.OutOrStdout()
		if clearRoutes {
			deleted, err := publisher.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "removed %d route keys\n", deleted)
			return nil
		}
		updates, err := publisher.Fetch(cmd.Context())
		if err != nil {
			return err
		}
		for _, u := range updates {
			for _, rec := range u.Paths {
				fmt.Fprintf(out, "tc %d (%d->%d) path %d %v: %g flows\n", u.TrafficClass, u.Src, u.Dst, rec.ID, rec.Nodes, rec.NumFlows)
			}
		}
		return nil
	},
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List the available solver backends",
	// no config needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range opt.Backends() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "sol_config.toml", "configuration file")
	buildCmd.Flags().StringVarP(&modelFile, "out", "o", "", "model output file")
	solveCmd.Flags().StringVarP(&modelFile, "model", "m", "", "also write the model to this file")
	routesCmd.Flags().BoolVar(&clearRoutes, "clear", false, "remove every stored route")
	rootCmd.AddCommand(buildCmd, solveCmd, watchCmd, routesCmd, backendsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Errorf("sol failed: %v", err)
		os.Exit(1)
	}
}
