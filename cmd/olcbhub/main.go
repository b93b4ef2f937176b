// olcbhub is a GridConnect CAN hub: it listens on a TCP port, decodes CAN
// frames arriving on each connection and forwards every frame to all other
// connected peers. An embedded protocol interface rides the hub as one
// more port so the node's own traffic shares the same fan-out path.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openlcb-go/openlcb/hub"
	"github.com/openlcb-go/openlcb/olcb"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:           "olcbhub",
		Short:         "GridConnect CAN hub for OpenLCB networks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the hub version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "olcbhub version %s\n", version)
		},
	}
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	return cmd
}

func serve(cfg serveConfig) error {
	log := initLogger(cfg.LogLevel)

	h, err := hub.New(cfg.Hub, log.With().Str("component", "hub").Logger())
	if err != nil {
		return err
	}

	// The hub node's own interface rides the hub as a local port.
	local := hub.NewLocalPort(h, "local")
	iface, err := olcb.New(local, cfg.Iface, log.With().Str("component", "iface").Logger())
	if err != nil {
		local.Close()
		return err
	}
	defer iface.Close()
	defer local.Close()
	go func() {
		for {
			select {
			case f := <-local.Recv():
				iface.DeliverFrame(f)
			case <-local.Closed():
				return
			}
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}
	log.Info().Str("listen", cfg.Listen).Str("version", version).Msg("hub up")

	if cfg.NodeAlias != 0 {
		// Announce ourselves so monitoring peers see the hub node.
		iface.SendGlobal(olcb.MTIInitializationComplete, cfg.NodeAlias, nil, nil)
	}

	return h.Serve(ctx, l)
}

func initLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).With().Timestamp().Str("app", "olcbhub").Logger().Level(lvl)
}
