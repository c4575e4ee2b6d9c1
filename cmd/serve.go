package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/classify"
	"github.com/KaramelBytes/chainpulse/internal/ingest"
	"github.com/KaramelBytes/chainpulse/internal/server"
	"github.com/KaramelBytes/chainpulse/internal/session"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sessions, dashboards and live recomputation over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" && cfg != nil {
			addr = cfg.ServerAddr
		}
		if addr == "" {
			addr = ":8080"
		}
		ttl := 30 * time.Minute
		var opt ingest.Options
		if cfg != nil {
			if cfg.SessionTTLMin > 0 {
				ttl = time.Duration(cfg.SessionTTLMin) * time.Minute
			}
			opt.MaxRows = cfg.MaxRows
		}

		a := &server.App{}
		a.Initialize(session.NewManager(ttl, sessionOptions(classify.Assignment{}, true)), newDuneClient(), opt)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return a.Run(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
}
