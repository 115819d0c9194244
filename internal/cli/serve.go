package cli

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"billsync/internal/api"
	"billsync/internal/config"
	"billsync/internal/metrics"
	"billsync/internal/model"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the webhook server",
	Aliases: []string{"s"},
	Args:    cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		srv, err := api.NewServer(cfg)
		if err != nil {
			return err
		}
		metrics.RegisterDefault()

		mux := http.NewServeMux()

		// Webhooks
		mux.HandleFunc("/stripe/webhook", srv.WebhookHandler(model.EndpointAccount))
		mux.HandleFunc("/stripe/connect/webhook", srv.WebhookHandler(model.EndpointConnect))

		// Admin
		mux.HandleFunc("/v1/admin/triggers", srv.TriggersHandler)
		mux.HandleFunc("/v1/admin/triggers/", srv.TriggerByIDHandler)
		mux.HandleFunc("/v1/admin/events", srv.EventRecordsHandler)
		mux.HandleFunc("/v1/admin/objects", srv.ObjectsHandler)

		// Live feed
		mux.HandleFunc("/v1/events/tail", srv.TailHandler)

		// Health and observability
		mux.HandleFunc("/healthz", srv.HealthHandler)
		mux.HandleFunc("/readyz", srv.ReadyHandler)
		mux.HandleFunc("/debugz", srv.DebugJSON)
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

		hs := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           logMiddleware(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Printf("billsync listening on %s", cfg.Server.Addr)
		if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, time.Since(start))
	})
}
