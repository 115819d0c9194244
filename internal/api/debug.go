package api

import (
	"encoding/json"
	"net/http"
	"time"

	"billsync/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"addr":             s.Cfg.Server.Addr,
			"apiBase":          s.Cfg.Stripe.APIBase,
			"toleranceSeconds": s.Cfg.Stripe.ToleranceSeconds,
			"hasDatabaseUrl":   s.Cfg.Database != "",
			"hasRedisUrl":      s.Cfg.Redis != "",
			"hasWebhookSecret": s.Cfg.Stripe.WebhookSecret != "",
			"hasConnectSecret": s.Cfg.Stripe.ConnectWebhookSecret != "",
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
