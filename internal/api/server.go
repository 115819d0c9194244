// Package api implements HTTP handlers and helpers for the billsync service.
package api

import (
	"log"

	"billsync/internal/auth"
	"billsync/internal/config"
	"billsync/internal/events"
	"billsync/internal/store"
)

type Server struct {
	Cfg        *config.Config
	Store      store.Store
	Dispatcher *events.Dispatcher
	Auth       *auth.Verifier
	Broker     EventBroker
}

// NewServer creates a Server. If the config carries no database URL, an
// in-memory store is used; likewise the broker falls back from Redis to
// in-process channels.
func NewServer(cfg *config.Config) (*Server, error) {
	var s store.Store
	if cfg.Database == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := sp.MigrateDir("db/migrations"); err != nil {
			log.Printf("migrations skipped: %v", err)
		}
		s = sp
	}
	var broker EventBroker
	if cfg.Redis != "" {
		if rb, err := NewRedisBroker(cfg.Redis); err == nil {
			broker = rb
		} else {
			log.Printf("redis broker unavailable, using in-memory: %v", err)
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}
	return &Server{
		Cfg:        cfg,
		Store:      s,
		Dispatcher: events.NewDispatcher(s),
		Auth:       auth.NewVerifierFromEnv(),
		Broker:     broker,
	}, nil
}
