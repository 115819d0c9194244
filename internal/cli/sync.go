package cli

import (
	"errors"
	"log"
	"os"

	"github.com/spf13/cobra"

	"billsync/internal/config"
	"billsync/internal/events"
	"billsync/internal/store"
	"billsync/internal/stripe"
	"billsync/internal/syncer"
)

var syncFlags struct {
	ids        []string
	failed     bool
	typeFilter string
	accountIDs []string
	noConnect  bool
	verbosity  int
}

var syncCmd = &cobra.Command{
	Use:   "sync-events",
	Short: "Fetch and reconcile provider events",
	Long: "Fetches events from the provider's event log and reconciles them into " +
		"the local store. The provider only guarantees roughly the last 30 days " +
		"of events; older ones are simply absent.",
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		runner := &syncer.Runner{
			Source:    syncer.ClientSource{Client: stripe.NewClient(cfg.Stripe)},
			Accounts:  st,
			Processor: events.NewDispatcher(st),
			Out:       os.Stdout,
			Verbosity: syncFlags.verbosity,
		}
		_, err = runner.Run(c.Context(), syncer.Options{
			Selector:   buildSelector(),
			AccountIDs: syncFlags.accountIDs,
			NoConnect:  syncFlags.noConnect,
		})
		var cfgErr *syncer.ConfigurationError
		if errors.As(err, &cfgErr) {
			// usage-level failure: show it the way cobra shows flag errors
			return cfgErr
		}
		return err
	},
}

func init() {
	f := syncCmd.Flags()
	f.StringSliceVar(&syncFlags.ids, "ids", nil, "specific event IDs to sync")
	f.BoolVar(&syncFlags.failed, "failed", false, "sync only events with failed webhook deliveries")
	f.StringVar(&syncFlags.typeFilter, "type", "", "event type filter, trailing * wildcard allowed (e.g. invoice.*)")
	f.StringSliceVar(&syncFlags.accountIDs, "account-ids", nil, "connected account IDs to sync events from")
	f.BoolVar(&syncFlags.noConnect, "no-connect", false, "do not sync events from connected accounts")
	f.CountVarP(&syncFlags.verbosity, "verbose", "v", "increase output (repeat for per-event traces)")
	syncCmd.MarkFlagsMutuallyExclusive("ids", "failed", "type")
	syncCmd.MarkFlagsMutuallyExclusive("account-ids", "no-connect")
	rootCmd.AddCommand(syncCmd)
}

func buildSelector() syncer.Selector {
	switch {
	case len(syncFlags.ids) > 0:
		return syncer.ByIDs{IDs: syncFlags.ids}
	case syncFlags.failed:
		return syncer.FailedOnly{}
	case syncFlags.typeFilter != "":
		return syncer.TypeFilter{Pattern: syncFlags.typeFilter}
	default:
		return syncer.All{}
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Database == "" {
		return store.NewMemory(), nil
	}
	sp, err := store.NewPostgres(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := sp.MigrateDir("db/migrations"); err != nil {
		log.Printf("migrations skipped: %v", err)
	}
	return sp, nil
}
