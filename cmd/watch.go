package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dedeception/Nations-Wars-Launcher/internal/auth"
	"github.com/dedeception/Nations-Wars-Launcher/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type watchRefresher interface {
	Start()
	Stop()
}

var watchInterval time.Duration

var (
	newWatchRefresher = func(cfg *config.Config) (watchRefresher, error) {
		store, err := openStore(cfg)
		if err != nil {
			return nil, err
		}
		manager, err := newAuthManager(cfg, store)
		if err != nil {
			return nil, err
		}
		return auth.NewRefresher(manager, cfg.ValidateInterval), nil
	}
	signalNotifyContext = signal.NotifyContext
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Periodically re-validate the selected account",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "validation interval (default: from NWL_VALIDATE_INTERVAL)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if watchInterval > 0 {
		cfg.ValidateInterval = watchInterval
	}

	refresher, err := newWatchRefresher(cfg)
	if err != nil {
		return fmt.Errorf("start watch: %w", err)
	}

	ctx, stop := signalNotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	refresher.Start()
	log.Info().
		Dur("interval", cfg.ValidateInterval).
		Msg("account watch started")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")
	refresher.Stop()
	return nil
}
