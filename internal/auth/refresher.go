package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultCheckInterval = 30 * time.Minute

type selectedValidator interface {
	ValidateSelected(ctx context.Context) (bool, error)
}

// Refresher re-validates the selected account in the background.
type Refresher struct {
	validator     selectedValidator
	checkInterval time.Duration
	stopChan      chan struct{}
	doneChan      chan struct{}

	mu      sync.Mutex
	running bool
	valid   bool
	lastErr error
}

func NewRefresher(manager *Manager, checkInterval time.Duration) *Refresher {
	if checkInterval <= 0 {
		checkInterval = defaultCheckInterval
	}
	return &Refresher{
		validator:     manager,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

func (r *Refresher) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		log.Debug().Msg("auth refresher: start ignored because it is already running")
		return
	}
	r.running = true
	stopChan := make(chan struct{})
	doneChan := make(chan struct{})
	r.stopChan = stopChan
	r.doneChan = doneChan
	r.mu.Unlock()

	log.Info().
		Dur("check_interval", r.checkInterval).
		Msg("auth refresher: started")
	go r.loop(stopChan, doneChan)
}

func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		log.Debug().Msg("auth refresher: stop ignored because it is not running")
		return
	}
	r.running = false
	stopChan := r.stopChan
	doneChan := r.doneChan
	r.mu.Unlock()

	close(stopChan)
	<-doneChan
	log.Info().Msg("auth refresher: stopped")
}

// Status returns the result of the most recent validation.
func (r *Refresher) Status() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.valid, r.lastErr
}

// loop owns the channels it was started with; a later Start replaces the
// struct fields without affecting this run.
func (r *Refresher) loop(stopChan <-chan struct{}, doneChan chan struct{}) {
	defer close(doneChan)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	r.validateOnce(ctx)

	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.validateOnce(ctx)
		case <-stopChan:
			return
		}
	}
}

func (r *Refresher) validateOnce(ctx context.Context) {
	valid, err := r.validator.ValidateSelected(ctx)

	r.mu.Lock()
	r.valid = valid
	r.lastErr = err
	r.mu.Unlock()

	switch {
	case errors.Is(err, ErrNoSelectedAccount):
		log.Debug().Msg("auth refresher: no selected account")
	case err != nil:
		log.Warn().Err(err).Msg("auth refresher: validation attempt failed")
	case !valid:
		log.Warn().Msg("auth refresher: selected account needs a new login")
	default:
		log.Debug().Msg("auth refresher: cycle completed")
	}
}
