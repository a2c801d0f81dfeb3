package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Starter starts an episode immediately.
type Starter interface {
	StartNow() (time.Time, error)
}

// Autostart issues StartNow on a standard five-field cron schedule,
// e.g. "30 6 * * 1-5" for 06:30 on weekdays.
type Autostart struct {
	cron    *cron.Cron
	id      cron.EntryID
	spec    string
	starter Starter
	log     zerolog.Logger
}

// NewAutostart parses spec and binds it to starter. The schedule does not run
// until Start.
func NewAutostart(spec string, starter Starter, loc *time.Location, logger zerolog.Logger) (*Autostart, error) {
	if loc == nil {
		loc = time.Local
	}
	a := &Autostart{
		cron:    cron.New(cron.WithLocation(loc)),
		spec:    spec,
		starter: starter,
		log:     logger.With().Str("component", "autostart").Logger(),
	}
	id, err := a.cron.AddFunc(spec, a.fire)
	if err != nil {
		return nil, fmt.Errorf("parse autostart %q: %w", spec, err)
	}
	a.id = id
	return a, nil
}

// Start runs the cron scheduler in its own goroutine.
func (a *Autostart) Start() {
	a.cron.Start()
	a.log.Info().Str("spec", a.spec).Time("next", a.Next()).Msg("autostart enabled")
}

// Stop halts the scheduler and waits for a running fire to return.
func (a *Autostart) Stop() {
	<-a.cron.Stop().Done()
}

// Next returns the next fire time, or zero before Start.
func (a *Autostart) Next() time.Time {
	return a.cron.Entry(a.id).Next
}

func (a *Autostart) fire() {
	at, err := a.starter.StartNow()
	if err != nil {
		a.log.Error().Err(err).Msg("autostart rejected")
		return
	}
	a.log.Info().Time("scheduled_for", at).Msg("autostart fired")
}
