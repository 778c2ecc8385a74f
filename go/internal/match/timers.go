package match

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// scheduleExpiry arms a one-shot timer for the phase just entered. Timers are
// never cancelled when the phase moves on; instead the callback re-checks that
// the room is still live and still in the exact phase instance it was armed for.
// Callers must hold mu.
func (r *Room) scheduleExpiry(d time.Duration, kind PhaseKind, expire func()) {
	seq := r.phaseSeq
	timer := r.eng.clock.NewTimer(d + r.eng.rules.TimerSlack)

	go func(t clockwork.Timer) {
		select {
		case <-t.Chan():
			r.mu.Lock()
			defer r.mu.Unlock()

			if r.ctx.Err() != nil || r.phaseSeq != seq || r.phase.Kind != kind {
				log.Debug().
					Str("room_code", r.code).
					Str("expected_phase", string(kind)).
					Str("phase", string(r.phase.Kind)).
					Msg("stale timer ignored")
				return
			}
			r.touch()
			expire()
		case <-r.ctx.Done():
			stopAndDrainTimer(t)
		}
	}(timer)

	log.Debug().
		Str("room_code", r.code).
		Str("phase", string(kind)).
		Dur("duration", d).
		Msg("phase timer armed")
}

func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
