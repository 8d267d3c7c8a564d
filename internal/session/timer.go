package session

import "time"

// TurnTimer drives the 70%-warning / 100%-timeout contract of §4.5. It
// wraps two time.Timer instances behind a single Stop so that an action
// arriving before expiry cancels both in one call, never partially.
type TurnTimer struct {
	warning *time.Timer
	timeout *time.Timer
}

// StartTurnTimer arms a timer for limit. When limit <= 1s the warning
// never fires (§4.5: "only when turnTimeLimit > 1s"). onWarning receives
// the remaining 30% of the limit; onTimeout fires exactly once at 100%.
func StartTurnTimer(limit time.Duration, onWarning func(remaining time.Duration), onTimeout func()) *TurnTimer {
	t := &TurnTimer{}
	if limit > time.Second {
		warnAt := limit * 7 / 10
		remaining := limit - warnAt
		t.warning = time.AfterFunc(warnAt, func() {
			if onWarning != nil {
				onWarning(remaining)
			}
		})
	}
	t.timeout = time.AfterFunc(limit, onTimeout)
	return t
}

// Stop cancels both the warning and timeout. Safe to call more than once.
func (t *TurnTimer) Stop() {
	if t == nil {
		return
	}
	if t.warning != nil {
		t.warning.Stop()
	}
	if t.timeout != nil {
		t.timeout.Stop()
	}
}
