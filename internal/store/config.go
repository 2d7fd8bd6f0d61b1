package store

import "fmt"

const defaultBusyTimeout = 5000

// Options tunes the SQLite connection.
type Options struct {
	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int
}

func (o *Options) defaults() {
	if o.BusyTimeout == 0 {
		o.BusyTimeout = defaultBusyTimeout
	}
}

func (o *Options) validate() error {
	if o.BusyTimeout < 0 {
		return fmt.Errorf("store: busy_timeout must be non-negative, got %d", o.BusyTimeout)
	}
	return nil
}
