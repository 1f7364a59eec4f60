package util

import (
	"sync"

	"tlog.app/go/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Perror collects errors reported by parallel worker go routines. Errors are received on a channel by a listener
// go routine, so workers never block on each other.
type Perror struct {
	listen     chan error    // Channel for receiving errors from worker go routines.
	stop       chan struct{} // Closed to stop the listener.
	done       chan struct{} // Closed by the listener when it has stopped.
	errors     []error       // Buffer of received errors.
	sync.Mutex               // For synchronising writes and reads of errors.
}

// ----------------------
// ----- Constants ------
// ----------------------

// defaultBufferSize defines the fallback buffer size of the error array.
const defaultBufferSize = 16

// ---------------------
// ----- functions -----
// ---------------------

// NewPerror returns a running error listener with n pre-allocated slots for errors in the buffer.
func NewPerror(n int) *Perror {
	if n < 1 {
		n = defaultBufferSize
	}
	pe := &Perror{
		listen: make(chan error),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		errors: make([]error, 0, n),
	}
	go pe.run()
	return pe
}

// run receives errors on the listen channel until Stop is called.
func (pe *Perror) run() {
	defer close(pe.done)
	for {
		select {
		case err := <-pe.listen:
			pe.Lock()
			pe.errors = append(pe.errors, err)
			pe.Unlock()
		case <-pe.stop:
			return
		}
	}
}

// Append sends err to the error listener. <nil> errors are ignored. Append must not be called after Stop.
func (pe *Perror) Append(err error) {
	if err != nil {
		pe.listen <- err
	}
}

// Stop stops the error listener and waits for it to exit. Errors appended before Stop are kept.
func (pe *Perror) Stop() {
	close(pe.stop)
	<-pe.done
}

// Len returns the number of buffered errors.
func (pe *Perror) Len() int {
	pe.Lock()
	defer pe.Unlock()
	return len(pe.errors)
}

// Errors returns a copy of the buffered errors in order of arrival.
func (pe *Perror) Errors() []error {
	pe.Lock()
	defer pe.Unlock()
	res := make([]error, len(pe.errors))
	copy(res, pe.errors)
	return res
}

// Err returns <nil> if no errors were reported, the only error if one was reported, or a summary wrapping the first
// error otherwise.
func (pe *Perror) Err() error {
	pe.Lock()
	defer pe.Unlock()
	switch len(pe.errors) {
	case 0:
		return nil
	case 1:
		return pe.errors[0]
	}
	return errors.Wrap(pe.errors[0], "%d errors, first", len(pe.errors))
}
