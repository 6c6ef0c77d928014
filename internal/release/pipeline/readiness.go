package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/temirov/nagbuild/internal/execshell"
)

const (
	readinessPollIntervalConstant         = 100 * time.Millisecond
	readinessDialTimeoutConstant          = time.Second
	readinessNetworkConstant              = "tcp"
	serviceExitedMessageConstant          = "service exited before becoming ready"
	readinessTimeoutErrorTemplateConstant = "%s not reachable within %s: %w"
	readinessExitedErrorTemplateConstant  = "%s: %w"
	readinessContextErrorTemplateConstant = "waiting for %s: %w"
)

// ErrServiceExited indicates an auxiliary service stopped while its address was being awaited.
var ErrServiceExited = errors.New(serviceExitedMessageConstant)

type addressWaiter struct {
	dialer       *net.Dialer
	pollInterval time.Duration
}

func newAddressWaiter() addressWaiter {
	return addressWaiter{dialer: &net.Dialer{Timeout: readinessDialTimeoutConstant}, pollInterval: readinessPollIntervalConstant}
}

// wait polls address over TCP until it accepts a connection, process exits, or timeout elapses.
func (waiter addressWaiter) wait(executionContext context.Context, process *execshell.BackgroundProcess, address string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastDialError error
	for {
		connection, dialError := waiter.dialer.DialContext(executionContext, readinessNetworkConstant, address)
		if dialError == nil {
			return connection.Close()
		}
		lastDialError = dialError

		if process != nil && process.Exited() {
			return fmt.Errorf(readinessExitedErrorTemplateConstant, address, ErrServiceExited)
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf(readinessTimeoutErrorTemplateConstant, address, timeout, lastDialError)
		}

		timer := time.NewTimer(waiter.pollInterval)
		select {
		case <-executionContext.Done():
			timer.Stop()
			return fmt.Errorf(readinessContextErrorTemplateConstant, address, executionContext.Err())
		case <-timer.C:
		}
	}
}
