package loadtest

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/informalsystems/cert-load-test/internal/logging"
)

// trapInterrupts calls onKill once if the process receives SIGINT or SIGTERM.
// Closing the returned channel stops the trap.
func trapInterrupts(onKill func(), logger logging.Logger) chan struct{} {
	sigc := make(chan os.Signal, 1)
	cancelTrap := make(chan struct{})
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	go func() {
		defer signal.Stop(sigc)
		select {
		case sig := <-sigc:
			logger.Info("Received signal", "signal", sig.String())
			onKill()
		case <-cancelTrap:
			logger.Debug("Interrupt trap cancelled")
		}
	}()
	return cancelTrap
}
