// Package systemd reports service readiness and liveness to systemd through
// the sd_notify protocol. Outside a notify-type unit every call is a no-op.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends state changes to the service manager.
type Notifier struct {
	logger *slog.Logger
}

// NewNotifier creates a notifier. A nil logger uses slog.Default().
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger}
}

func (n *Notifier) send(state string) (bool, error) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		return false, fmt.Errorf("sd_notify %q: %w", state, err)
	}
	return sent, nil
}

// Ready tells systemd startup has finished.
func (n *Notifier) Ready() error {
	sent, err := n.send(daemon.SdNotifyReady)
	if sent {
		n.logger.Debug("Notified systemd ready")
	}
	return err
}

// Stopping tells systemd shutdown has begun.
func (n *Notifier) Stopping() error {
	_, err := n.send(daemon.SdNotifyStopping)
	return err
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) error {
	_, err := n.send("STATUS=" + fmt.Sprintf(format, args...))
	return err
}

// RunWatchdog pings the watchdog at half the configured interval until ctx is
// done. It returns at once when the unit has no WatchdogSec.
func (n *Notifier) RunWatchdog(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("watchdog: %w", err)
	}
	if interval == 0 {
		return nil
	}

	n.logger.Info("Systemd watchdog enabled", "interval", interval)
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := n.send(daemon.SdNotifyWatchdog); err != nil {
				n.logger.Warn("Watchdog ping failed", "error", err)
			}
		}
	}
}
