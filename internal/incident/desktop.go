package incident

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// commandRunner executes a desktop notification command. Injectable so
// tests never spawn processes.
type commandRunner func(name string, args ...string) error

func runCommand(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// DesktopNotifier raises an OS desktop notification for an incident.
// Uses notify-send on Linux and osascript on macOS; other platforms
// report unsupported at construction time.
type DesktopNotifier struct {
	run  commandRunner
	goos string
}

// NewDesktopNotifier creates a desktop notifier for the current
// platform.
func NewDesktopNotifier() (*DesktopNotifier, error) {
	return newDesktopNotifierFor(runtime.GOOS, runCommand)
}

func newDesktopNotifierFor(goos string, run commandRunner) (*DesktopNotifier, error) {
	switch goos {
	case "linux", "darwin":
		return &DesktopNotifier{run: run, goos: goos}, nil
	default:
		return nil, fmt.Errorf("desktop notifications not supported on %s", goos)
	}
}

// Name implements Notifier.
func (n *DesktopNotifier) Name() string { return "desktop" }

// Notify implements Notifier.
func (n *DesktopNotifier) Notify(incident *Incident) error {
	title := fmt.Sprintf("Security incident (%s)", incident.Severity)
	body := incident.Title
	if len(incident.AffectedResources) > 0 {
		body += fmt.Sprintf(" (%d resources affected)", len(incident.AffectedResources))
	}

	switch n.goos {
	case "linux":
		urgency := "normal"
		if incident.Severity.AtLeast(SeverityHigh) {
			urgency = "critical"
		}
		return n.run("notify-send", "--urgency", urgency, "--app-name", "vaultwatch", title, body)
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		// osascript rejects embedded newlines in the literal form.
		script = strings.ReplaceAll(script, "\n", " ")
		return n.run("osascript", "-e", script)
	}
	return nil
}
