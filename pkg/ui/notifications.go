package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// NotificationSender shows a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender uses notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name=pinmark", title, message).Run()
}

// MacOSNotificationSender uses osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
	return exec.Command("osascript", "-e", script).Run()
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// Notifier prints events and mirrors them to the desktop when it can
type Notifier struct {
	sender  NotificationSender
	enabled bool
}

// NewNotifier picks a sender for the current platform. Platforms without one
// only get console output.
func NewNotifier(enabled bool) *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	}
	return &Notifier{sender: sender, enabled: enabled}
}

// NewNotifierWithSender uses sender regardless of platform
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender, enabled: true}
}

func (n *Notifier) send(title, message string) {
	if n.enabled && n.sender != nil {
		// a missing notify-send is not worth failing over
		_ = n.sender.Send(title, message)
	}
}

// Notify reports a neutral event
func (n *Notifier) Notify(title, message string) {
	PrintInfo(title, message)
	n.send(title, message)
}

// NotifyError reports a failure
func (n *Notifier) NotifyError(title, message string) {
	PrintError(title, message)
	n.send(title, message)
}

// NotifySuccess reports a success
func (n *Notifier) NotifySuccess(title, message string) {
	PrintSuccess(title + ": " + message)
	n.send(title, message)
}
