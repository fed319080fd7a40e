package notify

import "github.com/gen2brain/beeep"

// Backend delivers notifications to the desktop.
type Backend interface {
	// Notify shows an informational notification.
	Notify(title, message, iconPath string) error
	// Alert shows a notification that asks for attention.
	Alert(title, message, iconPath string) error
}

type desktopBackend struct{}

func (desktopBackend) Notify(title, message, iconPath string) error {
	return beeep.Notify(title, message, iconPath)
}

func (desktopBackend) Alert(title, message, iconPath string) error {
	return beeep.Alert(title, message, iconPath)
}
