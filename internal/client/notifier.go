package client

import "github.com/rs/zerolog"

// Notifier surfaces request failures to the user
type Notifier interface {
	// Error reports a transport failure
	Error(msg string)
	// Warning reports an application-level failure carried in the envelope
	Warning(msg string)
	// ShowLogin asks the user to authenticate again
	ShowLogin()
}

// NopNotifier discards every notification
type NopNotifier struct{}

func (NopNotifier) Error(string)   {}
func (NopNotifier) Warning(string) {}
func (NopNotifier) ShowLogin()     {}

// LogNotifier writes notifications to a zerolog logger
type LogNotifier struct {
	Log zerolog.Logger
	// OnLogin, when set, runs after the login prompt is logged
	OnLogin func()
}

func (n LogNotifier) Error(msg string) {
	n.Log.Error().Msg(msg)
}

func (n LogNotifier) Warning(msg string) {
	n.Log.Warn().Msg(msg)
}

func (n LogNotifier) ShowLogin() {
	n.Log.Warn().Msg("login required, run `cmsctl login <token>`")
	if n.OnLogin != nil {
		n.OnLogin()
	}
}
