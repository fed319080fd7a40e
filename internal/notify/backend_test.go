package notify

type notifyCall struct {
	title    string
	message  string
	iconPath string
}

// mockBackend records every call.
type mockBackend struct {
	err         error
	notifyCalls []notifyCall
	alertCalls  []notifyCall
}

func (m *mockBackend) Notify(title, message, iconPath string) error {
	m.notifyCalls = append(m.notifyCalls, notifyCall{title, message, iconPath})
	return m.err
}

func (m *mockBackend) Alert(title, message, iconPath string) error {
	m.alertCalls = append(m.alertCalls, notifyCall{title, message, iconPath})
	return m.err
}

var _ Backend = desktopBackend{}
