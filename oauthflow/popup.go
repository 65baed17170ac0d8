package oauthflow

// Window is a single externally navigable window, exclusively owned by the
// controller for the duration of one flow. Close must tolerate the window
// already being closed.
type Window interface {
	Closed() bool
	Close()
}

// Opener opens popup windows at an authorization URL. A deployment adapts
// whatever browser bridge it embeds; tests inject fakes. Open returns an
// error when the environment refused to open the window (popup blocked).
type Opener interface {
	Open(url string) (Window, error)
}
