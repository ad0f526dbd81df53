package mirror

import "fmt"

// State is the engine's session state.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	// StateAuthenticated is a logged-in session with no mirror running.
	StateAuthenticated
	StateListing
	StateDownloading
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateListing:
		return "listing"
	case StateDownloading:
		return "downloading"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// terminal reports whether the session can make no further progress.
func (s State) terminal() bool {
	return s == StateFinished || s == StateFailed
}

// mirroring reports whether a traversal is running.
func (s State) mirroring() bool {
	return s == StateListing || s == StateDownloading
}
