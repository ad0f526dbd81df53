package mirror

import "time"

// Notification is what the engine reports to its presentation
// collaborator. Only the types in this file implement it.
type Notification interface {
	isNotification()
}

// Observer receives notifications. Notify is called synchronously from the
// goroutine driving the engine and must not call back into it.
type Observer interface {
	Notify(n Notification)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(n Notification)

func (f ObserverFunc) Notify(n Notification) { f(n) }

// AuthenticationResult ends the authentication phase. Err is an *AuthError
// when OK is false.
type AuthenticationResult struct {
	Host   string
	User   string
	OK     bool
	Reason AuthReason
	Err    error
}

// DownloadStarted is sent when a retrieve is issued, not when it completes.
type DownloadStarted struct {
	RemotePath string
	Size       int64
}

// DownloadProgress reports bytes received for the in-flight file. Total is
// negative when unknown.
type DownloadProgress struct {
	RemotePath string
	Done       int64
	Total      int64
}

// DownloadFinished reports a file written to disk.
type DownloadFinished struct {
	RemotePath string
	LocalPath  string
	Bytes      int64
}

// DownloadFailed reports a file that was skipped. The traversal continues.
type DownloadFailed struct {
	RemotePath string
	Err        error
}

// DirectoryEntered reports the start of a directory listing.
type DirectoryEntered struct {
	RemotePath string
	Depth      int
}

// MirrorFinished is the terminal notification of a successful traversal.
type MirrorFinished struct {
	Stats Stats
}

// MirrorFailed is the terminal notification of an aborted traversal.
type MirrorFailed struct {
	Err   error
	Stats Stats
}

func (AuthenticationResult) isNotification() {}
func (DownloadStarted) isNotification()      {}
func (DownloadProgress) isNotification()     {}
func (DownloadFinished) isNotification()     {}
func (DownloadFailed) isNotification()       {}
func (DirectoryEntered) isNotification()     {}
func (MirrorFinished) isNotification()       {}
func (MirrorFailed) isNotification()         {}

// Stats summarises a traversal.
type Stats struct {
	DirectoriesListed int
	FilesDownloaded   int
	FilesFailed       int
	BytesWritten      int64
	Started           time.Time
	Ended             time.Time
}

// Duration is the wall time between the first listing and the terminal
// notification.
func (s Stats) Duration() time.Duration {
	if s.Started.IsZero() || s.Ended.IsZero() {
		return 0
	}

	return s.Ended.Sub(s.Started)
}
