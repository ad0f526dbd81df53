package mirror

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeItem is one entry of a scripted remote directory.
type fakeItem struct {
	name string
	kind Kind
}

func fileItem(name string) fakeItem { return fakeItem{name: name, kind: KindFile} }
func dirItem(name string) fakeItem { return fakeItem{name: name, kind: KindDirectory} }

// fakeTransport replays a scripted remote tree. Every command queues its
// events on a buffered channel at issue time, so they are only observed once
// the engine's Run loop reads them, the same way a real asynchronous client
// behaves.
type fakeTransport struct {
	events chan Event
	next   Token

	authErr error
	dirs    map[string][]fakeItem
	files   map[string][]byte
	listErr map[string]error
	getErr  map[string]error

	ops      []string
	closed   int
	closeErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events:  make(chan Event, 1024),
		dirs:    make(map[string][]fakeItem),
		files:   make(map[string][]byte),
		listErr: make(map[string]error),
		getErr:  make(map[string]error),
	}
}

func (f *fakeTransport) token() Token {
	f.next++
	return f.next
}

func (f *fakeTransport) push(ev Event) {
	f.events <- ev
}

func (f *fakeTransport) Connect(host string) {
	f.ops = append(f.ops, "connect "+host)
}

func (f *fakeTransport) Authenticate(user, _ string) Token {
	tok := f.token()
	f.ops = append(f.ops, "auth "+user)
	f.push(Finished{Token: tok, Err: f.authErr})

	return tok
}

func (f *fakeTransport) List(path string) Token {
	tok := f.token()
	f.ops = append(f.ops, "list "+path)

	if err := f.listErr[path]; err != nil {
		f.push(Finished{Token: tok, Err: err})
		return tok
	}

	for _, it := range f.dirs[path] {
		size := int64(len(f.files[joinRemote(path, it.name)]))
		f.push(EntryDiscovered{Token: tok, Name: it.name, Kind: it.kind, Size: size})
	}

	f.push(Finished{Token: tok})

	return tok
}

func (f *fakeTransport) Retrieve(path string) Token {
	tok := f.token()
	f.ops = append(f.ops, "get "+path)

	data := f.files[path]
	total := int64(len(data))
	half := len(data) / 2

	f.push(DataReceived{Token: tok, Chunk: append([]byte(nil), data[:half]...)})
	f.push(Progress{Token: tok, Done: int64(half), Total: total})

	if err := f.getErr[path]; err != nil {
		f.push(Finished{Token: tok, Err: err})
		return tok
	}

	f.push(DataReceived{Token: tok, Chunk: append([]byte(nil), data[half:]...)})
	f.push(Progress{Token: tok, Done: total, Total: total})
	f.push(Finished{Token: tok})

	return tok
}

func (f *fakeTransport) Close() error {
	f.closed++
	f.ops = append(f.ops, "close")

	return f.closeErr
}

func (f *fakeTransport) Events() <-chan Event {
	return f.events
}

// failingFS wraps the host filesystem and fails selected operations.
type failingFS struct {
	*OSFileSystem
	writeErr error
	mkdirErr error
	mkdirs   int
}

func (ffs *failingFS) MkdirAll(path string) error {
	ffs.mkdirs++

	if ffs.mkdirErr != nil {
		return ffs.mkdirErr
	}

	return ffs.OSFileSystem.MkdirAll(path)
}

func (ffs *failingFS) WriteFile(path string, r io.Reader) (int64, error) {
	if ffs.writeErr != nil {
		return 0, ffs.writeErr
	}

	return ffs.OSFileSystem.WriteFile(path, r)
}

// recorder collects notifications in order.
type recorder struct {
	notes []Notification
}

func (r *recorder) Notify(n Notification) {
	r.notes = append(r.notes, n)
}

func (r *recorder) failedDownloads() []DownloadFailed {
	var out []DownloadFailed

	for _, n := range r.notes {
		if df, ok := n.(DownloadFailed); ok {
			out = append(out, df)
		}
	}

	return out
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newTestEngine wires an engine to ft with a temporary local root.
func newTestEngine(t *testing.T, ft *fakeTransport, mutate ...func(*Config)) (*Engine, *recorder, string) {
	t.Helper()

	rec := &recorder{}
	root := t.TempDir()

	cfg := &Config{
		LocalRoot: root,
		Observer:  rec,
		SpoolDir:  t.TempDir(),
		Logger:    testLogger(t),
	}

	for _, m := range mutate {
		m(cfg)
	}

	e, err := NewEngine(ft, cfg)
	require.NoError(t, err)

	return e, rec, root
}

var errBoom = errors.New("boom")
