// Package ftpclient implements the mirror engine's asynchronous Transport on
// top of a blocking FTP control connection. Commands are queued and executed
// in order by a single worker goroutine, which reports their outcome as
// events.
package ftpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jlaffaye/ftp"
	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/ftp-mirror/internal/mirror"
)

// DefaultPort is the FTP control port.
const DefaultPort = 21

const (
	chunkSize   = 32 * 1024
	queueSize   = 8
	eventBuffer = 64
	// defaultCloseGrace bounds how long Close waits for the worker to notice
	// cancellation before returning.
	defaultCloseGrace = 5 * time.Second
)

var (
	// ErrNotConnected is reported for commands issued without a live connection.
	ErrNotConnected = errors.New("ftpclient: not connected")

	// ErrWorkerStuck is returned by Close when the worker is still blocked in
	// a server call after the grace period.
	ErrWorkerStuck = errors.New("ftpclient: worker did not stop")
)

// Options configures a Client.
type Options struct {
	Port    int
	Dial    DialFunc
	Limiter *BandwidthLimiter
	Logger  *slog.Logger
}

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdLogin
	cmdList
	cmdRetrieve
)

type command struct {
	kind     commandKind
	token    mirror.Token
	arg      string
	password string
}

// Client is an asynchronous FTP transport. The command methods may be called
// from any goroutine; events are produced by the worker only.
type Client struct {
	port    int
	dial    DialFunc
	limiter *BandwidthLimiter
	logger  *slog.Logger

	closeGrace time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	cmds   chan command
	events chan mirror.Event
	exited chan struct{}
	next   atomic.Uint64
	once   sync.Once

	// Owned by the worker goroutine.
	conn    Conn
	connErr error
}

// New starts a client worker. The worker runs until Close is called or
// parent is canceled.
func New(parent context.Context, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}

	dial := opts.Dial
	if dial == nil {
		dial = NewDialer(0, false)
	}

	ctx, cancel := context.WithCancel(parent)

	c := &Client{
		port:       port,
		dial:       dial,
		limiter:    opts.Limiter,
		logger:     logger,
		closeGrace: defaultCloseGrace,
		ctx:        ctx,
		cancel:     cancel,
		cmds:       make(chan command, queueSize),
		events:     make(chan mirror.Event, eventBuffer),
		exited:     make(chan struct{}),
	}

	go c.run()

	return c
}

// Connect queues opening the control connection. A dial failure is reported
// by the next command's Finished event.
func (c *Client) Connect(host string) {
	c.enqueue(command{kind: cmdConnect, arg: host})
}

func (c *Client) Authenticate(user, password string) mirror.Token {
	return c.submit(command{kind: cmdLogin, arg: user, password: password})
}

func (c *Client) List(path string) mirror.Token {
	return c.submit(command{kind: cmdList, arg: path})
}

func (c *Client) Retrieve(path string) mirror.Token {
	return c.submit(command{kind: cmdRetrieve, arg: path})
}

func (c *Client) Events() <-chan mirror.Event {
	return c.events
}

// Close cancels the in-flight command, quits the connection and closes the
// events channel. It is safe to call more than once. If the worker is still
// blocked on the server after the grace period Close returns ErrWorkerStuck;
// the worker exits once that call returns.
func (c *Client) Close() error {
	c.once.Do(c.cancel)

	select {
	case <-c.exited:
		return nil
	case <-time.After(c.closeGrace):
		c.logger.Warn("ftp worker did not stop in time", slog.Duration("grace", c.closeGrace))
		return fmt.Errorf("%w within %s", ErrWorkerStuck, c.closeGrace)
	}
}

func (c *Client) submit(cmd command) mirror.Token {
	cmd.token = mirror.Token(c.next.Add(1))
	c.enqueue(cmd)

	return cmd.token
}

// enqueue drops the command once the client is closed; nobody is left to
// receive its completion.
func (c *Client) enqueue(cmd command) {
	select {
	case c.cmds <- cmd:
	case <-c.ctx.Done():
	}
}

func (c *Client) run() {
	defer close(c.exited)
	defer close(c.events)
	defer c.quit()

	for {
		select {
		case <-c.ctx.Done():
			return
		case cmd := <-c.cmds:
			c.execute(cmd)
		}
	}
}

func (c *Client) execute(cmd command) {
	switch cmd.kind {
	case cmdConnect:
		c.connect(cmd.arg)
	case cmdLogin:
		c.finish(cmd.token, c.login(cmd.arg, cmd.password))
	case cmdList:
		c.finish(cmd.token, c.list(cmd.token, cmd.arg))
	case cmdRetrieve:
		c.finish(cmd.token, c.retrieve(cmd.token, cmd.arg))
	}
}

// address appends the configured port unless host already carries one.
func (c *Client) address(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}

	return net.JoinHostPort(host, strconv.Itoa(c.port))
}

func (c *Client) connect(host string) {
	c.quit()

	addr := c.address(host)
	c.logger.Debug("dialing ftp server", slog.String("addr", addr))

	conn, err := c.dial(c.ctx, addr)
	if err != nil {
		c.connErr = fmt.Errorf("ftpclient: dial %s: %w", addr, err)
		return
	}

	c.conn = conn
	c.connErr = nil
}

func (c *Client) usable() error {
	if c.connErr != nil {
		return c.connErr
	}

	if c.conn == nil {
		return ErrNotConnected
	}

	return nil
}

func (c *Client) login(user, password string) error {
	if err := c.usable(); err != nil {
		return err
	}

	if err := c.conn.Login(user, password); err != nil {
		return fmt.Errorf("ftpclient: login as %s: %w", user, err)
	}

	return nil
}

// list reports the entries of path. Self and parent links and symbolic links
// are not reported.
func (c *Client) list(token mirror.Token, path string) error {
	if err := c.usable(); err != nil {
		return err
	}

	entries, err := c.conn.List(path)
	if err != nil {
		return fmt.Errorf("ftpclient: list %q: %w", path, err)
	}

	for _, e := range entries {
		name := norm.NFC.String(e.Name)
		if name == "" || name == "." || name == ".." {
			continue
		}

		var kind mirror.Kind

		switch e.Type {
		case ftp.EntryTypeFile:
			kind = mirror.KindFile
		case ftp.EntryTypeFolder:
			kind = mirror.KindDirectory
		default:
			c.logger.Debug("skipping link", slog.String("name", name), slog.String("target", e.Target))
			continue
		}

		if !c.emit(mirror.EntryDiscovered{Token: token, Name: name, Kind: kind, Size: clampSize(e.Size)}) {
			return c.ctx.Err()
		}
	}

	return nil
}

// retrieve streams path as DataReceived chunks. The total comes from SIZE
// and is -1 when the server does not support it.
func (c *Client) retrieve(token mirror.Token, path string) error {
	if err := c.usable(); err != nil {
		return err
	}

	total, err := c.conn.FileSize(path)
	if err != nil {
		c.logger.Debug("size unavailable", slog.String("path", path), slog.String("error", err.Error()))
		total = -1
	}

	body, err := c.conn.Retr(path)
	if err != nil {
		return fmt.Errorf("ftpclient: retrieve %q: %w", path, err)
	}

	r := c.limiter.WrapReader(c.ctx, body)
	buf := make([]byte, chunkSize)

	var done int64

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			done += int64(n)

			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			if !c.emit(mirror.DataReceived{Token: token, Chunk: chunk}) ||
				!c.emit(mirror.Progress{Token: token, Done: done, Total: total}) {
				body.Close()
				return c.ctx.Err()
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			body.Close()
			return fmt.Errorf("ftpclient: retrieve %q: %w", path, readErr)
		}
	}

	if err := body.Close(); err != nil {
		return fmt.Errorf("ftpclient: retrieve %q: %w", path, err)
	}

	return nil
}

func (c *Client) finish(token mirror.Token, err error) {
	c.emit(mirror.Finished{Token: token, Err: err})
}

// emit delivers ev unless the client is shutting down.
func (c *Client) emit(ev mirror.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Client) quit() {
	if c.conn == nil {
		return
	}

	if err := c.conn.Quit(); err != nil {
		c.logger.Debug("ftp quit", slog.String("error", err.Error()))
	}

	c.conn = nil
}

func clampSize(n uint64) int64 {
	if n > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(n)
}
