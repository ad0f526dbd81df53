package mirror

// Token identifies one asynchronous transport command. A transport never
// reuses a token while the command is outstanding.
type Token uint64

// Transport is an asynchronous file-transfer client. Every command returns
// immediately; its outcome arrives later on the Events channel as a Finished
// event carrying the same token.
//
// For a List command the transport delivers zero or more EntryDiscovered
// events, in listing order, strictly before the command's Finished event. For
// a Retrieve command it delivers DataReceived and Progress events before
// Finished. Commands are executed in the order they were issued.
type Transport interface {
	// Connect opens the control connection. A connection failure is reported
	// through the Finished event of the next command.
	Connect(host string)
	Authenticate(user, password string) Token
	List(path string) Token
	Retrieve(path string) Token
	// Close aborts any in-flight command and releases the connection. The
	// Events channel is closed once the transport has shut down.
	Close() error
	Events() <-chan Event
}

// Event is a transport completion or intermediate notification.
type Event interface {
	EventToken() Token
}

// EntryDiscovered reports one item of an in-flight listing.
type EntryDiscovered struct {
	Token Token
	Name  string
	Kind  Kind
	Size  int64
}

// DataReceived carries one chunk of an in-flight retrieve. The transport
// hands over ownership of Chunk.
type DataReceived struct {
	Token Token
	Chunk []byte
}

// Progress reports bytes received so far for an in-flight retrieve. Total is
// negative when the server did not report a size.
type Progress struct {
	Token Token
	Done  int64
	Total int64
}

// Finished ends a command. Err is nil on success.
type Finished struct {
	Token Token
	Err   error
}

func (e EntryDiscovered) EventToken() Token { return e.Token }
func (e DataReceived) EventToken() Token    { return e.Token }
func (e Progress) EventToken() Token        { return e.Token }
func (e Finished) EventToken() Token        { return e.Token }
