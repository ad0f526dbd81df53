package mirror

import "fmt"

// actionKind is what the decision step asks the engine to do next.
type actionKind int

const (
	actionRetrieve actionKind = iota + 1
	actionList
	actionFinish
)

func (a actionKind) String() string {
	switch a {
	case actionRetrieve:
		return "retrieve"
	case actionList:
		return "list"
	case actionFinish:
		return "finish"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// action is the result of one decision step. For actionList, entry is the
// directory to list; for actionRetrieve, the file to fetch.
type action struct {
	kind        actionKind
	entry       Entry
	backtracked bool
}

// traversal holds the depth-first walk over the remote tree. It performs no
// I/O: the engine feeds it listing results and transfer outcomes and carries
// out the actions it returns. All queues are owned by the traversal and never
// handed out; Snapshot copies them.
type traversal struct {
	remoteRoot string

	current   Entry
	parent    Entry
	prefix    string
	listed    []Entry
	pending   []Entry
	completed map[entryKey]struct{}
	depth     int
}

func newTraversal(remoteRoot string) *traversal {
	t := &traversal{
		remoteRoot: cleanRemoteRoot(remoteRoot),
		completed:  make(map[entryKey]struct{}),
	}
	t.reset()

	return t
}

// reset positions the walk at the root with an empty completed set.
func (t *traversal) reset() {
	t.depth = 0
	t.prefix = ""
	t.current = rootEntry(t.remoteRoot)
	t.parent = noDirectory
	t.listed = nil
	t.pending = nil
	clear(t.completed)
}

// childEntry builds the entry for an item reported by the listing of the
// current directory.
func (t *traversal) childEntry(name string, kind Kind, size int64) Entry {
	return Entry{
		Name: name,
		Path: joinRemote(t.remoteRoot, t.prefix+name),
		Kind: kind,
		Size: size,
	}
}

// discover records one entry of the in-flight listing, preserving order.
func (t *traversal) discover(e Entry) {
	t.listed = append(t.listed, e)
}

// listCompleted queues every listed file that has not been completed yet,
// in listing order.
func (t *traversal) listCompleted() {
	for _, e := range t.listed {
		if e.Kind != KindFile || t.isCompleted(e) || t.isPending(e) {
			continue
		}

		t.pending = append(t.pending, e)
	}
}

// next runs the decision step: drain pending files first, then descend into
// the first unfinished subdirectory, then backtrack or finish.
func (t *traversal) next() action {
	if len(t.pending) > 0 {
		return action{kind: actionRetrieve, entry: t.pending[0]}
	}

	for _, e := range t.listed {
		if e.Kind == KindDirectory && !t.isCompleted(e) {
			t.descend(e)
			return action{kind: actionList, entry: e}
		}
	}

	if t.depth == 0 {
		return action{kind: actionFinish}
	}

	t.markCompleted(t.current)
	t.backtrack()

	return action{kind: actionList, entry: t.current, backtracked: true}
}

func (t *traversal) descend(dir Entry) {
	t.depth++
	t.parent = t.current
	t.current = dir
	t.prefix += dir.Name + remoteSeparator
	t.listed = nil
	t.pending = nil
}

// backtrack moves one level up. The parent is rebuilt from the prefix rather
// than cached, and is re-listed by the caller.
func (t *traversal) backtrack() {
	t.depth--
	t.prefix = parentPrefix(t.prefix)
	t.current = dirForPrefix(t.remoteRoot, t.prefix)
	t.parent = t.parentOf(t.prefix)
	t.listed = nil
	t.pending = nil
}

// parentOf returns the directory above the one prefix points at, or the
// noDirectory sentinel for the root.
func (t *traversal) parentOf(prefix string) Entry {
	if prefix == "" {
		return noDirectory
	}

	return dirForPrefix(t.remoteRoot, parentPrefix(prefix))
}

// downloadCompleted pops the head of the pending queue, which must be the
// entry just retrieved, and marks it completed whatever the outcome.
func (t *traversal) downloadCompleted(e Entry) error {
	if len(t.pending) == 0 || !t.pending[0].Equal(e) {
		return fmt.Errorf("%w: %s", ErrQueueOutOfOrder, e.Path)
	}

	t.pending = t.pending[1:]
	t.markCompleted(e)

	return nil
}

func (t *traversal) markCompleted(e Entry) {
	t.completed[e.key()] = struct{}{}
}

func (t *traversal) isCompleted(e Entry) bool {
	_, ok := t.completed[e.key()]
	return ok
}

func (t *traversal) isPending(e Entry) bool {
	for _, p := range t.pending {
		if p.Equal(e) {
			return true
		}
	}

	return false
}

// Snapshot is a read-only copy of the traversal for display.
type Snapshot struct {
	State     State
	Depth     int
	Current   Entry
	Parent    Entry
	Prefix    string
	Listed    []Entry
	Pending   []Entry
	Completed int
}

func (t *traversal) snapshot(state State) Snapshot {
	return Snapshot{
		State:     state,
		Depth:     t.depth,
		Current:   t.current,
		Parent:    t.parent,
		Prefix:    t.prefix,
		Listed:    append([]Entry(nil), t.listed...),
		Pending:   append([]Entry(nil), t.pending...),
		Completed: len(t.completed),
	}
}
