package mirror

import "strings"

// remoteSeparator joins remote path segments. FTP servers use forward
// slashes regardless of the server OS.
const remoteSeparator = "/"

// Kind classifies a remote item.
type Kind int

const (
	// KindUndefined marks the "no directory" sentinel: the parent of the
	// synthetic root. Listings never report it.
	KindUndefined Kind = iota
	KindFile
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "File"
	case KindDirectory:
		return "Directory"
	default:
		return "Undefined"
	}
}

// Entry names one remote item. Entries are values: they are built once when a
// listing reports an item and never modified afterwards.
type Entry struct {
	Name string
	Path string
	Kind Kind
	Size int64
}

// entryKey is the identity of an entry. Name and Size are excluded so that
// the same item observed through two separate listings compares equal.
type entryKey struct {
	kind Kind
	path string
}

func (e Entry) key() entryKey {
	return entryKey{kind: e.Kind, path: e.Path}
}

// Equal reports whether e and other denote the same remote item. Only kind
// and path take part in the comparison.
func (e Entry) Equal(other Entry) bool {
	return e.key() == other.key()
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

func (e Entry) String() string {
	return e.Path + " - " + e.Kind.String()
}

// noDirectory is the sentinel used as the parent of the synthetic root.
var noDirectory = Entry{Kind: KindUndefined}

// rootEntry returns the synthetic root directory for a mirror anchored at
// remoteRoot. Its name is always empty.
func rootEntry(remoteRoot string) Entry {
	return Entry{Path: remoteRoot, Kind: KindDirectory}
}

// joinRemote appends a relative path to the remote root. An empty root keeps
// paths relative to the server's login directory.
func joinRemote(remoteRoot, rel string) string {
	switch {
	case remoteRoot == "":
		return rel
	case rel == "":
		return remoteRoot
	case strings.HasSuffix(remoteRoot, remoteSeparator):
		return remoteRoot + rel
	default:
		return remoteRoot + remoteSeparator + rel
	}
}

// parentPrefix drops the last segment from a prefix such as "a/b/" and
// returns the shortened prefix ("a/"). The root prefix is empty.
func parentPrefix(prefix string) string {
	trimmed := strings.TrimSuffix(prefix, remoteSeparator)

	idx := strings.LastIndex(trimmed, remoteSeparator)
	if idx < 0 {
		return ""
	}

	return trimmed[:idx+1]
}

// dirForPrefix rebuilds the directory entry a prefix points at. The empty
// prefix is the synthetic root.
func dirForPrefix(remoteRoot, prefix string) Entry {
	if prefix == "" {
		return rootEntry(remoteRoot)
	}

	rel := strings.TrimSuffix(prefix, remoteSeparator)
	name := rel[strings.LastIndex(rel, remoteSeparator)+1:]

	return Entry{Name: name, Path: joinRemote(remoteRoot, rel), Kind: KindDirectory}
}

// cleanRemoteRoot normalises a configured remote root by dropping trailing
// separators. The server root "/" is preserved.
func cleanRemoteRoot(root string) string {
	if root == remoteSeparator {
		return root
	}

	return strings.TrimRight(root, remoteSeparator)
}
