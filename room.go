package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/sirupsen/logrus"
)

// cogruIgnore is the gitignore-style ignore file honored by the initial
// workspace scan.
const cogruIgnore = ".cogruignore"

// outboxDepth caps each client's outbound inbox. When an inbox is full the
// oldest frame is dropped so one stalled reader cannot grow server memory
// without bound.
const outboxDepth = 1024

// sender is one client's outbound inbox. Handlers push already-serialized
// frames; the owning channel's writer goroutine drains them FIFO.
type sender struct {
	addr string
	ch   chan string

	mu      sync.Mutex
	closed  bool
	dropped atomic.Uint64
}

func newSender(addr string) *sender {
	return &sender{addr: addr, ch: make(chan string, outboxDepth)}
}

// push enqueues a frame without blocking. On a full inbox it evicts the
// oldest frame first; pushes to a closed inbox are ignored.
func (s *sender) push(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- msg:
			return
		default:
		}
		select {
		case <-s.ch:
			if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
				logrus.Warnf("[room] outbox full for %s; dropped %d frames", s.addr, n)
			}
		default:
		}
	}
}

// close stops the inbox and releases the draining writer.
func (s *sender) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Room is the shared substrate of one server process: the workspace root,
// every connected client, each client's outbound inbox, and the open file
// views. One lock serializes all mutations — cursor prediction has to see
// every client's position in a single consistent snapshot, and prediction
// crosses files, so the substrate is not sharded.
type Room struct {
	mu sync.Mutex

	prop     *Config
	path     string // absolute workspace root, slash-normalized, trailing separator
	password string // "" = open room

	clients map[string]*Client // peer addr -> session state
	senders map[string]*sender // peer addr -> outbound inbox
	files   map[string]*File   // absolute path -> view

	chat Chat // room-wide message log

	// wire counters, reported by the metrics loop and the status API
	framesIn  atomic.Uint64
	framesOut atomic.Uint64
	bytesIn   atomic.Uint64
	bytesOut  atomic.Uint64
}

// newRoom builds a room rooted at path. The caller runs scanFiles before
// serving so clients can sync immediately.
func newRoom(prop *Config, path, password string) *Room {
	return &Room{
		prop:     prop,
		path:     ensureTrailingSlash(toSlash(path)),
		password: password,
		clients:  make(map[string]*Client),
		senders:  make(map[string]*sender),
		files:    make(map[string]*File),
	}
}

// Path returns the workspace root.
func (r *Room) Path() string {
	return r.path
}

// scanFiles walks the workspace, honoring .cogruignore, and creates a view
// for every regular file. Hidden files are not skipped.
func (r *Room) scanFiles() error {
	matcher, err := r.ignoreMatcher()
	if err != nil {
		return err
	}

	root := strings.TrimSuffix(r.path, "/")
	count := 0
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = toSlash(rel)
		if matcher != nil {
			ignored, err := matcher.MatchesOrParentMatches(rel)
			if err != nil {
				return err
			}
			if ignored {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if d.Type().IsRegular() {
			abs := ensureTrailingSlash(toSlash(root)) + rel
			logrus.Infof("[room] sync file %s", abs)
			r.newFileAbs(abs, nil)
			count++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan workspace: %w", err)
	}
	logrus.Infof("[room] workspace %s: %d files", r.path, count)
	return nil
}

// ignoreMatcher loads .cogruignore from the workspace root. A missing file
// just means nothing is ignored.
func (r *Room) ignoreMatcher() (*patternmatcher.PatternMatcher, error) {
	f, err := os.Open(r.path + cogruIgnore)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", cogruIgnore, err)
	}
	defer f.Close()

	patterns, err := ignorefile.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", cogruIgnore, err)
	}
	return patternmatcher.New(patterns)
}

// ---------------------------------------------------------------------------
// Membership. Callers hold r.mu unless noted.
// ---------------------------------------------------------------------------

// addClient registers a fresh session row and its outbound inbox, keeping
// the clients/senders maps in lockstep. Takes the lock itself.
func (r *Room) addClient(addr string) *sender {
	client := &Client{SessionID: uuid.NewString()}
	snd := newSender(addr)

	r.mu.Lock()
	r.clients[addr] = client
	r.senders[addr] = snd
	total := len(r.clients)
	r.mu.Unlock()

	logrus.Infof("[room] client %s connected (session %s), total=%d", addr, client.SessionID, total)
	return snd
}

// removeClient drops a session row and closes its inbox. Takes the lock
// itself; safe to call twice.
func (r *Room) removeClient(addr string) {
	r.mu.Lock()
	snd, existed := r.senders[addr]
	delete(r.clients, addr)
	delete(r.senders, addr)
	total := len(r.clients)
	r.mu.Unlock()

	if existed {
		snd.close()
		logrus.Infof("[room] client %s disconnected, total=%d", addr, total)
	}
}

// client returns the session row for a peer address.
func (r *Room) client(addr string) *Client {
	return r.clients[addr]
}

// clientByName returns the entered client holding username.
func (r *Room) clientByName(username string) (string, *Client) {
	for addr, c := range r.clients {
		if c.Entered && c.User.Username == username {
			return addr, c
		}
	}
	return "", nil
}

// usernameTaken reports whether another entered client already holds
// username.
func (r *Room) usernameTaken(addr, username string) bool {
	for a, c := range r.clients {
		if a == addr || !c.Entered {
			continue
		}
		if c.User.Username == username {
			return true
		}
	}
	return false
}

// enter validates a join attempt. The caller flips the client's state on
// success.
func (r *Room) enter(addr, username string, password *string) (bool, string) {
	if r.usernameTaken(addr, username) {
		return false, "Username already taken"
	}
	if r.password == "" {
		return true, ""
	}
	if password == nil {
		return false, "Password cannot be null"
	}
	if r.password != *password {
		return false, "Incorrect password"
	}
	return true, ""
}

// kick flips the target's entered state off and clears its user. The
// socket stays open; other clients learn via the caller's broadcast.
func (r *Room) kick(username string) (bool, string) {
	_, client := r.clientByName(username)
	if client == nil {
		return false, fmt.Sprintf("User `%s` not found in the room", username)
	}
	if !client.Entered {
		return false, fmt.Sprintf("User `%s` is not in the room", username)
	}
	client.ExitRoom()
	return true, ""
}

// ---------------------------------------------------------------------------
// Files. Callers hold r.mu.
// ---------------------------------------------------------------------------

// newFileAbs inserts a view for an absolute path. It does not take the
// lock: handlers call it with r.mu held, and scanFiles runs before serving
// starts.
func (r *Room) newFileAbs(abs string, contents *string) *File {
	abs = toSlash(abs)
	f := newFile(abs, strings.TrimPrefix(abs, r.path), contents, r.prop.UseLF)
	r.files[abs] = f
	return f
}

// getFile resolves a client-namespaced path and returns its view.
func (r *Room) getFile(addr string, clientPath string) *File {
	abs, ok := r.toRoomPath(addr, clientPath)
	if !ok {
		return nil
	}
	return r.files[abs]
}

// getFileCreate is getFile with get-or-create semantics: an edit to an
// untracked path still produces a view and propagates.
func (r *Room) getFileCreate(addr string, clientPath string, contents *string) *File {
	abs, ok := r.toRoomPath(addr, clientPath)
	if !ok {
		return nil
	}
	if f := r.files[abs]; f != nil {
		return f
	}
	return r.newFileAbs(abs, contents)
}

// deleteFile removes a view from the map and the file from disk.
func (r *Room) deleteFile(abs string) (*File, error) {
	f, ok := r.files[abs]
	if !ok {
		return nil, fmt.Errorf("not tracked: %s", abs)
	}
	if err := os.Remove(abs); err != nil {
		return nil, fmt.Errorf("delete %s: %w", abs, err)
	}
	delete(r.files, abs)
	return f, nil
}

// renameFile moves the map entry, rewrites the stored paths, and renames
// on disk. Both the map key and File.Path must change together.
func (r *Room) renameFile(abs, newAbs string) (*File, error) {
	f, ok := r.files[abs]
	if !ok {
		return nil, fmt.Errorf("not tracked: %s", abs)
	}
	if err := os.Rename(abs, newAbs); err != nil {
		return nil, fmt.Errorf("rename %s: %w", abs, err)
	}
	delete(r.files, abs)
	f.Path = newAbs
	f.RelPath = strings.TrimPrefix(newAbs, r.path)
	r.files[newAbs] = f
	return f, nil
}

// pathFiles returns every tracked absolute path, sorted for deterministic
// room::sync streaming.
func (r *Room) pathFiles() []string {
	out := make([]string, 0, len(r.files))
	for p := range r.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// Path translation. The room speaks absolute paths under r.path; clients
// speak absolute paths under their own root. Translation is a verified
// prefix swap, never a substring replace.
// ---------------------------------------------------------------------------

// toRoomPath maps a client-absolute path into the room's namespace.
func (r *Room) toRoomPath(addr string, clientPath string) (string, bool) {
	c := r.client(addr)
	if c == nil {
		return "", false
	}
	rel, ok := noClientPath(c, clientPath)
	if !ok {
		return "", false
	}
	return r.path + rel, true
}

// noRoomPath strips the room root, yielding a relative path.
func (r *Room) noRoomPath(abs string) string {
	return strings.TrimPrefix(toSlash(abs), r.path)
}

// toClientPath maps a room-absolute path into a client namespace rooted at
// clientRoot.
func toClientPath(clientRoot, rel string) string {
	return ensureTrailingSlash(toSlash(clientRoot)) + rel
}

// noClientPath strips the client root from one of that client's absolute
// paths. Returns false when the path does not lie under the client root.
func noClientPath(c *Client, clientPath string) (string, bool) {
	p := toSlash(clientPath)
	if c.Path == "" || !strings.HasPrefix(p, c.Path) {
		return "", false
	}
	return strings.TrimPrefix(p, c.Path), true
}

// relOfUser returns the relative path of the file a user is visiting, or
// "" when the user is not in any file. Caller holds r.mu.
func (r *Room) relOfUser(u *User) string {
	if u == nil || u.Path == nil {
		return ""
	}
	return r.noRoomPath(*u.Path)
}

// userSnapshot converts a presence record to its wire form: the stored
// room-absolute path becomes relative so any client can resolve it.
func (r *Room) userSnapshot(u *User) User {
	out := *u
	if u.Path != nil {
		out.Path = strPtr(r.noRoomPath(*u.Path))
	}
	return out
}

// ---------------------------------------------------------------------------
// Fan-out. Frames are serialized once, then pushed to each inbox; pushing
// never blocks, so holding r.mu across the enqueue is safe.
// ---------------------------------------------------------------------------

func marshalFrame(v any) (string, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		logrus.Errorf("[room] marshal frame: %v", err)
		return "", false
	}
	return string(data), true
}

// sendJSON pushes one frame to a single peer.
func (r *Room) sendJSON(addr string, v any) {
	msg, ok := marshalFrame(v)
	if !ok {
		return
	}
	if snd := r.senders[addr]; snd != nil {
		snd.push(msg)
	}
}

// broadcastJSON pushes one frame to every connected peer.
func (r *Room) broadcastJSON(v any) {
	msg, ok := marshalFrame(v)
	if !ok {
		return
	}
	for _, snd := range r.senders {
		snd.push(msg)
	}
}

// broadcastJSONExcept pushes one frame to every peer but one.
func (r *Room) broadcastJSONExcept(v any, except string) {
	msg, ok := marshalFrame(v)
	if !ok {
		return
	}
	for addr, snd := range r.senders {
		if addr == except {
			continue
		}
		snd.push(msg)
	}
}

// peersByFile returns the inboxes of every entered client currently
// visiting rel, excluding one address.
func (r *Room) peersByFile(rel, except string) []*sender {
	var out []*sender
	for addr, c := range r.clients {
		if addr == except || !c.Entered {
			continue
		}
		if r.relOfUser(c.User) != rel {
			continue
		}
		if snd := r.senders[addr]; snd != nil {
			out = append(out, snd)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Introspection for the metrics loop and status API. These take the lock.
// ---------------------------------------------------------------------------

// RoomSnapshot is the read-only view served by the HTTP status API.
type RoomSnapshot struct {
	Path    string `json:"path"`
	Clients int    `json:"clients"`
	Entered int    `json:"entered"`
	Files   int    `json:"files"`
	Users   []User `json:"users,omitempty"`
}

// Snapshot captures room state for the status API.
func (r *Room) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := RoomSnapshot{
		Path:    r.path,
		Clients: len(r.clients),
		Files:   len(r.files),
	}
	for _, c := range r.clients {
		if c.Entered {
			snap.Entered++
			snap.Users = append(snap.Users, r.userSnapshot(c.User))
		}
	}
	sort.Slice(snap.Users, func(i, j int) bool {
		return snap.Users[i].Username < snap.Users[j].Username
	})
	return snap
}

// ChatLog returns a copy of the room-wide message log.
func (r *Room) ChatLog() []ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chat.Messages()
}

// TrackedFiles lists every tracked relative path.
func (r *Room) TrackedFiles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.files))
	for _, f := range r.files {
		out = append(out, f.RelPath)
	}
	sort.Strings(out)
	return out
}

// Stats returns the wire counters accumulated since the last call and
// resets them, plus the dropped-frame total summed over the connected
// clients' inboxes, which is not reset.
func (r *Room) Stats() (framesIn, framesOut, bytesIn, bytesOut, dropped uint64, clients int) {
	framesIn = r.framesIn.Swap(0)
	framesOut = r.framesOut.Swap(0)
	bytesIn = r.bytesIn.Swap(0)
	bytesOut = r.bytesOut.Swap(0)

	r.mu.Lock()
	clients = len(r.clients)
	for _, snd := range r.senders {
		dropped += snd.dropped.Load()
	}
	r.mu.Unlock()
	return
}

// ---------------------------------------------------------------------------
// Small path helpers.
// ---------------------------------------------------------------------------

// toSlash converts backslashes so every stored path is slash-separated.
func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

func ensureTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
