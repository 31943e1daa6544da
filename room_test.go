package main

import (
	"os"
	"path/filepath"
	"testing"
)

func testConfig() *Config {
	return &Config{
		Host:       "127.0.0.1",
		Port:       0,
		BufferSize: defaultBufferSize,
		LogLevel:   "error",
	}
}

func newTestRoom(t *testing.T, password string) *Room {
	t.Helper()
	return newRoom(testConfig(), t.TempDir(), password)
}

func TestAddRemoveClientKeepsMapsInLockstep(t *testing.T) {
	room := newTestRoom(t, "")

	room.addClient("10.0.0.1:1000")
	room.addClient("10.0.0.2:2000")

	room.mu.Lock()
	for addr := range room.clients {
		if room.senders[addr] == nil {
			t.Fatalf("client %s has no sender", addr)
		}
	}
	for addr := range room.senders {
		if room.clients[addr] == nil {
			t.Fatalf("sender %s has no client", addr)
		}
	}
	room.mu.Unlock()

	room.removeClient("10.0.0.1:1000")
	room.mu.Lock()
	if len(room.clients) != 1 || len(room.senders) != 1 {
		t.Fatalf("maps out of lockstep: %d clients, %d senders",
			len(room.clients), len(room.senders))
	}
	room.mu.Unlock()

	// Removing twice must be harmless.
	room.removeClient("10.0.0.1:1000")
}

func TestEnterOpenRoom(t *testing.T) {
	room := newTestRoom(t, "")
	room.addClient("10.0.0.1:1000")

	room.mu.Lock()
	defer room.mu.Unlock()
	ok, msg := room.enter("10.0.0.1:1000", "alice", nil)
	if !ok || msg != "" {
		t.Fatalf("got ok=%v msg=%q", ok, msg)
	}
}

func TestEnterPassword(t *testing.T) {
	room := newTestRoom(t, "hunter2")
	room.addClient("10.0.0.1:1000")

	room.mu.Lock()
	defer room.mu.Unlock()

	if ok, msg := room.enter("10.0.0.1:1000", "alice", nil); ok || msg != "Password cannot be null" {
		t.Fatalf("nil password: got ok=%v msg=%q", ok, msg)
	}
	if ok, msg := room.enter("10.0.0.1:1000", "alice", strPtr("wrong")); ok || msg != "Incorrect password" {
		t.Fatalf("wrong password: got ok=%v msg=%q", ok, msg)
	}
	if ok, _ := room.enter("10.0.0.1:1000", "alice", strPtr("hunter2")); !ok {
		t.Fatal("correct password rejected")
	}
}

func TestEnterUsernameTaken(t *testing.T) {
	room := newTestRoom(t, "")
	room.addClient("10.0.0.1:1000")
	room.addClient("10.0.0.2:2000")

	room.mu.Lock()
	defer room.mu.Unlock()

	room.client("10.0.0.1:1000").EnterRoom("alice")

	if ok, msg := room.enter("10.0.0.2:2000", "alice", nil); ok || msg != "Username already taken" {
		t.Fatalf("got ok=%v msg=%q", ok, msg)
	}
	// A name held by a non-entered client is free.
	room.client("10.0.0.1:1000").ExitRoom()
	if ok, _ := room.enter("10.0.0.2:2000", "alice", nil); !ok {
		t.Fatal("exited client should free the username")
	}
}

func TestKick(t *testing.T) {
	room := newTestRoom(t, "")
	room.addClient("10.0.0.1:1000")

	room.mu.Lock()
	defer room.mu.Unlock()

	if ok, msg := room.kick("bob"); ok || msg == "" {
		t.Fatalf("kick of unknown user: got ok=%v", ok)
	}

	c := room.client("10.0.0.1:1000")
	c.EnterRoom("bob")
	if ok, _ := room.kick("bob"); !ok {
		t.Fatal("kick failed")
	}
	if c.Entered || c.User != nil {
		t.Fatal("kick must clear entered state and user")
	}
	// The session row survives; only the presence is gone.
	if room.client("10.0.0.1:1000") == nil {
		t.Fatal("kick must not remove the client row")
	}
}

func TestPathTranslation(t *testing.T) {
	room := newTestRoom(t, "")
	room.addClient("10.0.0.1:1000")

	room.mu.Lock()
	defer room.mu.Unlock()

	c := room.client("10.0.0.1:1000")
	c.Path = "/home/alice/proj/"

	abs, ok := room.toRoomPath("10.0.0.1:1000", "/home/alice/proj/src/f.txt")
	if !ok {
		t.Fatal("translation failed")
	}
	if want := room.path + "src/f.txt"; abs != want {
		t.Fatalf("got %q, want %q", abs, want)
	}
	if got := room.noRoomPath(abs); got != "src/f.txt" {
		t.Fatalf("noRoomPath: got %q", got)
	}

	// Outside the client root is an error, not a substring replace.
	if _, ok := room.toRoomPath("10.0.0.1:1000", "/tmp/evil/home/alice/proj/f.txt"); ok {
		t.Fatal("path outside client root must not translate")
	}
}

func TestGetFileCreate(t *testing.T) {
	room := newTestRoom(t, "")
	room.addClient("10.0.0.1:1000")

	room.mu.Lock()
	defer room.mu.Unlock()

	c := room.client("10.0.0.1:1000")
	c.Path = "/home/alice/proj/"

	if f := room.getFile("10.0.0.1:1000", "/home/alice/proj/f.txt"); f != nil {
		t.Fatal("file should not exist yet")
	}

	f := room.getFileCreate("10.0.0.1:1000", "/home/alice/proj/f.txt", strPtr("body"))
	if f == nil {
		t.Fatal("create failed")
	}
	if f.RelPath != "f.txt" {
		t.Fatalf("rel: got %q", f.RelPath)
	}
	if f.Path != room.path+"f.txt" {
		t.Fatalf("abs: got %q", f.Path)
	}
	if got := f.Buffer(); got != "body" {
		t.Fatalf("contents: got %q", got)
	}

	// Second lookup returns the same view.
	if again := room.getFileCreate("10.0.0.1:1000", "/home/alice/proj/f.txt", nil); again != f {
		t.Fatal("expected the existing view")
	}
}

func TestDeleteFileRemovesMapAndDisk(t *testing.T) {
	room := newTestRoom(t, "")
	abs := writeWorkspaceFile(t, room.path, "gone.txt", "x")

	room.mu.Lock()
	defer room.mu.Unlock()
	room.newFileAbs(abs, nil)

	if _, err := room.deleteFile(abs); err != nil {
		t.Fatal(err)
	}
	if _, ok := room.files[abs]; ok {
		t.Fatal("map entry survived delete")
	}
	if _, err := os.Stat(abs); !os.IsNotExist(err) {
		t.Fatal("disk file survived delete")
	}
	if _, err := room.deleteFile(abs); err == nil {
		t.Fatal("second delete should fail")
	}
}

func TestRenameFileUpdatesMapKeyAndStoredPaths(t *testing.T) {
	room := newTestRoom(t, "")
	abs := writeWorkspaceFile(t, room.path, "old.txt", "x")
	newAbs := room.path + "new.txt"

	room.mu.Lock()
	defer room.mu.Unlock()
	room.newFileAbs(abs, nil)

	f, err := room.renameFile(abs, newAbs)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := room.files[abs]; ok {
		t.Fatal("old map key survived rename")
	}
	if room.files[newAbs] != f {
		t.Fatal("new map key missing")
	}
	if f.Path != newAbs || f.RelPath != "new.txt" {
		t.Fatalf("stored paths not updated: %q / %q", f.Path, f.RelPath)
	}
	if _, err := os.Stat(newAbs); err != nil {
		t.Fatalf("disk rename missing: %v", err)
	}

	// Renaming back restores both the map and the disk layout.
	if _, err := room.renameFile(newAbs, abs); err != nil {
		t.Fatal(err)
	}
	if room.files[abs] == nil {
		t.Fatal("round-trip rename lost the map entry")
	}
	if _, err := os.Stat(abs); err != nil {
		t.Fatalf("round-trip rename lost the disk file: %v", err)
	}
}

func TestScanFilesHonorsIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "keep.txt", "k")
	writeWorkspaceFile(t, dir, ".hidden", "h") // hidden files are not skipped
	writeWorkspaceFile(t, dir, "skip.log", "s")
	writeWorkspaceFile(t, dir, filepath.Join("node_modules", "dep.js"), "d")
	writeWorkspaceFile(t, dir, cogruIgnore, "*.log\nnode_modules/\n")

	room := newRoom(testConfig(), dir, "")
	if err := room.scanFiles(); err != nil {
		t.Fatal(err)
	}

	tracked := make(map[string]bool)
	for _, rel := range room.TrackedFiles() {
		tracked[rel] = true
	}

	if !tracked["keep.txt"] {
		t.Fatal("keep.txt missing")
	}
	if !tracked[".hidden"] {
		t.Fatal("hidden files must not be skipped by default")
	}
	if tracked["skip.log"] {
		t.Fatal("*.log should be ignored")
	}
	if tracked["node_modules/dep.js"] {
		t.Fatal("node_modules/ should be ignored")
	}
}

func TestPeersByFile(t *testing.T) {
	room := newTestRoom(t, "")
	room.addClient("10.0.0.1:1")
	room.addClient("10.0.0.2:2")
	room.addClient("10.0.0.3:3")
	room.addClient("10.0.0.4:4")

	room.mu.Lock()
	defer room.mu.Unlock()

	setFile := func(addr, rel string) {
		c := room.client(addr)
		c.EnterRoom("user-" + addr)
		c.User.Path = strPtr(room.path + rel)
	}
	setFile("10.0.0.1:1", "f.txt")
	setFile("10.0.0.2:2", "g.txt")
	setFile("10.0.0.3:3", "f.txt")
	// .4 never enters

	peers := room.peersByFile("f.txt", "10.0.0.1:1")
	if len(peers) != 1 || peers[0].addr != "10.0.0.3:3" {
		t.Fatalf("got %d peers", len(peers))
	}
}

func TestSenderDropsOldestWhenFull(t *testing.T) {
	snd := newSender("10.0.0.1:1")
	for i := 0; i < outboxDepth+10; i++ {
		snd.push("frame")
	}
	if got := snd.dropped.Load(); got != 10 {
		t.Fatalf("dropped: got %d, want 10", got)
	}
	if len(snd.ch) != outboxDepth {
		t.Fatalf("queued: got %d, want %d", len(snd.ch), outboxDepth)
	}
	snd.close()
	snd.push("after close") // must not panic
}

func TestBroadcastHelpers(t *testing.T) {
	room := newTestRoom(t, "")
	a := room.addClient("10.0.0.1:1")
	b := room.addClient("10.0.0.2:2")

	room.mu.Lock()
	room.broadcastJSON(Response{Method: "test"})
	room.broadcastJSONExcept(Response{Method: "test"}, "10.0.0.1:1")
	room.sendJSON("10.0.0.2:2", Response{Method: "test"})
	room.mu.Unlock()

	if len(a.ch) != 1 {
		t.Fatalf("a: got %d frames, want 1", len(a.ch))
	}
	if len(b.ch) != 3 {
		t.Fatalf("b: got %d frames, want 3", len(b.ch))
	}
}
