package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// dispatch parses one decoded frame and routes it to its method handler.
// The payload is parsed into the typed Request exactly once; handlers only
// check field presence. Unknown methods and invalid JSON are logged and
// dropped — a bad frame never closes the connection.
func dispatch(ch *channel, payload []byte) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		logrus.Errorf("[handler] invalid JSON from %s: %v", ch.addr(), err)
		return
	}

	logrus.Debugf("[handler] %s <- %s", req.Method, ch.addr())

	switch req.Method {
	case "init":
		handleInit(ch, &req)
	case "ping":
		handlePing(ch, &req)
	case "test":
		handleTest(ch, &req)
	case "room::enter":
		handleRoomEnter(ch, &req)
	case "room::exit":
		handleRoomExit(ch, &req)
	case "room::kick":
		handleRoomKick(ch, &req)
	case "room::broadcast":
		handleRoomBroadcast(ch, &req)
	case "room::info":
		handleRoomInfo(ch, &req)
	case "room::sync":
		handleRoomSync(ch, &req)
	case "room::update_client":
		handleRoomUpdateClient(ch, &req)
	case "room::add_file":
		handleRoomAddFile(ch, &req)
	case "room::delete_file":
		handleRoomDeleteFile(ch, &req)
	case "room::rename_file":
		handleRoomRenameFile(ch, &req)
	case "room::find_user":
		handleRoomFindUser(ch, &req)
	case "file::sync":
		handleFileSync(ch, &req)
	case "file::info":
		handleFileInfo(ch, &req)
	case "file::say":
		handleFileSay(ch, &req)
	case "buffer::update":
		handleBufferUpdate(ch, &req)
	case "buffer::sync":
		handleBufferSync(ch, &req)
	case "buffer::save":
		handleBufferSave(ch, &req)
	default:
		logrus.Errorf("[handler] unknown method %q from %s", req.Method, ch.addr())
	}
}

// generalError emits a failure frame for method to the caller. Caller
// holds the room lock.
func generalError(ch *channel, method, msg string) {
	ch.sendLocked(Response{
		Method:  method,
		Message: msg,
		Status:  stFailure,
	})
}

// missingField emits the standard failure for an absent required field.
// Caller holds the room lock.
func missingField(ch *channel, method, key string) {
	generalError(ch, method, fmt.Sprintf("Required field `%s` cannot be null", key))
}

// checkEntered verifies the caller has entered the room, emitting the
// standard failure otherwise. Caller holds the room lock.
func checkEntered(ch *channel, c *Client, method string) bool {
	if c != nil && c.Entered {
		return true
	}
	generalError(ch, method, "You haven't entered the room yet")
	return false
}

// checkAdmin verifies the caller holds admin privileges. Caller holds the
// room lock.
func checkAdmin(ch *channel, c *Client, method string) bool {
	if c.Admin {
		return true
	}
	generalError(ch, method, "You are not the admin; only admin can operate this action")
	return false
}

// handleInit registers the caller's workspace root. Admin is granted when
// the peer connects from the configured local host.
func handleInit(ch *channel, req *Request) {
	const method = "init"

	if req.Path == nil {
		ch.room.mu.Lock()
		defer ch.room.mu.Unlock()
		missingField(ch, method, "path")
		return
	}

	room := ch.room
	room.mu.Lock()
	defer room.mu.Unlock()

	c := room.client(ch.addr())
	if c == nil {
		return
	}
	c.Path = ensureTrailingSlash(toSlash(*req.Path))
	c.Admin = peerHost(ch.addr()) == room.prop.Host

	logrus.Infof("[handler] init %s path=%s admin=%v", ch.addr(), c.Path, c.Admin)

	ch.sendLocked(Response{
		Method:  method,
		Message: fmt.Sprintf("Client `%s` initialized", ch.addr()),
		IsAdmin: boolPtr(c.Admin),
		Status:  stSuccess,
	})
}

// handlePing answers pong with a local timestamp.
func handlePing(ch *channel, _ *Request) {
	ch.send(Response{
		Method:    "pong",
		Timestamp: time.Now().Format(timestampFormat),
	})
}

// handleTest echoes to the caller and broadcasts a test frame to everyone.
func handleTest(ch *channel, _ *Request) {
	const method = "test"

	room := ch.room
	room.mu.Lock()
	defer room.mu.Unlock()

	ch.sendLocked(Response{
		Method:  method,
		Message: "echo",
		Status:  stSuccess,
	})
	room.broadcastJSON(Response{
		Method:  method,
		Message: fmt.Sprintf("test frame from %s", ch.addr()),
	})
}
