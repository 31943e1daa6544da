package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

func handleRoomEnter(ch *channel, req *Request) {
	const method = "room::enter"

	room := ch.room
	room.mu.Lock()
	defer room.mu.Unlock()

	c := room.client(ch.addr())
	if c == nil {
		return
	}
	if c.Entered {
		generalError(ch, method, "You have already entered the room")
		return
	}
	if req.Username == nil {
		missingField(ch, method, "username")
		return
	}

	username := *req.Username
	ok, msg := room.enter(ch.addr(), username, req.Password)
	if !ok {
		generalError(ch, method, msg)
		return
	}

	c.EnterRoom(username)
	logrus.Infof("[handler] %s entered as %q", ch.addr(), username)

	room.broadcastJSON(Response{
		Method:   method,
		Message:  fmt.Sprintf("%s has entered the room", username),
		Username: username,
		Status:   stSuccess,
	})
}

func handleRoomExit(ch *channel, _ *Request) {
	const method = "room::exit"

	room := ch.room
	room.mu.Lock()
	defer room.mu.Unlock()

	c := room.client(ch.addr())
	if c == nil {
		return
	}
	if !c.Entered {
		generalError(ch, method, "You never entered the room; do nothing")
		return
	}

	username := c.User.Username
	c.ExitRoom()
	logrus.Infof("[handler] %s exited (%q)", ch.addr(), username)

	room.broadcastJSON(Response{
		Method:   method,
		Message:  fmt.Sprintf("%s has left the room", username),
		Username: username,
		Status:   stSuccess,
	})
}

func handleRoomKick(ch *channel, req *Request) {
	const method = "room::kick"

	room := ch.room
	room.mu.Lock()
	defer room.mu.Unlock()

	c := room.client(ch.addr())
	if !checkEntered(ch, c, method) || !checkAdmin(ch, c, method) {
		return
	}
	if req.Username == nil {
		missingField(ch, method, "username")
		return
	}

	adminName := c.User.Username
	target := *req.Username

	kicked, msg := room.kick(target)
	if !kicked {
		ch.sendLocked(Response{
			Method:   method,
			Username: target,
			Message:  msg,
			Status:   stFailure,
		})
		return
	}

	logrus.Infof("[handler] %q kicked by %q", target, adminName)
	room.broadcastJSON(Response{
		Method:    method,
		Username:  target,
		AdminName: adminName,
		Message:   fmt.Sprintf("%s has been kicked out by %s", target, adminName),
		Status:    stSuccess,
	})
}

func handleRoomBroadcast(ch *channel, req *Request) {
	const method = "room::broadcast"

	room := ch.room
	room.mu.Lock()
	defer room.mu.Unlock()

	c := room.client(ch.addr())
	if !checkEntered(ch, c, method) {
		return
	}
	if req.Message == nil {
		missingField(ch, method, "message")
		return
	}

	username := c.User.Username
	room.chat.Add(username, *req.Message)

	room.broadcastJSON(Response{
		Method:   method,
		Username: username,
		Message:  *req.Message,
		Status:   stSuccess,
	})
}

func handleRoomInfo(ch *channel, _ *Request) {
	const method = "room::info"

	room := ch.room
	room.mu.Lock()
	defer room.mu.Unlock()

	c := room.client(ch.addr())
	if !checkEntered(ch, c, method) {
		return
	}

	var users []User
	for _, other := range room.clients {
		if other.Entered {
			users = append(users, room.userSnapshot(other.User))
		}
	}

	ch.sendLocked(Response{
		Method:  method,
		Clients: users,
		Status:  stSuccess,
	})
}

// handleRoomSync streams one success frame per tracked file, with each
// path translated into the caller's own namespace.
func handleRoomSync(ch *channel, req *Request) {
	const method = "room::sync"

	room := ch.room
	room.mu.Lock()
	defer room.mu.Unlock()

	c := room.client(ch.addr())
	if !checkEntered(ch, c, method) {
		return
	}
	if req.Path == nil {
		missingField(ch, method, "path")
		return
	}

	clientRoot := *req.Path
	for _, abs := range room.pathFiles() {
		f := room.files[abs]
		contents, err := f.ReadDisk()
		if err != nil {
			logrus.Warnf("[handler] room::sync skip %s: %v", abs, err)
			continue
		}
		ch.sendLocked(Response{
			Method:   method,
			File:     toClientPath(clientRoot, f.RelPath),
			Contents: strPtr(contents),
			Status:   stSuccess,
		})
	}
}

// handleRoomUpdateClient replaces the caller's presence wholesale: absent
// fields clear, which is how a client drops its selection.
func handleRoomUpdateClient(ch *channel, req *Request) {
	const method = "room::update_client"

	room := ch.room
	room.mu.Lock()
	defer room.mu.Unlock()

	c := room.client(ch.addr())
	if !checkEntered(ch, c, method) {
		return
	}

	if (req.RegionBeg == nil) != (req.RegionEnd == nil) {
		generalError(ch, method, "Region endpoints must be set together")
		return
	}
	if req.RegionBeg != nil && *req.RegionBeg > *req.RegionEnd {
		generalError(ch, method, "Region beginning cannot exceed region end")
		return
	}

	var absPath *string
	if req.Path != nil {
		abs, ok := room.toRoomPath(ch.addr(), *req.Path)
		if !ok {
			generalError(ch, method,
				fmt.Sprintf("The file is not under the project path: %s", *req.Path))
			return
		}
		absPath = strPtr(abs)
	}

	username := c.User.Username
	c.User = &User{
		Username:    username,
		Path:        absPath,
		Point:       req.Point,
		RegionBeg:   req.RegionBeg,
		RegionEnd:   req.RegionEnd,
		ColorCursor: req.ColorCursor,
		ColorRegion: req.ColorRegion,
	}
}

func handleRoomAddFile(ch *channel, req *Request) {
	const method = "room::add_file"

	room := ch.room
	room.mu.Lock()
	defer room.mu.Unlock()

	c := room.client(ch.addr())
	if !checkEntered(ch, c, method) {
		return
	}
	if req.File == nil {
		missingField(ch, method, "file")
		return
	}
	if req.Contents == nil {
		missingField(ch, method, "contents")
		return
	}

	rel, ok := noClientPath(c, *req.File)
	if !ok {
		generalError(ch, method,
			fmt.Sprintf("The file is not under the project path: %s", *req.File))
		return
	}

	// Already tracked: nothing to create or announce.
	if room.getFile(ch.addr(), *req.File) != nil {
		return
	}

	f := room.getFileCreate(ch.addr(), *req.File, req.Contents)
	if err := f.Save(); err != nil {
		logrus.Errorf("[handler] %s: %v", method, err)
		generalError(ch, method, fmt.Sprintf("Fail to save file: %s", rel))
		return
	}

	room.broadcastJSONExcept(Response{
		Method:   method,
		File:     rel,
		Contents: strPtr(f.Buffer()),
		Status:   stSuccess,
	}, ch.addr())
}

func handleRoomDeleteFile(ch *channel, req *Request) {
	const method = "room::delete_file"

	room := ch.room
	room.mu.Lock()
	defer room.mu.Unlock()

	c := room.client(ch.addr())
	if !checkEntered(ch, c, method) {
		return
	}
	if req.File == nil {
		missingField(ch, method, "file")
		return
	}

	abs, ok := room.toRoomPath(ch.addr(), *req.File)
	if !ok {
		generalError(ch, method,
			fmt.Sprintf("The file is not under the project path: %s", *req.File))
		return
	}

	f, err := room.deleteFile(abs)
	if err != nil {
		logrus.Warnf("[handler] %s: %v", method, err)
		generalError(ch, method,
			fmt.Sprintf("Fail to delete file, doesn't exists: %s", *req.File))
		return
	}

	room.broadcastJSON(Response{
		Method: method,
		File:   f.RelPath,
		Status: stSuccess,
	})
}

func handleRoomRenameFile(ch *channel, req *Request) {
	const method = "room::rename_file"

	room := ch.room
	room.mu.Lock()
	defer room.mu.Unlock()

	c := room.client(ch.addr())
	if !checkEntered(ch, c, method) {
		return
	}
	if req.File == nil {
		missingField(ch, method, "file")
		return
	}
	if req.NewName == nil {
		missingField(ch, method, "newname")
		return
	}

	abs, okOld := room.toRoomPath(ch.addr(), *req.File)
	newAbs, okNew := room.toRoomPath(ch.addr(), *req.NewName)
	if !okOld || !okNew {
		generalError(ch, method,
			fmt.Sprintf("The file is not under the project path: %s", *req.File))
		return
	}

	f, err := room.renameFile(abs, newAbs)
	if err != nil {
		logrus.Warnf("[handler] %s: %v", method, err)
		generalError(ch, method,
			fmt.Sprintf("Fail to rename file, doesn't exists: %s", *req.File))
		return
	}

	room.broadcastJSON(Response{
		Method:  method,
		File:    room.noRoomPath(abs),
		NewName: f.RelPath,
		Status:  stSuccess,
	})
}

func handleRoomFindUser(ch *channel, req *Request) {
	const method = "room::find_user"

	room := ch.room
	room.mu.Lock()
	defer room.mu.Unlock()

	c := room.client(ch.addr())
	if !checkEntered(ch, c, method) {
		return
	}
	if req.Username == nil {
		missingField(ch, method, "username")
		return
	}

	_, target := room.clientByName(*req.Username)
	if target == nil {
		generalError(ch, method, "Client not found in the room")
		return
	}
	if target.User.Path == nil || target.User.Point == nil {
		generalError(ch, method,
			fmt.Sprintf("User `%s` is not in any file", *req.Username))
		return
	}

	ch.sendLocked(Response{
		Method:   method,
		Username: *req.Username,
		File:     room.relOfUser(target.User),
		Point:    intPtr(*target.User.Point),
		Status:   stSuccess,
	})
}
