package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// handleFileSync returns the on-disk contents of one file — what the last
// save produced, which can trail the rope view.
func handleFileSync(ch *channel, req *Request) {
	const method = "file::sync"

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

	f := room.getFile(ch.addr(), *req.File)
	if f == nil {
		generalError(ch, method,
			fmt.Sprintf("File not found in the room: %s", *req.File))
		return
	}

	contents, err := f.ReadDisk()
	if err != nil {
		logrus.Warnf("[handler] %s: %v", method, err)
		generalError(ch, method, fmt.Sprintf("Fail to read file: %s", f.RelPath))
		return
	}

	ch.sendLocked(Response{
		Method:   method,
		File:     *req.File,
		Contents: strPtr(contents),
		Status:   stSuccess,
	})
}

// handleFileInfo lists the other entered users currently visiting the
// requested file. The caller is never part of its own answer.
func handleFileInfo(ch *channel, req *Request) {
	const method = "file::info"

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

	rel, ok := noClientPath(c, *req.File)
	if !ok {
		generalError(ch, method,
			fmt.Sprintf("The file is not under the project path: %s", *req.File))
		return
	}

	var users []User
	for addr, other := range room.clients {
		if addr == ch.addr() || !other.Entered {
			continue
		}
		if room.relOfUser(other.User) != rel {
			continue
		}
		users = append(users, room.userSnapshot(other.User))
	}

	ch.sendLocked(Response{
		Method:  method,
		File:    rel,
		Clients: users,
		Status:  stSuccess,
	})
}

// handleFileSay appends to the file's chat log and fans the message out to
// every entered client visiting that file, the speaker included.
func handleFileSay(ch *channel, req *Request) {
	const method = "file::say"

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
	if req.Message == nil {
		missingField(ch, method, "message")
		return
	}

	f := room.getFile(ch.addr(), *req.File)
	if f == nil {
		generalError(ch, method,
			fmt.Sprintf("File not found in the room: %s", *req.File))
		return
	}

	username := c.User.Username
	f.Chat().Add(username, *req.Message)

	frame := Response{
		Method:   method,
		File:     f.RelPath,
		Username: username,
		Message:  *req.Message,
		Status:   stSuccess,
	}
	msg, ok := marshalFrame(frame)
	if !ok {
		return
	}
	for _, snd := range room.peersByFile(f.RelPath, "") {
		snd.push(msg)
	}
}
