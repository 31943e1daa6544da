package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// handleBufferUpdate is the central edit path. Under one lock acquisition
// it (1) computes the signed delta, (2) predict-shifts every other entered
// client's cursor and region in the same file, (3) mutates the rope, and
// (4) fans the edit out to peers visiting the same file. Holding the lock
// across all four steps is what makes prediction observe a consistent
// snapshot of every cursor.
func handleBufferUpdate(ch *channel, req *Request) {
	const method = "buffer::update"

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
	if req.AddOrDelete == nil {
		missingField(ch, method, "add_or_delete")
		return
	}
	if req.Beg == nil {
		missingField(ch, method, "beg")
		return
	}
	if req.End == nil {
		missingField(ch, method, "end")
		return
	}
	if req.Contents == nil {
		missingField(ch, method, "contents")
		return
	}

	op := *req.AddOrDelete
	if op != opAdd && op != opDelete {
		logrus.Errorf("[handler] %s: bad add_or_delete %q from %s", method, op, ch.addr())
		return
	}

	beg, end := *req.Beg, *req.End

	var delta int
	if op == opDelete {
		delta = beg - end
	} else {
		delta = end - beg
	}
	if delta == 0 {
		return // nothing changed: no rope touch, no prediction, no fan-out
	}

	f := room.getFileCreate(ch.addr(), *req.Path, nil)
	if f == nil {
		generalError(ch, method,
			fmt.Sprintf("The file is not under the project path: %s", *req.Path))
		return
	}

	// Predict remote cursor movement before mutating the rope. Cursors at
	// or after the edit anchor shift by the delta; cursors strictly before
	// it stay put. Only clients visiting the same file move.
	predictShift(room, ch.addr(), f.RelPath, beg, delta)

	f.Update(op, beg, end, *req.Contents)

	frame := Response{
		Method:      method,
		Username:    c.User.Username,
		File:        f.RelPath,
		AddOrDelete: op,
		Beg:         intPtr(beg),
		End:         intPtr(end),
		Contents:    req.Contents,
		Status:      stSuccess,
	}
	msg, ok := marshalFrame(frame)
	if !ok {
		return
	}
	for _, snd := range room.peersByFile(f.RelPath, ch.addr()) {
		snd.push(msg)
	}
}

// predictShift applies the signed edit delta to every other entered
// client whose cursor sits in rel at or after the anchor. Caller holds
// the room lock.
func predictShift(room *Room, editorAddr, rel string, anchor, delta int) {
	for addr, other := range room.clients {
		if addr == editorAddr || !other.Entered {
			continue
		}
		u := other.User
		if u.Point == nil || room.relOfUser(u) != rel {
			continue
		}
		if anchor <= *u.Point {
			u.Shift(delta)
		}
	}
}

// handleBufferSync returns the rope view — the authoritative content,
// which may be ahead of the on-disk copy.
func handleBufferSync(ch *channel, req *Request) {
	const method = "buffer::sync"

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

	ch.sendLocked(Response{
		Method:   method,
		File:     *req.File, // send it back as received
		Contents: strPtr(f.Buffer()),
		Status:   stSuccess,
	})
}

// handleBufferSave persists the rope to disk. The rope is authoritative:
// the request's contents only seed a file that was never opened.
func handleBufferSave(ch *channel, req *Request) {
	const method = "buffer::save"

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
