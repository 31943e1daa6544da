package main

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

// channel is one client's run loop. The reader goroutine (runChannel
// itself) pulls raw bytes off the socket, extracts whole frames, and
// dispatches them; a writer goroutine drains the client's outbound inbox
// onto the same socket. Handlers never touch the socket directly — every
// reply, including the client's own, rides the inbox, so per-client frame
// order is exactly the order handlers pushed.
type channel struct {
	conn *connection
	room *Room
	dec  frameDecoder
}

// runChannel services one accepted connection until EOF, read error, or
// context cancellation. It registers the session row and inbox on entry
// and removes both on exit.
func runChannel(ctx context.Context, conn *connection, room *Room) {
	ch := &channel{conn: conn, room: room}
	snd := room.addClient(conn.addr)

	defer func() {
		ch.disconnect()
		conn.close()
	}()

	// Writer: drain the inbox until it closes.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range snd.ch {
			if err := conn.writeFrame(msg); err != nil {
				logrus.Warnf("[channel] write to %s: %v", conn.addr, err)
				continue
			}
			room.framesOut.Add(1)
			room.bytesOut.Add(uint64(len(msg)))
		}
	}()

	// Close the socket when the server shuts down so the blocking read
	// below returns.
	stop := context.AfterFunc(ctx, func() { conn.close() })
	defer stop()

	buf := make([]byte, room.prop.BufferSize)
	for {
		n, err := conn.read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logrus.Warnf("[channel] read from %s: %v", conn.addr, err)
			}
			break
		}
		if n == 0 {
			break
		}
		room.bytesIn.Add(uint64(n))

		ch.dec.Feed(buf[:n])
		for {
			payload, ok := ch.dec.Next()
			if !ok {
				break
			}
			room.framesIn.Add(1)
			dispatch(ch, payload)
		}
	}

	// Unblock the writer before waiting for it.
	snd.close()
	<-writerDone
}

// disconnect removes this peer from both room maps. Idempotent.
func (ch *channel) disconnect() {
	ch.room.removeClient(ch.conn.addr)
}

// addr returns the peer address this channel serves.
func (ch *channel) addr() string {
	return ch.conn.addr
}

// send enqueues a reply frame to this channel's own client.
func (ch *channel) send(v any) {
	ch.room.mu.Lock()
	defer ch.room.mu.Unlock()
	ch.room.sendJSON(ch.conn.addr, v)
}

// sendLocked is send for callers already holding the room lock.
func (ch *channel) sendLocked(v any) {
	ch.room.sendJSON(ch.conn.addr, v)
}
