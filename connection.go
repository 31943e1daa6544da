package main

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// connection owns one TCP socket and its peer address. Reads are raw byte
// chunks (framing happens in the channel's decoder); writes are whole
// frames, serialized under a mutex so a response never interleaves with a
// broadcast on the same socket.
type connection struct {
	conn net.Conn
	addr string

	wmu sync.Mutex
}

func newConnection(conn net.Conn) *connection {
	return &connection{
		conn: conn,
		addr: conn.RemoteAddr().String(),
	}
}

// read fills p with the next chunk of raw bytes from the socket.
func (c *connection) read(p []byte) (int, error) {
	return c.conn.Read(p)
}

// writeFrame wraps an already-serialized JSON payload in a Content-Length
// header and writes it to the socket.
func (c *connection) writeFrame(payload string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.conn.Write(encodeFrame([]byte(payload)))
	return err
}

func (c *connection) close() {
	if err := c.conn.Close(); err != nil {
		logrus.Debugf("[connection] close %s: %v", c.addr, err)
	}
}

// String returns the peer address.
func (c *connection) String() string {
	return c.addr
}
