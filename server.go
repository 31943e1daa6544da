package main

import (
	"context"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
)

// Server accepts TCP connections and hands each one its own channel
// goroutine. The accept loop never blocks on a client.
type Server struct {
	host string
	port int
	room *Room
}

func NewServer(host string, port int, room *Room) *Server {
	return &Server{host: host, port: port, room: room}
}

// Addr returns the host:port the server binds to.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// Run listens and serves until ctx is canceled. Each accepted connection
// gets one concurrent session task sharing the room.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr(), err)
	}
	logrus.Infof("[server] listening on %s", s.Addr())

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		c := newConnection(conn)
		logrus.Infof("[server] new connection from %s", c)
		go runChannel(ctx, c, s.room)
	}
}

// peerHost extracts the IP portion of a peer address. Admin is granted
// when it equals the configured local host.
func peerHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
