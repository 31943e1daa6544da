package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RunMetrics logs wire stats every interval until ctx is canceled. Idle
// periods with no clients and no traffic stay quiet.
func RunMetrics(ctx context.Context, room *Room, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			framesIn, framesOut, bytesIn, bytesOut, dropped, clients := room.Stats()
			if clients > 0 || framesIn > 0 || framesOut > 0 {
				logrus.Infof("[metrics] clients=%d in=%d/%dB out=%d/%dB dropped=%d",
					clients, framesIn, bytesIn, framesOut, bytesOut, dropped)
			}
		}
	}
}
