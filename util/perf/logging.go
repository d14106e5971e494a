package perf

import (
	"fmt"
	"time"

	db "cswitch/debug"
)

var (
	TIME_NOT_SET time.Time = time.Unix(0, 0)
)

// Some convenience functions for logging performance-related data
func LogSpawnLatency(format string, kind string, spawnTime time.Time, opStart time.Time, v ...interface{}) {
	// Bail out early if not logging
	if !db.WillBePrinted(db.WORKER) {
		return
	}
	var sinceSpawn time.Duration
	if spawnTime != TIME_NOT_SET {
		sinceSpawn = time.Since(spawnTime)
	}
	var sinceOpStart time.Duration
	if opStart != TIME_NOT_SET {
		sinceOpStart = time.Since(opStart)
	}
	db.DPrintf(db.WORKER, "[%s] %s op:%v sinceSpawn:%v", kind, fmt.Sprintf(format, v...), sinceOpStart, sinceSpawn)
}
