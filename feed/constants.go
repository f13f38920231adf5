package feed

import "time"

const (
	FlagPose    = 1
	FlagWarning = 2
	FlagSummary = 4
)

const (
	queueDepth     = 1000
	dialTimeout    = 2 * time.Second
	writeTimeout   = 5 * time.Second
	reconnectDelay = 500 * time.Millisecond
)
