package debug

type Tselector string

// ALWAYS
const (
	ALWAYS Tselector = "ALWAYS"
	ERROR  Tselector = "ERROR"
	NEVER  Tselector = "NEVER"
)

// ERR
const (
	ERR Tselector = "_ERR"
)

// Benchmarks
const (
	BENCH     Tselector = "BENCH"
	BENCH_ERR Tselector = BENCH + ERR
	TRIAL     Tselector = "TRIAL"
	SWITCHES  Tselector = "SWITCHES"
)

// Channel and protocol
const (
	CHANNEL     Tselector = "CHANNEL"
	CHANNEL_ERR Tselector = CHANNEL + ERR
	PINGPONG    Tselector = "PINGPONG"
)

// Workers
const (
	WORKER     Tselector = "WORKER"
	WORKER_ERR Tselector = WORKER + ERR
	CHILD      Tselector = "CHILD"
	AFFINITY   Tselector = "AFFINITY"
)

// Tests
const (
	TEST   Tselector = "TEST"
	CONFIG Tselector = "CONFIG"
	PERF   Tselector = "PERF"
)
