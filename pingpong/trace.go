package pingpong

import (
	"sync"
)

type Top uint8

const (
	OpWrite Top = 'W'
	OpRead  Top = 'R'
)

func (op Top) String() string {
	return string(rune(op))
}

// A Tracer observes every channel operation of one side.
type Tracer interface {
	Record(op Top, b byte)
}

func trace(tr Tracer, op Top, b byte) {
	if tr != nil {
		tr.Record(op, b)
	}
}

type Event struct {
	Seq uint64
	Op  Top
	B   byte
}

// Log is a Tracer that numbers operations with a logical counter instead
// of a clock, so two runs of the same protocol produce identical logs.
type Log struct {
	mu  sync.Mutex
	seq uint64
	evs []Event
}

func NewLog(n int) *Log {
	return &Log{evs: make([]Event, 0, n)}
}

func (l *Log) Record(op Top, b byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evs = append(l.evs, Event{Seq: l.seq, Op: op, B: b})
	l.seq++
}

func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.evs...)
}

// Ops returns the op sequence, e.g. "WRWR".
func (l *Log) Ops() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	buf := make([]byte, len(l.evs))
	for i, e := range l.evs {
		buf[i] = byte(e.Op)
	}
	return string(buf)
}
