// Package pingpong implements the two sides of the ping-pong protocol.
// The pinger writes first and verifies every echo; the ponger reads
// first and echoes what it read. Each iteration is one blocking handoff
// in each direction.
package pingpong

import (
	"errors"
	"fmt"

	db "cswitch/debug"
)

var ErrEcho = errors.New("echo mismatch")

// Conn is one side of a byte channel.
type Conn interface {
	Send(b byte) error
	Recv() (byte, error)
}

// Counts is what one side did during a phase.
type Counts struct {
	Writes      uint64
	Reads       uint64
	Voluntary   int64 // OS-reported voluntary switches of this side
	Involuntary int64
}

func (c Counts) String() string {
	return fmt.Sprintf("{w %d r %d vcsw %d ivcsw %d}", c.Writes, c.Reads, c.Voluntary, c.Involuntary)
}

// Complete reports whether both directions saw exactly n transfers.
func (c Counts) Complete(n int) bool {
	return c.Writes == uint64(n) && c.Reads == uint64(n)
}

// Ping runs n iterations of send-then-recv. In iteration i it sends
// byte(i) and expects the same byte back.
func Ping(conn Conn, n int, tr Tracer) (Counts, error) {
	var c Counts
	for i := 0; i < n; i++ {
		b := byte(i)
		if err := conn.Send(b); err != nil {
			return c, fmt.Errorf("ping %d: %w", i, err)
		}
		c.Writes++
		trace(tr, OpWrite, b)
		e, err := conn.Recv()
		if err != nil {
			return c, fmt.Errorf("ping %d: %w", i, err)
		}
		c.Reads++
		trace(tr, OpRead, e)
		if e != b {
			return c, fmt.Errorf("%w: iteration %d sent %d got %d", ErrEcho, i, b, e)
		}
	}
	db.DPrintf(db.PINGPONG, "Ping done %v", c)
	return c, nil
}

// Pong runs n iterations of recv-then-send, echoing each byte.
func Pong(conn Conn, n int, tr Tracer) (Counts, error) {
	var c Counts
	for i := 0; i < n; i++ {
		b, err := conn.Recv()
		if err != nil {
			return c, fmt.Errorf("pong %d: %w", i, err)
		}
		c.Reads++
		trace(tr, OpRead, b)
		if err := conn.Send(b); err != nil {
			return c, fmt.Errorf("pong %d: %w", i, err)
		}
		c.Writes++
		trace(tr, OpWrite, b)
	}
	db.DPrintf(db.PINGPONG, "Pong done %v", c)
	return c, nil
}
