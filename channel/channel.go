// Package channel implements the byte conduit the two sides of a
// ping-pong exchange talk over: two unidirectional pipes, one per
// direction, with blocking descriptors so that a reader blocks its OS
// thread in the kernel instead of parking in the Go netpoller.
package channel

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	db "cswitch/debug"
)

var (
	ErrShortTransfer = errors.New("short transfer")
	ErrClosed        = errors.New("endpoint closed")
)

const NOFD = -1

// An Endpoint is one side of a channel: the read end of the pipe its peer
// writes and the write end of the pipe its peer reads. It is owned by
// exactly one worker.
type Endpoint struct {
	mu   sync.Mutex
	name string
	rfd  int
	wfd  int
	buf  [1]byte
}

func NewEndpoint(name string, rfd, wfd int) *Endpoint {
	return &Endpoint{name: name, rfd: rfd, wfd: wfd}
}

func (ep *Endpoint) String() string {
	return fmt.Sprintf("{%v r %d w %d}", ep.name, ep.rfd, ep.wfd)
}

func (ep *Endpoint) Name() string {
	return ep.name
}

// Send writes exactly one byte. Anything other than one byte written is a
// protocol violation.
func (ep *Endpoint) Send(b byte) error {
	if ep.wfd == NOFD {
		return fmt.Errorf("send %v: %w", ep.name, ErrClosed)
	}
	ep.buf[0] = b
	for {
		n, err := unix.Write(ep.wfd, ep.buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: write %v: %w", ErrShortTransfer, ep.name, err)
		}
		if n != 1 {
			return fmt.Errorf("%w: write %v %d bytes", ErrShortTransfer, ep.name, n)
		}
		return nil
	}
}

// Recv blocks until one byte arrives. End-of-file means the peer closed
// its side and is reported as a short transfer.
func (ep *Endpoint) Recv() (byte, error) {
	if ep.rfd == NOFD {
		return 0, fmt.Errorf("recv %v: %w", ep.name, ErrClosed)
	}
	for {
		n, err := unix.Read(ep.rfd, ep.buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("%w: read %v: %w", ErrShortTransfer, ep.name, err)
		}
		if n != 1 {
			return 0, fmt.Errorf("%w: read %v %d bytes", ErrShortTransfer, ep.name, n)
		}
		return ep.buf[0], nil
	}
}

// Files hands the descriptors over to *os.File wrappers, e.g. to pass
// them to a child process. The endpoint no longer owns them afterwards;
// the caller must close the files.
func (ep *Endpoint) Files() (*os.File, *os.File, error) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.rfd == NOFD || ep.wfd == NOFD {
		return nil, nil, fmt.Errorf("files %v: %w", ep.name, ErrClosed)
	}
	r := os.NewFile(uintptr(ep.rfd), ep.name+"-r")
	w := os.NewFile(uintptr(ep.wfd), ep.name+"-w")
	ep.rfd = NOFD
	ep.wfd = NOFD
	return r, w, nil
}

func (ep *Endpoint) Closed() bool {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.rfd == NOFD && ep.wfd == NOFD
}

// Close releases both descriptors. Closing twice is a no-op.
func (ep *Endpoint) Close() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	var err error
	for _, fd := range []*int{&ep.rfd, &ep.wfd} {
		if *fd == NOFD {
			continue
		}
		if r := unix.Close(*fd); r != nil && err == nil {
			err = fmt.Errorf("close %v fd %d: %w", ep.name, *fd, r)
		}
		*fd = NOFD
	}
	db.DPrintf(db.CHANNEL, "Close %v err %v", ep.name, err)
	return err
}
