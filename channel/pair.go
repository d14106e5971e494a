package channel

import (
	"fmt"

	"golang.org/x/sys/unix"

	db "cswitch/debug"
)

// A Pair is a bidirectional channel between a primary and a secondary
// worker, built from two pipes:
//
//	primary.w -> fwd -> secondary.r
//	secondary.w -> rev -> primary.r
type Pair struct {
	name      string
	primary   *Endpoint
	secondary *Endpoint
}

func pipe() ([2]int, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return fds, err
	}
	return fds, nil
}

// Open creates both pipes. If the second pipe cannot be created, the
// first is released before returning.
func Open(name string) (*Pair, error) {
	fwd, err := pipe()
	if err != nil {
		db.DPrintf(db.CHANNEL_ERR, "Open %v fwd err %v", name, err)
		return nil, fmt.Errorf("open %v: pipe: %w", name, err)
	}
	rev, err := pipe()
	if err != nil {
		unix.Close(fwd[0])
		unix.Close(fwd[1])
		db.DPrintf(db.CHANNEL_ERR, "Open %v rev err %v", name, err)
		return nil, fmt.Errorf("open %v: pipe: %w", name, err)
	}
	p := &Pair{
		name:      name,
		primary:   NewEndpoint(name+"-primary", rev[0], fwd[1]),
		secondary: NewEndpoint(name+"-secondary", fwd[0], rev[1]),
	}
	db.DPrintf(db.CHANNEL, "Open %v primary %v secondary %v", name, p.primary, p.secondary)
	return p, nil
}

func (p *Pair) String() string {
	return fmt.Sprintf("{%v %v %v}", p.name, p.primary, p.secondary)
}

func (p *Pair) Primary() *Endpoint {
	return p.primary
}

func (p *Pair) Secondary() *Endpoint {
	return p.secondary
}

func (p *Pair) Closed() bool {
	return p.primary.Closed() && p.secondary.Closed()
}

// Close releases whatever descriptors the two endpoints still own.
func (p *Pair) Close() error {
	err := p.primary.Close()
	if r := p.secondary.Close(); err == nil {
		err = r
	}
	return err
}
