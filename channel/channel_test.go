package channel_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"cswitch/channel"
)

func TestCompile(t *testing.T) {
}

func TestSendRecv(t *testing.T) {
	p, err := channel.Open("test")
	require.Nil(t, err)
	defer p.Close()

	// Each pipe buffers, so one goroutine can drive both directions.
	for i := 0; i < 256; i++ {
		require.Nil(t, p.Primary().Send(byte(i)))
		b, err := p.Secondary().Recv()
		require.Nil(t, err)
		assert.Equal(t, byte(i), b)

		require.Nil(t, p.Secondary().Send(b+1))
		b, err = p.Primary().Recv()
		require.Nil(t, err)
		assert.Equal(t, byte(i+1), b)
	}
}

func TestDirections(t *testing.T) {
	p, err := channel.Open("test")
	require.Nil(t, err)
	defer p.Close()

	// A side never reads back its own byte.
	require.Nil(t, p.Primary().Send('x'))
	require.Nil(t, p.Secondary().Send('y'))
	b, err := p.Primary().Recv()
	require.Nil(t, err)
	assert.Equal(t, byte('y'), b)
	b, err = p.Secondary().Recv()
	require.Nil(t, err)
	assert.Equal(t, byte('x'), b)
}

func TestPeerClosed(t *testing.T) {
	p, err := channel.Open("test")
	require.Nil(t, err)
	defer p.Close()

	require.Nil(t, p.Secondary().Close())
	_, err = p.Primary().Recv()
	assert.ErrorIs(t, err, channel.ErrShortTransfer)
	err = p.Primary().Send('x')
	assert.ErrorIs(t, err, channel.ErrShortTransfer)
	assert.ErrorIs(t, err, unix.EPIPE)
}

func TestClose(t *testing.T) {
	p, err := channel.Open("test")
	require.Nil(t, err)
	assert.False(t, p.Closed())
	assert.Nil(t, p.Close())
	assert.True(t, p.Closed())
	assert.Nil(t, p.Close(), "second close")

	assert.ErrorIs(t, p.Primary().Send('x'), channel.ErrClosed)
	_, err = p.Secondary().Recv()
	assert.ErrorIs(t, err, channel.ErrClosed)
}

func TestFiles(t *testing.T) {
	p, err := channel.Open("test")
	require.Nil(t, err)
	defer p.Close()

	r, w, err := p.Secondary().Files()
	require.Nil(t, err)
	assert.True(t, p.Secondary().Closed())

	require.Nil(t, p.Primary().Send('z'))
	buf := make([]byte, 1)
	n, err := r.Read(buf)
	assert.Nil(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte('z'), buf[0])

	n, err = w.Write([]byte{'q'})
	assert.Nil(t, err)
	assert.Equal(t, 1, n)
	b, err := p.Primary().Recv()
	assert.Nil(t, err)
	assert.Equal(t, byte('q'), b)

	assert.Nil(t, r.Close())
	assert.Nil(t, w.Close())
	_, _, err = p.Secondary().Files()
	assert.ErrorIs(t, err, channel.ErrClosed)
}

func nfds(t *testing.T) int {
	ents, err := os.ReadDir("/proc/self/fd")
	require.Nil(t, err)
	return len(ents)
}

func TestNoLeak(t *testing.T) {
	n0 := nfds(t)
	for i := 0; i < 100; i++ {
		p, err := channel.Open("test")
		require.Nil(t, err)
		require.Nil(t, p.Close())
	}
	assert.Equal(t, n0, nfds(t))
}

func TestOpenExhausted(t *testing.T) {
	var rlim unix.Rlimit
	require.Nil(t, unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim))
	n0 := nfds(t)

	// No descriptor can be allocated with a soft limit of zero.
	lim := rlim
	lim.Cur = 0
	require.Nil(t, unix.Setrlimit(unix.RLIMIT_NOFILE, &lim))
	p, err := channel.Open("test")
	require.Nil(t, unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim))

	assert.Nil(t, p)
	assert.ErrorIs(t, err, unix.EMFILE)
	assert.Equal(t, n0, nfds(t))
}
