package lease

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestPool(t *testing.T, size int) *Pool {
	p, err := NewPool(net.ParseIP("192.168.1.1"), size)
	require.NoError(t, err)
	return p
}

func Test_Pool_Allocate(t *testing.T) {
	p := getTestPool(t, 3)

	for i := 1; i <= 3; i++ {
		ip, ok := p.Allocate()
		require.True(t, ok)
		assert.Equal(t, net.IPv4(192, 168, 1, byte(i)).To4(), ip)
	}

	assert.True(t, p.IsFull())
	assert.Equal(t, 3, p.Allocated())

	ip, ok := p.Allocate()
	assert.False(t, ok)
	assert.Nil(t, ip)
}

func Test_Pool_Release(t *testing.T) {
	p := getTestPool(t, 3)

	for i := 0; i < 3; i++ {
		_, ok := p.Allocate()
		require.True(t, ok)
	}

	p.Release(net.ParseIP("192.168.1.2"))
	assert.False(t, p.IsFull())
	assert.False(t, p.isAllocated(net.ParseIP("192.168.1.2")))
	assert.True(t, p.isAllocated(net.ParseIP("192.168.1.3")))

	// the lowest free address must be picked again
	ip, ok := p.Allocate()
	require.True(t, ok)
	assert.Equal(t, "192.168.1.2", ip.String())
}

func Test_Pool_Release_ignores_unknown_addresses(t *testing.T) {
	p := getTestPool(t, 2)
	_, ok := p.Allocate()
	require.True(t, ok)

	p.Release(nil)
	p.Release(net.ParseIP("10.0.0.1"))
	p.Release(net.ParseIP("::1"))
	p.Release(net.ParseIP("192.168.1.2")) // in range but never allocated
	p.Release(net.IP{1, 2})

	assert.Equal(t, 1, p.Allocated())

	p.Release(net.ParseIP("192.168.1.1"))
	p.Release(net.ParseIP("192.168.1.1"))
	assert.Equal(t, 0, p.Allocated())
}

func Test_NewPool_invalid(t *testing.T) {
	_, err := NewPool(net.ParseIP("192.168.1.1"), 0)
	assert.Error(t, err)

	_, err = NewPool(nil, 5)
	assert.Error(t, err)

	_, err = NewPool(net.ParseIP("10.0.0.1"), MaxPoolSize+1)
	assert.Error(t, err)
}

func Test_Pool_Range(t *testing.T) {
	p := getTestPool(t, 5)
	r := p.Range()
	assert.Equal(t, "192.168.1.1-192.168.1.5", r.String())
	assert.Equal(t, 5, p.Size())
}
