package iprange

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_IPRange_New(t *testing.T) {
	r, err := New(net.ParseIP("192.168.1.1"), 5)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1-192.168.1.5", r.String())
	assert.Equal(t, 5, r.Len())

	r, err = New(net.ParseIP("10.0.0.255"), 2)
	require.NoError(t, err)
	assert.Equal(t, "10.0.1.0", r.End.String())

	cases := []struct {
		Start net.IP
		Size  int
	}{
		{nil, 1},
		{net.ParseIP("fe80::1"), 1},
		{net.ParseIP("10.0.0.1"), 0},
		{net.ParseIP("10.0.0.1"), -1},
		{net.ParseIP("255.255.255.254"), 3},
	}

	for i, c := range cases {
		_, err := New(c.Start, c.Size)
		assert.Error(t, err, "Test case #%d failed", i)
	}
}

func Test_IPRange_Len(t *testing.T) {
	cases := []struct {
		I IPRange
		E int
	}{
		{
			IPRange{
				Start: net.ParseIP("10.0.0.0"),
				End:   net.ParseIP("10.0.0.0"),
			},
			1,
		},
		{
			IPRange{
				Start: net.ParseIP("10.0.0.0"),
				End:   net.ParseIP("10.0.0.100"),
			},
			101,
		},
		{
			IPRange{
				Start: net.ParseIP("10.0.0.0"),
				End:   net.ParseIP("10.0.1.100"),
			},
			357,
		},
		// invalid ranges
		{
			IPRange{
				Start: nil,
				End:   net.ParseIP("10.0.1.100"),
			},
			0,
		},
		{
			IPRange{
				Start: net.ParseIP("10.0.1.10"),
				End:   net.IP{0, 1},
			},
			0,
		},
		{
			IPRange{
				Start: net.ParseIP("10.0.1.10"),
				End:   net.ParseIP("10.0.1.9"),
			},
			0,
		},
	}

	for i, c := range cases {
		assert.Equal(t, c.E, c.I.Len(), "Test case #%d failed", i)
	}
}

func Test_IPRange_ByIdx_IndexOf(t *testing.T) {
	r, err := New(net.IPv4(192, 168, 1, 1), 5)
	require.NoError(t, err)

	for i := 0; i < r.Len(); i++ {
		ip := r.ByIdx(i)
		require.NotNil(t, ip)
		assert.Equal(t, net.IPv4(192, 168, 1, byte(i+1)).To4(), ip)

		idx, ok := r.IndexOf(ip)
		assert.True(t, ok)
		assert.Equal(t, i, idx)
	}

	assert.Nil(t, r.ByIdx(-1))
	assert.Nil(t, r.ByIdx(5))

	_, ok := r.IndexOf(net.ParseIP("192.168.1.6"))
	assert.False(t, ok)
	_, ok = r.IndexOf(nil)
	assert.False(t, ok)
}

func Test_IPRange_Contains(t *testing.T) {
	r := IPRange{
		Start: net.IPv4(192, 168, 0, 100),
		End:   net.IPv4(192, 168, 2, 10),
	}

	cases := []struct {
		IP string
		E  bool
	}{
		{
			IP: "192.168.0.100",
			E:  true,
		},
		{
			IP: "192.168.2.10",
			E:  true,
		},
		{
			IP: "192.168.3.100",
			E:  false,
		},
		{
			IP: "192.168.0.99",
			E:  false,
		},
		{
			IP: "::1",
			E:  false,
		},
	}

	for i, c := range cases {
		assert.Equal(t, c.E, r.Contains(net.ParseIP(c.IP)), "Test case #%d failed", i)
	}
}

func Test_IPRange_Validate(t *testing.T) {
	valid := IPRange{Start: net.IPv4(10, 0, 0, 1), End: net.IPv4(10, 0, 0, 1)}
	assert.NoError(t, valid.Validate())

	reversed := IPRange{Start: net.IPv4(10, 0, 0, 2), End: net.IPv4(10, 0, 0, 1)}
	assert.Error(t, reversed.Validate())

	noStart := IPRange{End: net.IPv4(10, 0, 0, 1)}
	assert.Error(t, noStart.Validate())

	noEnd := IPRange{Start: net.IPv4(10, 0, 0, 1)}
	assert.Error(t, noEnd.Validate())
}

func Test_IPRange_Clone(t *testing.T) {
	r := &IPRange{Start: net.IPv4(10, 0, 0, 1).To4(), End: net.IPv4(10, 0, 0, 5).To4()}
	c := r.Clone()
	c.Start[3] = 9

	assert.Equal(t, "10.0.0.1", r.Start.String())
}
