package iprange

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
)

// IPRange is a range of IP address from (inclusive) start to (inclusive)
// end IP.
type IPRange struct {
	Start net.IP
	End   net.IP
}

// New returns the range of size addresses starting at start
func New(start net.IP, size int) (*IPRange, error) {
	first, ok := IP2Int(start)
	if !ok {
		return nil, errors.New("invalid start IP")
	}

	if size <= 0 {
		return nil, fmt.Errorf("invalid range size %d", size)
	}

	if uint64(first)+uint64(size)-1 > math.MaxUint32 {
		return nil, fmt.Errorf("range of %d addresses starting at %s exceeds the IPv4 address space", size, start)
	}

	return &IPRange{
		Start: Int2IP(first),
		End:   Int2IP(first + uint32(size-1)),
	}, nil
}

// Len returns the number of IP address available inside the range
func (r *IPRange) Len() int {
	if r == nil {
		return 0
	}

	end4, ok := IP2Int(r.End)
	if !ok {
		return 0
	}

	start4, ok := IP2Int(r.Start)
	if !ok {
		return 0
	}

	if end4 < start4 {
		return 0
	}

	return int(end4) - int(start4) + 1
}

func (r *IPRange) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// ByIdx returns the IP address at the given index
func (r *IPRange) ByIdx(i int) net.IP {
	if i < 0 || i >= r.Len() {
		return nil
	}

	start, ok := IP2Int(r.Start)
	if !ok {
		return nil
	}

	return Int2IP(start + uint32(i))
}

// IndexOf returns the index of ip inside the range. The second return value
// is false if ip is not part of the range
func (r *IPRange) IndexOf(ip net.IP) (int, bool) {
	if !r.Contains(ip) {
		return 0, false
	}

	start, _ := IP2Int(r.Start)
	x, _ := IP2Int(ip)

	return int(x - start), true
}

// Contains checks if ip is part of the range
func (r *IPRange) Contains(ip net.IP) bool {
	x, ok := IP2Int(ip)
	if !ok {
		return false
	}

	start, okStart := IP2Int(r.Start)
	end, okEnd := IP2Int(r.End)
	if !okStart || !okEnd {
		return false
	}

	return start <= x && x <= end
}

// Clone returns a deep copy of the IP range
func (r *IPRange) Clone() *IPRange {
	start := append(net.IP{}, r.Start...)
	end := append(net.IP{}, r.End...)

	return &IPRange{start, end}
}

// Validate the IP range and return any error encountered
func (r *IPRange) Validate() error {
	start4, startOk := IP2Int(r.Start)
	end4, endOk := IP2Int(r.End)

	if !startOk {
		return errors.New("invalid start IP")
	}

	if !endOk {
		return errors.New("invalid end IP")
	}

	if start4 > end4 {
		return errors.New("invalid range")
	}

	return nil
}

// IP2Int converts a IPv4 address to it's unsigned integer representation
func IP2Int(ip net.IP) (uint32, bool) {
	v4 := ip.To4()
	if v4 == nil {
		return 0, false
	}

	return binary.BigEndian.Uint32(v4), true
}

// Int2IP converts a uint32 to it's IPv4 representation
func Int2IP(i uint32) net.IP {
	r := make([]byte, 4)
	binary.BigEndian.PutUint32(r, i)
	return net.IPv4(r[0], r[1], r[2], r[3]).To4()
}
