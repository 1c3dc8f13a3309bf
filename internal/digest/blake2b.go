package digest

import (
	"encoding/binary"
	"math/bits"
)

const (
	blockSize = 128 // BLAKE2b block size in bytes
	maxOutput = 64  // full BLAKE2b state size in bytes
)

var iv = [8]uint64{
	0x6a09e667f3bcc908, 0xbb67ae8584caa73b, 0x3c6ef372fe94f82b, 0xa54ff53a5f1d36f1,
	0x510e527fade682d1, 0x9b05688c2b3e6c1f, 0x1f83d9abfb41bd6b, 0x5be0cd19137e2179,
}

var sigma = [12][16]byte{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	{14, 10, 4, 8, 9, 15, 13, 6, 1, 12, 0, 2, 11, 7, 5, 3},
	{11, 8, 12, 0, 5, 2, 15, 13, 10, 14, 3, 6, 7, 1, 9, 4},
	{7, 9, 3, 1, 13, 12, 11, 14, 2, 6, 5, 10, 4, 0, 15, 8},
	{9, 0, 5, 7, 2, 4, 10, 15, 14, 1, 11, 12, 6, 8, 3, 13},
	{2, 12, 6, 10, 0, 11, 8, 3, 4, 13, 7, 5, 15, 14, 1, 9},
	{12, 5, 1, 15, 14, 13, 4, 10, 0, 7, 6, 3, 9, 2, 8, 11},
	{13, 11, 7, 14, 12, 1, 3, 9, 5, 0, 15, 4, 8, 6, 2, 10},
	{6, 15, 14, 9, 11, 3, 0, 8, 12, 2, 13, 7, 1, 4, 10, 5},
	{10, 2, 8, 4, 7, 6, 1, 5, 15, 11, 9, 14, 3, 12, 13, 0},
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	{14, 10, 4, 8, 9, 15, 13, 6, 1, 12, 0, 2, 11, 7, 5, 3},
}

// nodeParams is the subset of the BLAKE2b parameter block that tree hashing
// needs. Key, salt and personalization are always zero here.
type nodeParams struct {
	digestLength uint8
	fanout       uint8
	maxDepth     uint8
	leafLength   uint32
	nodeOffset   uint64
	nodeDepth    uint8
	innerLength  uint8
}

// node is a single BLAKE2b state. outLen may differ from the digest length
// written into the parameter block: BLAKE2bp leaves advertise the final
// digest length but emit the full 64-byte state to the root.
type node struct {
	h        [8]uint64
	t        [2]uint64
	buf      [blockSize]byte
	bufLen   int
	outLen   int
	lastNode bool
}

func newNode(p nodeParams, outLen int, lastNode bool) node {
	n := node{outLen: outLen, lastNode: lastNode}
	n.h = iv
	n.h[0] ^= uint64(p.digestLength) |
		uint64(p.fanout)<<16 |
		uint64(p.maxDepth)<<24 |
		uint64(p.leafLength)<<32
	n.h[1] ^= p.nodeOffset
	n.h[2] ^= uint64(p.nodeDepth) | uint64(p.innerLength)<<8
	return n
}

func (n *node) incrementCounter(inc uint64) {
	n.t[0] += inc
	if n.t[0] < inc {
		n.t[1]++
	}
}

// write follows the reference update: the last full block stays buffered so
// finalization always has a block to flag.
func (n *node) write(p []byte) {
	if len(p) == 0 {
		return
	}
	fill := blockSize - n.bufLen
	if len(p) > fill {
		copy(n.buf[n.bufLen:], p[:fill])
		n.bufLen = 0
		n.incrementCounter(blockSize)
		n.compress(n.buf[:], false)
		p = p[fill:]
		for len(p) > blockSize {
			n.incrementCounter(blockSize)
			n.compress(p[:blockSize], false)
			p = p[blockSize:]
		}
	}
	n.bufLen += copy(n.buf[n.bufLen:], p)
}

// sum finalizes a copy of the state and appends outLen bytes to b.
func (n node) sum(b []byte) []byte {
	n.incrementCounter(uint64(n.bufLen))
	clear(n.buf[n.bufLen:])
	n.compress(n.buf[:], true)

	var out [maxOutput]byte
	for i, w := range n.h {
		binary.LittleEndian.PutUint64(out[i*8:], w)
	}
	return append(b, out[:n.outLen]...)
}

func (n *node) compress(block []byte, final bool) {
	var m [16]uint64
	for i := range m {
		m[i] = binary.LittleEndian.Uint64(block[i*8:])
	}

	v := [16]uint64{
		n.h[0], n.h[1], n.h[2], n.h[3], n.h[4], n.h[5], n.h[6], n.h[7],
		iv[0], iv[1], iv[2], iv[3], iv[4] ^ n.t[0], iv[5] ^ n.t[1], iv[6], iv[7],
	}
	if final {
		v[14] = ^v[14]
		if n.lastNode {
			v[15] = ^v[15]
		}
	}

	for r := range sigma {
		s := &sigma[r]
		g(&v, 0, 4, 8, 12, m[s[0]], m[s[1]])
		g(&v, 1, 5, 9, 13, m[s[2]], m[s[3]])
		g(&v, 2, 6, 10, 14, m[s[4]], m[s[5]])
		g(&v, 3, 7, 11, 15, m[s[6]], m[s[7]])
		g(&v, 0, 5, 10, 15, m[s[8]], m[s[9]])
		g(&v, 1, 6, 11, 12, m[s[10]], m[s[11]])
		g(&v, 2, 7, 8, 13, m[s[12]], m[s[13]])
		g(&v, 3, 4, 9, 14, m[s[14]], m[s[15]])
	}

	for i := range n.h {
		n.h[i] ^= v[i] ^ v[i+8]
	}
}

func g(v *[16]uint64, a, b, c, d int, x, y uint64) {
	v[a] += v[b] + x
	v[d] = bits.RotateLeft64(v[d]^v[a], -32)
	v[c] += v[d]
	v[b] = bits.RotateLeft64(v[b]^v[c], -24)
	v[a] += v[b] + y
	v[d] = bits.RotateLeft64(v[d]^v[a], -16)
	v[c] += v[d]
	v[b] = bits.RotateLeft64(v[b]^v[c], -63)
}
