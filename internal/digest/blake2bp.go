package digest

import (
	"hash"
	"sync"
)

const (
	// Size is the BLAKE2bp digest length used for store names.
	Size = 32

	parallelism = 4
	stripeSize  = parallelism * blockSize

	// Writes at least this large hash the four leaves concurrently.
	parallelThreshold = 64 << 10
)

// blake2bp implements BLAKE2bp: four BLAKE2b leaves fed 128-byte blocks
// round-robin, whose full 64-byte outputs are hashed by a root node.
type blake2bp struct {
	leaves [parallelism]node
	n      uint64
}

// NewBLAKE2bp returns a hash.Hash computing the 32-byte BLAKE2bp digest.
func NewBLAKE2bp() hash.Hash {
	d := &blake2bp{}
	d.Reset()
	return d
}

func (d *blake2bp) Reset() {
	for i := range d.leaves {
		d.leaves[i] = newNode(nodeParams{
			digestLength: Size,
			fanout:       parallelism,
			maxDepth:     2,
			nodeOffset:   uint64(i),
			innerLength:  maxOutput,
		}, maxOutput, i == parallelism-1)
	}
	d.n = 0
}

func (d *blake2bp) Size() int      { return Size }
func (d *blake2bp) BlockSize() int { return blockSize }

func (d *blake2bp) Write(p []byte) (int, error) {
	total := len(p)
	if len(p) >= parallelThreshold {
		if off := int(d.n % stripeSize); off != 0 {
			head := stripeSize - off
			d.writeSeq(p[:head])
			p = p[head:]
		}
		bulk := len(p) - len(p)%stripeSize
		d.writeStripes(p[:bulk])
		p = p[bulk:]
	}
	d.writeSeq(p)
	return total, nil
}

// writeSeq routes each byte to the leaf owning its 128-byte block.
func (d *blake2bp) writeSeq(p []byte) {
	for len(p) > 0 {
		leaf := (d.n / blockSize) % parallelism
		k := min(blockSize-int(d.n%blockSize), len(p))
		d.leaves[leaf].write(p[:k])
		d.n += uint64(k)
		p = p[k:]
	}
}

// writeStripes hashes whole stripes with one goroutine per leaf. d.n must be
// stripe-aligned and len(p) a multiple of stripeSize.
func (d *blake2bp) writeStripes(p []byte) {
	var wg sync.WaitGroup
	for i := range d.leaves {
		wg.Add(1)
		go func() {
			defer wg.Done()
			leaf := &d.leaves[i]
			for off := i * blockSize; off < len(p); off += stripeSize {
				leaf.write(p[off : off+blockSize])
			}
		}()
	}
	wg.Wait()
	d.n += uint64(len(p))
}

func (d *blake2bp) Sum(b []byte) []byte {
	root := newNode(nodeParams{
		digestLength: Size,
		fanout:       parallelism,
		maxDepth:     2,
		nodeDepth:    1,
		innerLength:  maxOutput,
	}, Size, true)

	var out [maxOutput]byte
	for i := range d.leaves {
		root.write(d.leaves[i].sum(out[:0]))
	}
	return root.sum(b)
}
