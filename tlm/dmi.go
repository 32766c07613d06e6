package tlm

/*
 * vplat - Direct memory interface descriptors and cache
 *
 * Copyright 2025, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

import "time"

// DMI maps an address range to host memory. Host holds exactly the
// bytes of Range, so Host[addr-Range.Start] is the byte for addr.
type DMI struct {
	Range        Range
	Host         []byte
	Access       Access
	ReadLatency  time.Duration
	WriteLatency time.Duration
}

// Ptr returns the host bytes backing addresses addr..Range.End.
func (d *DMI) Ptr(addr uint64) []byte {
	return d.Host[addr-d.Range.Start:]
}

// Latency returns the per-access latency for the given command.
func (d *DMI) Latency(cmd Command) time.Duration {
	switch cmd {
	case Read:
		return d.ReadLatency
	case Write:
		return d.WriteLatency
	}
	return 0
}

// DMICache is the set of DMI descriptors owned by one initiator port.
// It is only touched from the kernel thread, or from debug threads
// while the kernel is suspended, so it carries no lock.
type DMICache struct {
	entries []DMI
}

// Insert adds a descriptor. Any cached descriptor overlapping the new
// one is dropped first, so a remap replaces stale mappings instead of
// shadowing them.
func (c *DMICache) Insert(d DMI) {
	c.Invalidate(d.Range)
	c.entries = append(c.entries, d)
}

// Lookup returns the first descriptor that fully contains the request
// and whose permissions dominate the requested access.
func (c *DMICache) Lookup(r Range, acs Access) (DMI, bool) {
	for _, d := range c.entries {
		if r.Inside(d.Range) && d.Access.Allows(acs) {
			return d, true
		}
	}
	return DMI{}, false
}

// Invalidate removes every descriptor overlapping the given range,
// in full or in part.
func (c *DMICache) Invalidate(r Range) {
	kept := c.entries[:0]
	for _, d := range c.entries {
		if !d.Range.Overlaps(r) {
			kept = append(kept, d)
		}
	}
	c.entries = kept
}

// Len reports the number of cached descriptors.
func (c *DMICache) Len() int {
	return len(c.entries)
}
