package tlm

/*
 * vplat - Address ranges
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

import "fmt"

// Range is an inclusive address interval [Start,End]. Ranges key the
// DMI cache and register tables.
type Range struct {
	Start uint64
	End   uint64
}

// NewRange builds a range from its first and last address.
func NewRange(start, end uint64) Range {
	return Range{Start: start, End: end}
}

// RangeAt builds a range covering size bytes starting at addr.
func RangeAt(addr, size uint64) Range {
	return Range{Start: addr, End: addr + size - 1}
}

// Length of range in bytes.
func (r Range) Length() uint64 {
	return r.End - r.Start + 1
}

// Check if address falls within range.
func (r Range) Contains(addr uint64) bool {
	return addr >= r.Start && addr <= r.End
}

// Check if two ranges share at least one address.
func (r Range) Overlaps(other Range) bool {
	return other.Contains(r.Start) || r.Contains(other.Start)
}

// Check if range lies completely within other.
func (r Range) Inside(other Range) bool {
	return r.Start >= other.Start && r.End <= other.End
}

// Intersect returns the common part of two ranges. ok is false when
// the ranges do not overlap.
func (r Range) Intersect(other Range) (Range, bool) {
	if !r.Overlaps(other) {
		return Range{}, false
	}
	res := r
	if other.Start > res.Start {
		res.Start = other.Start
	}
	if other.End < res.End {
		res.End = other.End
	}
	return res, true
}

func (r Range) String() string {
	return fmt.Sprintf("0x%08x..0x%08x", r.Start, r.End)
}
