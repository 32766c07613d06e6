package periph

/*
 * vplat - Memory mapped registers
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

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/rcornwell/vplat/prop"
	"github.com/rcornwell/vplat/tlm"
)

// Reg is an address-ranged register with typed storage. Storage is an
// array of count cells of width bytes each (1, 2, 4 or 8). A banked
// register keeps one private copy of the cells per cpu id, created on
// demand from the init value; bank 0 is the shared backing.
//
// Callbacks intercept accesses. A tagged callback wins over the plain
// one and receives the cell index for arrays, or Tag for scalars.
type Reg struct {
	host    *Peripheral
	name    string
	full    string
	rng     tlm.Range
	access  tlm.Access
	rsync   bool
	wsync   bool
	banked  bool
	width   int
	count   int
	initVal uint64
	cells   []uint64
	banks   map[int][]uint64

	Read        func() uint64
	Write       func(val uint64) uint64
	TaggedRead  func(tag int) uint64
	TaggedWrite func(val uint64, tag int) uint64
	Tag         int
}

// NewReg creates a register at the given local address and adds it to
// the peripheral's routing table. Registers start out read-write.
func (p *Peripheral) NewReg(name string, addr uint64, width, count int, init uint64) *Reg {
	switch width {
	case 1, 2, 4, 8:
	default:
		panic(fmt.Sprintf("periph: register %s width must be 1, 2, 4 or 8", name))
	}
	if count < 1 {
		count = 1
	}

	r := &Reg{
		host:    p,
		name:    name,
		full:    p.name + prop.Separator + name,
		rng:     tlm.RangeAt(addr, uint64(width*count)),
		access:  tlm.AccessRW,
		width:   width,
		count:   count,
		initVal: init & widthMask(width),
	}
	r.cells = make([]uint64, count)
	for i := range r.cells {
		r.cells[i] = r.initVal
	}

	p.addReg(r)
	prop.Register(r)
	return r
}

func widthMask(width int) uint64 {
	return ^uint64(0) >> (64 - 8*width)
}

// Name returns the register's full hierarchical name.
func (r *Reg) Name() string {
	return r.full
}

// Range returns the addresses the register occupies.
func (r *Reg) Range() tlm.Range {
	return r.rng
}

// Access returns the register's permission bits.
func (r *Reg) Access() tlm.Access {
	return r.access
}

func (r *Reg) IsReadable() bool { return r.access.Allows(tlm.AccessRead) }
func (r *Reg) IsWritable() bool { return r.access.Allows(tlm.AccessWrite) }

func (r *Reg) AllowRead() { r.access = tlm.AccessRead }
func (r *Reg) AllowWrite() { r.access = tlm.AccessWrite }
func (r *Reg) AllowReadWrite() { r.access = tlm.AccessRW }
func (r *Reg) AllowNone() { r.access = tlm.AccessNone }

// SyncOnRead forces a quantum sync before reads of this register.
func (r *Reg) SyncOnRead(sync bool) { r.rsync = sync }

// SyncOnWrite forces a quantum sync before writes of this register.
func (r *Reg) SyncOnWrite(sync bool) { r.wsync = sync }

// SetBanked gives each cpu id a private copy of the storage.
func (r *Reg) SetBanked(banked bool) { r.banked = banked }

// IsBanked reports whether banking is enabled.
func (r *Reg) IsBanked() bool { return r.banked }

// storage returns the cell array for the given bank, creating it from
// the init value on first use.
func (r *Reg) storage(bank int) []uint64 {
	if bank <= 0 || !r.banked {
		return r.cells
	}
	s, ok := r.banks[bank]
	if !ok {
		if r.banks == nil {
			r.banks = map[int][]uint64{}
		}
		s = make([]uint64, r.count)
		for i := range s {
			s[i] = r.initVal
		}
		r.banks[bank] = s
	}
	return s
}

// current returns the storage selected by the host's current cpu.
func (r *Reg) current() []uint64 {
	return r.storage(r.host.CurrentCPU())
}

// Get returns cell idx of the current bank.
func (r *Reg) Get(idx int) uint64 {
	return r.current()[idx]
}

// Set stores val into cell idx of the current bank.
func (r *Reg) Set(idx int, val uint64) {
	r.current()[idx] = val & widthMask(r.width)
}

// Bank returns cell idx of an explicit bank.
func (r *Reg) Bank(bank, idx int) uint64 {
	return r.storage(bank)[idx]
}

// Reset restores the init value in bank 0 and every allocated bank.
func (r *Reg) Reset() {
	for i := range r.cells {
		r.cells[i] = r.initVal
	}
	for _, bank := range r.banks {
		for i := range bank {
			bank[i] = r.initVal
		}
	}
}

// tagFor selects the value handed to tagged callbacks: the cell index
// for register arrays, the configured tag for scalars.
func (r *Reg) tagFor(idx int) int {
	if r.count > 1 {
		return idx
	}
	return r.Tag
}

// DoRead copies the addressed bytes of the register into dst. The
// range must lie inside the register. Cells touched by the access run
// their read callback once and store the returned value back.
func (r *Reg) DoRead(addr tlm.Range, dst []byte) {
	cells := r.current()
	mask := widthMask(r.width)
	pos := addr.Start
	d := 0

	for pos <= addr.End {
		idx := int((pos - r.rng.Start) / uint64(r.width))
		off := int((pos - r.rng.Start) % uint64(r.width))
		n := int(addr.End - pos + 1)
		if rest := r.width - off; n > rest {
			n = rest
		}

		val := cells[idx]
		if r.TaggedRead != nil {
			val = r.TaggedRead(r.tagFor(idx))
		} else if r.Read != nil {
			val = r.Read()
		}
		val &= mask
		cells[idx] = val

		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], val)
		copy(dst[d:d+n], buf[off:off+n])

		pos += uint64(n)
		d += n
	}
}

// DoWrite overlays the addressed bytes of the register from src. Each
// touched cell is read, modified at the addressed offset, passed
// through the write callback and stored back.
func (r *Reg) DoWrite(addr tlm.Range, src []byte) {
	cells := r.current()
	mask := widthMask(r.width)
	pos := addr.Start
	s := 0

	for pos <= addr.End {
		idx := int((pos - r.rng.Start) / uint64(r.width))
		off := int((pos - r.rng.Start) % uint64(r.width))
		n := int(addr.End - pos + 1)
		if rest := r.width - off; n > rest {
			n = rest
		}

		val := cells[idx]
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], val)
		copy(buf[off:off+n], src[s:s+n])
		val = binary.LittleEndian.Uint64(buf[:]) & mask

		if r.TaggedWrite != nil {
			val = r.TaggedWrite(val, r.tagFor(idx))
		} else if r.Write != nil {
			val = r.Write(val)
		}
		cells[idx] = val & mask

		pos += uint64(n)
		s += n
	}
}

// Attribute interface: registers show up in the session protocol.

// Type describes the cell width, "u8" through "u64".
func (r *Reg) Type() string {
	return fmt.Sprintf("u%d", r.width*8)
}

// Count returns the number of storage cells.
func (r *Reg) Count() int {
	return r.count
}

// String formats bank 0 as comma separated hex values.
func (r *Reg) String() string {
	var sb strings.Builder
	for i, v := range r.cells {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%#x", v)
	}
	return sb.String()
}

// SetString parses comma separated values into bank 0.
func (r *Reg) SetString(val string) error {
	parts := strings.Split(val, ",")
	if len(parts) != r.count {
		return fmt.Errorf("register %s needs %d initializers, %d given", r.full, r.count, len(parts))
	}
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 0, 64)
		if err != nil {
			return fmt.Errorf("register %s: %w", r.full, err)
		}
		r.cells[i] = v & widthMask(r.width)
	}
	return nil
}
