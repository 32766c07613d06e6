package periph

/*
 * vplat - Peripheral base with register dispatch
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
	"sort"
	"time"

	"github.com/rcornwell/vplat/module"
	"github.com/rcornwell/vplat/tlm"
)

// Endian selects the byte order a peripheral presents on the bus.
type Endian int

const (
	LittleEndian Endian = iota
	BigEndian
)

// Register cells are kept in little endian host order; a big endian
// peripheral converts on the bus boundary.
const hostEndian = LittleEndian

// Peripheral is the base for memory mapped devices. It owns an
// ordered register table and routes each transaction to the registers
// it overlaps. Accesses that match no register fall through to the
// optional ReadFn/WriteFn hooks, which backing-store targets use.
type Peripheral struct {
	name   string
	endian Endian
	size   uint64
	regs   []*Reg
	curCPU int
	mod    *module.Module

	ReadLatency  time.Duration
	WriteLatency time.Duration

	ReadFn  func(r tlm.Range, data []byte, sbi tlm.Sideband) tlm.Response
	WriteFn func(r tlm.Range, data []byte, sbi tlm.Sideband) tlm.Response
	SyncFn  func()
}

// New creates a peripheral and registers it in the object hierarchy.
func New(name string, endian Endian, rl, wl time.Duration) *Peripheral {
	p := &Peripheral{
		name:         name,
		endian:       endian,
		ReadLatency:  rl,
		WriteLatency: wl,
	}
	p.mod = module.Register(name, "peripheral")
	return p
}

// Name of this peripheral.
func (p *Peripheral) Name() string {
	return p.name
}

// Module returns the peripheral's entry in the object hierarchy.
func (p *Peripheral) Module() *module.Module {
	return p.mod
}

// SetSize fixes the peripheral's mapped window to [0,size).  Without
// an explicit size the window is the hull of the register table.
func (p *Peripheral) SetSize(size uint64) {
	p.size = size
}

// SetBigEndian switches the bus byte order.
func (p *Peripheral) SetBigEndian() {
	p.endian = BigEndian
}

// SetLittleEndian switches the bus byte order back to host order.
func (p *Peripheral) SetLittleEndian() {
	p.endian = LittleEndian
}

// CurrentCPU returns the cpu id of the transaction being dispatched.
// Banked registers select their storage with it.
func (p *Peripheral) CurrentCPU() int {
	return p.curCPU
}

// Regs returns the register table in address order.
func (p *Peripheral) Regs() []*Reg {
	return p.regs
}

// Reset restores every register to its init value.
func (p *Peripheral) Reset() {
	for _, r := range p.regs {
		r.Reset()
	}
}

func (p *Peripheral) addReg(r *Reg) {
	p.regs = append(p.regs, r)
	sort.Slice(p.regs, func(i, j int) bool {
		return p.regs[i].rng.Start < p.regs[j].rng.Start
	})
}

// window returns the peripheral's mapped address window.
func (p *Peripheral) window() (tlm.Range, bool) {
	if p.size > 0 {
		return tlm.RangeAt(0, p.size), true
	}
	if len(p.regs) == 0 {
		return tlm.Range{}, false
	}
	win := p.regs[0].rng
	for _, r := range p.regs[1:] {
		if r.rng.End > win.End {
			win.End = r.rng.End
		}
	}
	return win, true
}

// Transport handles a payload on the timed path. The peripheral's
// access latency is added to the caller's offset once per transaction
// unless the access is a debug one.
func (p *Peripheral) Transport(tx *tlm.Payload, offset *time.Duration) int {
	if !tx.SBI.IsDebug() {
		switch tx.Cmd {
		case tlm.Read:
			*offset += p.ReadLatency
		case tlm.Write:
			*offset += p.WriteLatency
		}
	}
	return p.receive(tx)
}

// DebugTransport handles a payload without timing side effects.
func (p *Peripheral) DebugTransport(tx *tlm.Payload) int {
	return p.receive(tx)
}

// GetDirectMem declines DMI; backing-store targets override this.
func (p *Peripheral) GetDirectMem(*tlm.Payload) (tlm.DMI, bool) {
	return tlm.DMI{}, false
}

// receive validates the payload, routes it through the register table
// and counts the bytes actually moved.
func (p *Peripheral) receive(tx *tlm.Payload) int {
	if !tx.Validate() {
		return 0
	}
	sbi := tx.SBI
	p.curCPU = sbi.CPUID()

	r := tx.Range()
	win, ok := p.window()
	if !ok || !r.Inside(win) {
		tx.Response = tlm.AddressError
		return 0
	}

	// Work on a host byte order copy when the bus order differs.
	w := tx.Data
	if p.endian != hostEndian {
		w = make([]byte, len(tx.Data))
		reverseChunks(w, tx.Data, tx.StreamWidth)
	}

	bytes := 0
	matched := false
	for _, reg := range p.regs {
		is, ok := r.Intersect(reg.rng)
		if !ok {
			continue
		}
		matched = true

		if !sbi.IsDebug() && p.SyncFn != nil {
			if (tx.Cmd == tlm.Read && reg.rsync) || (tx.Cmd == tlm.Write && reg.wsync) {
				p.SyncFn()
			}
		}

		// Debug accesses bypass the permission gate.
		if !sbi.IsDebug() {
			if tx.Cmd == tlm.Read && !reg.IsReadable() {
				tx.Response = tlm.CommandError
				return 0
			}
			if tx.Cmd == tlm.Write && !reg.IsWritable() {
				tx.Response = tlm.CommandError
				return 0
			}
		}

		base := int(is.Start - r.Start)
		seg := w[base : base+int(is.Length())]
		bytes += p.dispatch(tx, reg, is, base, seg)
	}

	if !matched {
		n, rs := p.fallback(tx, r, w)
		tx.Response = rs
		if rs != tlm.OK {
			return 0
		}
		bytes = n
	} else {
		tx.Response = tlm.OK
	}

	if p.endian != hostEndian && tx.Cmd == tlm.Read {
		reverseChunks(tx.Data, w, tx.StreamWidth)
	}
	return bytes
}

// dispatch narrows the payload to one register and honors the byte
// enable mask. Only enabled bytes move and count.
func (p *Peripheral) dispatch(tx *tlm.Payload, reg *Reg, is tlm.Range, base int, seg []byte) int {
	switch tx.Cmd {
	case tlm.Read:
		if tx.ByteEnable == nil {
			reg.DoRead(is, seg)
			return len(seg)
		}
		tmp := make([]byte, len(seg))
		reg.DoRead(is, tmp)
		bytes := 0
		for i := range tmp {
			if tx.EnabledByte(base + i) {
				seg[i] = tmp[i]
				bytes++
			}
		}
		return bytes

	case tlm.Write:
		if tx.ByteEnable == nil {
			reg.DoWrite(is, seg)
			return len(seg)
		}
		bytes := 0
		run := -1
		for i := 0; i <= len(seg); i++ {
			on := i < len(seg) && tx.EnabledByte(base+i)
			if on && run < 0 {
				run = i
			}
			if !on && run >= 0 {
				sub := tlm.NewRange(is.Start+uint64(run), is.Start+uint64(i-1))
				reg.DoWrite(sub, seg[run:i])
				bytes += i - run
				run = -1
			}
		}
		return bytes
	}
	return 0
}

// fallback serves the part of the address space without registers
// through the peripheral's read/write hooks.
func (p *Peripheral) fallback(tx *tlm.Payload, r tlm.Range, w []byte) (int, tlm.Response) {
	switch tx.Cmd {
	case tlm.Read:
		if p.ReadFn == nil {
			return 0, tlm.AddressError
		}
		if tx.ByteEnable == nil {
			return len(w), p.ReadFn(r, w, tx.SBI)
		}
		tmp := make([]byte, len(w))
		if rs := p.ReadFn(r, tmp, tx.SBI); rs != tlm.OK {
			return 0, rs
		}
		bytes := 0
		for i := range tmp {
			if tx.EnabledByte(i) {
				w[i] = tmp[i]
				bytes++
			}
		}
		return bytes, tlm.OK

	case tlm.Write:
		if p.WriteFn == nil {
			return 0, tlm.AddressError
		}
		if tx.ByteEnable == nil {
			return len(w), p.WriteFn(r, w, tx.SBI)
		}
		bytes := 0
		run := -1
		for i := 0; i <= len(w); i++ {
			on := i < len(w) && tx.EnabledByte(i)
			if on && run < 0 {
				run = i
			}
			if !on && run >= 0 {
				sub := tlm.NewRange(r.Start+uint64(run), r.Start+uint64(i-1))
				if rs := p.WriteFn(sub, w[run:i], tx.SBI); rs != tlm.OK {
					return 0, rs
				}
				bytes += i - run
				run = -1
			}
		}
		return bytes, tlm.OK
	}
	return 0, tlm.OK
}

// reverseChunks copies src into dst reversing the bytes of each
// streaming-width sized chunk.
func reverseChunks(dst, src []byte, width int) {
	for base := 0; base < len(src); base += width {
		for i := 0; i < width; i++ {
			dst[base+i] = src[base+width-1-i]
		}
	}
}
