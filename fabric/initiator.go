package fabric

/*
 * vplat - Initiator port
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
	"log/slog"
	"time"

	"github.com/rcornwell/vplat/kernel"
	"github.com/rcornwell/vplat/tlm"
)

// Host is the component owning an initiator port: it keeps the local
// time offset against global simulation time and decides when to
// synchronize with the scheduler.
type Host interface {
	Name() string
	LocalTime() time.Duration
	SetLocalTime(offset time.Duration)
	Sync()
	NeedsSync() bool
	AllowDMI() bool
}

// InitiatorPort sends transactions toward a bound target port. It
// owns the local DMI cache and two reusable payloads, one for the
// normal path and one for the debug path.
type InitiatorPort struct {
	name   string
	host   Host
	target *TargetPort
	sbi    tlm.Sideband
	cache  tlm.DMICache
	tx     tlm.Payload
	txd    tlm.Payload
}

// NewInitiatorPort creates a port for the given host component.
func NewInitiatorPort(name string, host Host) *InitiatorPort {
	if host == nil {
		panic("fabric: initiator port declared without host")
	}
	return &InitiatorPort{name: name, host: host}
}

// Name of this port.
func (p *InitiatorPort) Name() string {
	return p.name
}

// Bind connects the port to a target. The target records the binding
// so DMI invalidations reach this port's cache.
func (p *InitiatorPort) Bind(t *TargetPort) {
	p.target = t
	t.attach(p)
}

// SetDefaultSideband sets the sideband merged into every transaction
// sent through this port.
func (p *InitiatorPort) SetDefaultSideband(s tlm.Sideband) {
	p.sbi = s
}

// DefaultSideband returns the port's standing sideband.
func (p *InitiatorPort) DefaultSideband() tlm.Sideband {
	return p.sbi
}

// Cache exposes the port's DMI cache.
func (p *InitiatorPort) Cache() *tlm.DMICache {
	return &p.cache
}

// InvalidateDMI drops every cached descriptor overlapping r. Targets
// call this through their target port broadcast.
func (p *InitiatorPort) InvalidateDMI(r tlm.Range) {
	p.cache.Invalidate(r)
}

// Access performs a read or write of len(data) bytes at addr. It
// first tries the DMI fast path and falls back to a full payload
// transaction. The returned count is the number of bytes moved, zero
// unless the response is OK.
func (p *InitiatorPort) Access(cmd tlm.Command, addr uint64, data []byte, sbi tlm.Sideband) (tlm.Response, int) {
	if !sbi.IsDebug() && !kernel.IsKernelThread() {
		panic("fabric: non-debug access outside the kernel thread")
	}

	rs := tlm.Incomplete
	if cmd != tlm.Ignore && p.host.AllowDMI() {
		rs = p.accessDMI(cmd, addr, data, sbi)
	}

	bytes := len(data)
	if rs == tlm.Incomplete {
		// DMI not possible, send a regular transaction.
		tx := &p.tx
		if sbi.IsDebug() {
			tx = &p.txd
		}
		tx.Setup(cmd, addr, data)
		bytes = p.Send(tx, sbi)
		rs = tx.Response

		// Debug transports do not set a response status.
		if rs == tlm.Incomplete && sbi.IsDebug() {
			rs = tlm.OK
		}
	}

	if rs == tlm.Incomplete {
		slog.Warn("incomplete response from target", "port", p.name, "addr", addr)
	}
	return rs, bytes
}

// accessDMI tries to satisfy the access from the DMI cache. It
// returns Incomplete when no descriptor applies so the caller falls
// back to the payload path.
func (p *InitiatorPort) accessDMI(cmd tlm.Command, addr uint64, data []byte, sbi tlm.Sideband) tlm.Response {
	if sbi.IsNodmi() || sbi.IsExcl() {
		return tlm.Incomplete
	}

	// Debug reads and writes both ride on read permission.
	acs := tlm.AccessFor(cmd)
	if sbi.IsDebug() {
		acs = tlm.AccessRead
	}

	dmi, ok := p.cache.Lookup(tlm.RangeAt(addr, uint64(len(data))), acs)
	if !ok {
		return tlm.Incomplete
	}

	if sbi.IsSync() && !sbi.IsDebug() {
		p.host.Sync()
	}

	latency := dmi.Latency(cmd)
	switch cmd {
	case tlm.Read:
		copy(data, dmi.Ptr(addr))
	case tlm.Write:
		copy(dmi.Ptr(addr), data)
	}

	if !sbi.IsDebug() {
		p.host.SetLocalTime(p.host.LocalTime() + latency)
		if sbi.IsSync() {
			p.host.Sync()
		}
	}
	return tlm.OK
}

// Send hands a prepared payload to the bound target and returns the
// number of bytes moved. Callers use this directly when they need
// byte enables or streaming widths the plain Access interface does
// not carry.
func (p *InitiatorPort) Send(tx *tlm.Payload, sbi tlm.Sideband) int {
	if p.target == nil {
		panic("fabric: initiator port " + p.name + " is not bound")
	}
	if !tx.Validate() {
		return 0
	}

	tx.Response = tlm.Incomplete
	tx.DMIAllowed = false
	tx.SBI = p.sbi | sbi

	bytes := 0
	if sbi.IsDebug() {
		t1 := p.host.LocalTime()
		bytes = p.target.host.DebugTransport(tx)
		t2 := p.host.LocalTime()
		if kernel.IsKernelThread() && t1 != t2 {
			panic("fabric: time advanced during debug call")
		}
	} else {
		if !kernel.IsKernelThread() {
			panic("fabric: non-debug send outside the kernel thread")
		}
		if sbi.IsSync() || p.host.NeedsSync() {
			p.host.Sync()
		}

		offset := p.host.LocalTime()
		before := offset
		p.target.host.Transport(tx, &offset)
		if offset < before {
			panic("fabric: transport time went backwards")
		}
		p.host.SetLocalTime(offset)

		if sbi.IsSync() || p.host.NeedsSync() {
			p.host.Sync()
		}
		if tx.IsResponseOK() {
			bytes = len(tx.Data)
		}
	}

	// A target that clears the exclusive flag rejected the exclusive
	// access even when the bytes were moved.
	if sbi.IsExcl() && !tx.SBI.IsExcl() {
		bytes = 0
	}

	if p.host.AllowDMI() && tx.DMIAllowed {
		if dmi, ok := p.target.host.GetDirectMem(tx); ok {
			p.cache.Insert(dmi)
		}
	}
	return bytes
}

// LookupDMIPtr returns host memory backing r, querying the target for
// a descriptor on a cache miss. It returns nil when DMI is not
// possible for the requested access.
func (p *InitiatorPort) LookupDMIPtr(r tlm.Range, acs tlm.Access) []byte {
	if !p.host.AllowDMI() || p.target == nil {
		return nil
	}

	if dmi, ok := p.cache.Lookup(r, acs); ok {
		return dmi.Ptr(r.Start)[:r.Length()]
	}

	cmd := tlm.Read
	if acs.Allows(tlm.AccessWrite) {
		cmd = tlm.Write
	}
	var tx tlm.Payload
	tx.Setup(cmd, r.Start, make([]byte, r.Length()))

	dmi, ok := p.target.host.GetDirectMem(&tx)
	if !ok {
		return nil
	}
	p.cache.Insert(dmi)

	// The granted region might be narrower or weaker than asked.
	if !dmi.Access.Allows(acs) || !r.Inside(dmi.Range) {
		return nil
	}
	return dmi.Ptr(r.Start)[:r.Length()]
}
