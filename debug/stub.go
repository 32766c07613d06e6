package debug

/*
 * vplat - Debug stub capability surface
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
	"sync"

	"github.com/rcornwell/vplat/tlm"
)

// Stub is the capability surface a cpu model exports to a debug
// server. Register and memory bytes travel little endian. Methods are
// called from server threads while the kernel is suspended, except
// Simulate which runs on the kernel thread.
type Stub interface {
	NumRegisters() uint64
	RegisterWidth(reg uint64) uint64 // bytes, zero means not exposed
	ReadReg(reg uint64, buf []byte) bool
	WriteReg(reg uint64, buf []byte) bool

	ReadMem(addr uint64, buf []byte) bool
	WriteMem(addr uint64, buf []byte) bool
	PageSize() (uint64, bool)
	VirtToPhys(vaddr uint64) (uint64, bool)

	InsertBreakpoint(addr uint64) bool
	RemoveBreakpoint(addr uint64) bool
	InsertWatchpoint(r tlm.Range, acs tlm.Access) bool
	RemoveWatchpoint(r tlm.Range, acs tlm.Access) bool

	HandleRcmd(cmd string) string

	// Simulate advances the cpu by n cycles synchronously.
	Simulate(cycles uint64)
}

var (
	regLock sync.Mutex
	targets = map[string]Stub{}
	order   []string
)

// RegisterTarget announces a named debug target.
func RegisterTarget(name string, stub Stub) {
	regLock.Lock()
	defer regLock.Unlock()
	if _, ok := targets[name]; !ok {
		order = append(order, name)
	}
	targets[name] = stub
}

// FindTarget looks a debug target up by name.
func FindTarget(name string) (Stub, bool) {
	regLock.Lock()
	defer regLock.Unlock()
	s, ok := targets[name]
	return s, ok
}

// Targets lists the registered debug target names.
func Targets() []string {
	regLock.Lock()
	defer regLock.Unlock()
	return append([]string{}, order...)
}

// Reset clears the target registry. Test knob.
func Reset() {
	regLock.Lock()
	targets = map[string]Stub{}
	order = nil
	regLock.Unlock()
}
