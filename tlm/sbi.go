package tlm

/*
 * vplat - Transaction sideband information
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

// Sideband carries out-of-band metadata with a transaction, packed
// into one 64-bit word so two sidebands combine with plain bitwise
// operations and compare with ==.
//
// Bit layout:
//
//	bit  0     debug access
//	bit  1     bypass DMI
//	bit  2     force quantum sync
//	bit  3     instruction fetch
//	bit  4     exclusive access
//	bit  5     bus lock
//	bits 6-25  issuing cpu id (20 bits)
//	bits 26-45 privilege level (20 bits)
type Sideband uint64

const (
	sbiDebug Sideband = 1 << iota
	sbiNodmi
	sbiSync
	sbiInsn
	sbiExcl
	sbiLock

	cpuidShift = 6
	cpuidBits  = 20
	levelShift = cpuidShift + cpuidBits
	levelBits  = 20

	cpuidMask Sideband = ((1 << cpuidBits) - 1) << cpuidShift
	levelMask Sideband = ((1 << levelBits) - 1) << levelShift
)

// Predefined sideband masks, each setting exactly one flag.
const (
	SbiNone  Sideband = 0
	SbiDebug          = sbiDebug
	SbiNodmi          = sbiNodmi
	SbiSync           = sbiSync
	SbiInsn           = sbiInsn
	SbiExcl           = sbiExcl
	SbiLock           = sbiLock
)

// SbiCPUID returns a sideband carrying only the given cpu identifier.
func SbiCPUID(cpu int) Sideband {
	return (Sideband(cpu) << cpuidShift) & cpuidMask
}

// SbiLevel returns a sideband carrying only the given privilege level.
func SbiLevel(lvl int) Sideband {
	return (Sideband(lvl) << levelShift) & levelMask
}

func (s Sideband) IsDebug() bool { return s&sbiDebug != 0 }
func (s Sideband) IsNodmi() bool { return s&sbiNodmi != 0 }
func (s Sideband) IsSync() bool  { return s&sbiSync != 0 }
func (s Sideband) IsInsn() bool  { return s&sbiInsn != 0 }
func (s Sideband) IsExcl() bool  { return s&sbiExcl != 0 }
func (s Sideband) IsLock() bool  { return s&sbiLock != 0 }

// CPUID extracts the issuing cpu identifier.
func (s Sideband) CPUID() int {
	return int((s & cpuidMask) >> cpuidShift)
}

// Level extracts the privilege level.
func (s Sideband) Level() int {
	return int((s & levelMask) >> levelShift)
}
