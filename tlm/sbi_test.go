package tlm

/*
 * vplat - Sideband tests
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
	"testing"
	"unsafe"
)

// Sideband packs into exactly one 64-bit word.
func TestSidebandSize(t *testing.T) {
	var s Sideband
	if unsafe.Sizeof(s) != 8 {
		t.Errorf("Sideband size not correct got: %d expected: %d", unsafe.Sizeof(s), 8)
	}
}

// Every predefined constant sets exactly its named bit.
func TestSidebandConstants(t *testing.T) {
	tests := []struct {
		sbi  Sideband
		flag func(Sideband) bool
	}{
		{SbiDebug, Sideband.IsDebug},
		{SbiNodmi, Sideband.IsNodmi},
		{SbiSync, Sideband.IsSync},
		{SbiInsn, Sideband.IsInsn},
		{SbiExcl, Sideband.IsExcl},
		{SbiLock, Sideband.IsLock},
	}
	for i, test := range tests {
		if !test.flag(test.sbi) {
			t.Errorf("Constant %d does not set its own flag", i)
		}
		for j, other := range tests {
			if i != j && other.flag(test.sbi) {
				t.Errorf("Constant %d sets foreign flag %d", i, j)
			}
		}
		if test.sbi.CPUID() != 0 || test.sbi.Level() != 0 {
			t.Errorf("Constant %d carries cpu or level bits", i)
		}
	}
	if SbiNone != 0 {
		t.Errorf("SbiNone not correct got: %#x expected: 0", uint64(SbiNone))
	}
}

// Bitwise or combines two sidebands; equality compares the word.
func TestSidebandCombine(t *testing.T) {
	s := SbiNodmi | SbiDebug
	if !s.IsDebug() {
		t.Errorf("Combined sideband should be debug")
	}
	if !s.IsNodmi() {
		t.Errorf("Combined sideband should be nodmi")
	}
	if s&SbiDebug != SbiDebug {
		t.Errorf("Masking with SbiDebug not correct got: %#x", uint64(s&SbiDebug))
	}
	if s == SbiDebug {
		t.Errorf("Combined sideband should not equal single flag")
	}
}

// CPU id and level round-trip through their 20-bit fields.
func TestSidebandCPUIDLevel(t *testing.T) {
	for _, id := range []int{0, 1, 2, 42, 0xfffff} {
		s := SbiCPUID(id)
		if s.CPUID() != id {
			t.Errorf("CPUID not correct got: %d expected: %d", s.CPUID(), id)
		}
		if s.Level() != 0 {
			t.Errorf("CPUID sideband has level bits set")
		}
	}
	for _, lvl := range []int{0, 3, 0xfffff} {
		s := SbiLevel(lvl)
		if s.Level() != lvl {
			t.Errorf("Level not correct got: %d expected: %d", s.Level(), lvl)
		}
		if s.CPUID() != 0 {
			t.Errorf("Level sideband has cpu bits set")
		}
	}
	s := SbiDebug | SbiCPUID(7) | SbiLevel(3)
	if s.CPUID() != 7 || s.Level() != 3 || !s.IsDebug() {
		t.Errorf("Combined sideband fields not correct got: cpu %d level %d", s.CPUID(), s.Level())
	}
}
