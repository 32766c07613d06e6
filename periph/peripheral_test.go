package periph

/*
 * vplat - Peripheral transport tests
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
	"bytes"
	"testing"
	"time"

	"github.com/rcornwell/vplat/tlm"
)

// Writes to a read-only register fail without mutating storage, and
// reads from a write-only register leave the buffer untouched.
func TestPermissions(t *testing.T) {
	m := newMockPeriph("mock_perm")
	m.regB.Write = func(val uint64) uint64 {
		m.writes++
		return val
	}
	m.regB.Read = func() uint64 {
		m.reads++
		return m.regB.Get(0)
	}

	m.regB.AllowRead()
	tx, lat, n := transportWrite(m.Peripheral, 4, []byte{0x11, 0x22, 0x33, 0x44})
	if n != 0 {
		t.Errorf("Bytes moved not correct got: %d expected: %d", n, 0)
	}
	if tx.Response != tlm.CommandError {
		t.Errorf("Response not correct got: %v expected: %v", tx.Response, tlm.CommandError)
	}
	if m.regB.Get(0) != 0xffffffff {
		t.Errorf("Read-only register mutated got: %#x", m.regB.Get(0))
	}
	if m.writes != 0 {
		t.Errorf("Write callback should not run on permission error")
	}
	if lat != m.WriteLatency {
		t.Errorf("Latency still applies on error got: %v expected: %v", lat, m.WriteLatency)
	}

	m.regB.AllowWrite()
	buffer := []byte{0xcc, 0xcc, 0xcc, 0xcc}
	tx, lat, n = transportRead(m.Peripheral, 4, buffer)
	if n != 0 || tx.Response != tlm.CommandError {
		t.Errorf("Write-only read got: %d bytes response %v", n, tx.Response)
	}
	if !bytes.Equal(buffer, []byte{0xcc, 0xcc, 0xcc, 0xcc}) {
		t.Errorf("Buffer touched on permission error got: % x", buffer)
	}
	if m.reads != 0 {
		t.Errorf("Read callback should not run on permission error")
	}
	if lat != m.ReadLatency {
		t.Errorf("Latency still applies on error got: %v expected: %v", lat, m.ReadLatency)
	}
}

// Debug accesses bypass permissions and timing.
func TestDebugBypass(t *testing.T) {
	m := newMockPeriph("mock_debug")
	m.regA.AllowRead()

	var tx tlm.Payload
	tx.Setup(tlm.Write, 0, []byte{0x11, 0x22, 0x33, 0x44})
	tx.SBI = tlm.SbiDebug
	var lat time.Duration
	n := m.Transport(&tx, &lat)
	if n != 4 || !tx.IsResponseOK() {
		t.Fatalf("Debug write failed got: %d bytes response %v", n, tx.Response)
	}
	if m.regA.Get(0) != 0x44332211 {
		t.Errorf("Debug write value not correct got: %#x", m.regA.Get(0))
	}
	if lat != 0 {
		t.Errorf("Debug access advanced time got: %v", lat)
	}
}

// Byte enables mask individual bytes; only enabled bytes move.
func TestByteEnables(t *testing.T) {
	m := newMockPeriph("mock_be")
	m.regA.Set(0, 0)

	var tx tlm.Payload
	tx.Setup(tlm.Write, 0, []byte{0x11, 0x22, 0x33, 0x44})
	tx.ByteEnable = []byte{0xff, 0x00, 0xff, 0x00}
	var lat time.Duration
	n := m.Transport(&tx, &lat)
	if n != 2 {
		t.Errorf("Bytes moved not correct got: %d expected: %d", n, 2)
	}
	if !tx.IsResponseOK() {
		t.Errorf("Response not correct got: %v", tx.Response)
	}
	if m.regA.Get(0) != 0x00330011 {
		t.Errorf("Register value not correct got: %#x expected: %#x", m.regA.Get(0), 0x00330011)
	}

	// Read with the upper half masked off.
	m.regA.Set(0, 0x1337)
	buffer := []byte{0xcc, 0xcc, 0x00, 0x00}
	tx.Setup(tlm.Read, 0, buffer)
	tx.ByteEnable = []byte{0xff, 0xff, 0x00, 0x00}
	n = m.Transport(&tx, &lat)
	if n != 2 || !tx.IsResponseOK() {
		t.Fatalf("Read failed got: %d bytes response %v", n, tx.Response)
	}
	if !bytes.Equal(buffer, []byte{0x37, 0x13, 0x00, 0x00}) {
		t.Errorf("Read buffer not correct got: % x", buffer)
	}
}

// A big endian peripheral reverses each streaming chunk on the bus
// boundary.
func TestBigEndian(t *testing.T) {
	m := newMockPeriph("mock_endian")
	m.SetBigEndian()
	m.regA.Set(0, 0x11223344)

	buffer := make([]byte, 4)
	tx, _, n := transportRead(m.Peripheral, 0, buffer)
	if n != 4 || !tx.IsResponseOK() {
		t.Fatalf("Read failed got: %d bytes response %v", n, tx.Response)
	}
	// Host word read back from the buffer is byte swapped.
	if !bytes.Equal(buffer, []byte{0x11, 0x22, 0x33, 0x44}) {
		t.Errorf("Read buffer not correct got: % x", buffer)
	}

	// Writing host word 0xeeff00cc stores the swapped value.
	tx, _, n = transportWrite(m.Peripheral, 0, []byte{0xcc, 0x00, 0xff, 0xee})
	if n != 4 || !tx.IsResponseOK() {
		t.Fatalf("Write failed got: %d bytes response %v", n, tx.Response)
	}
	if m.regA.Get(0) != 0xcc00ffee {
		t.Errorf("Register value not correct got: %#x expected: %#x", m.regA.Get(0), 0xcc00ffee)
	}

	// Reading back returns the original byte order cc 00 ff ee.
	buffer = make([]byte, 4)
	tx, _, n = transportRead(m.Peripheral, 0, buffer)
	if n != 4 || !tx.IsResponseOK() {
		t.Fatalf("Read failed got: %d bytes response %v", n, tx.Response)
	}
	if !bytes.Equal(buffer, []byte{0xcc, 0x00, 0xff, 0xee}) {
		t.Errorf("Read buffer not correct got: % x", buffer)
	}
}

// Accesses outside the mapped window report an address error.
func TestAddressError(t *testing.T) {
	m := newMockPeriph("mock_addr")
	tx, _, n := transportRead(m.Peripheral, 0x100, make([]byte, 4))
	if n != 0 || tx.Response != tlm.AddressError {
		t.Errorf("Out of range access got: %d bytes response %v", n, tx.Response)
	}
}

// Malformed streaming widths report a burst error and move nothing.
func TestBurstError(t *testing.T) {
	m := newMockPeriph("mock_burst")
	var tx tlm.Payload
	tx.Setup(tlm.Write, 0, []byte{0x11, 0x22, 0x33, 0x44})
	tx.StreamWidth = 0
	var lat time.Duration
	n := m.Transport(&tx, &lat)
	if n != 0 || tx.Response != tlm.BurstError {
		t.Errorf("Zero width write got: %d bytes response %v", n, tx.Response)
	}
	if m.regA.Get(0) != 0xffffffff {
		t.Errorf("Register mutated by malformed payload got: %#x", m.regA.Get(0))
	}
}

// A present but empty byte enable mask is a byte enable error.
func TestByteEnableError(t *testing.T) {
	m := newMockPeriph("mock_beerr")
	var tx tlm.Payload
	tx.Setup(tlm.Write, 0, []byte{0x11, 0x22, 0x33, 0x44})
	tx.ByteEnable = []byte{}
	var lat time.Duration
	n := m.Transport(&tx, &lat)
	if n != 0 || tx.Response != tlm.ByteEnableError {
		t.Errorf("Empty byte enable got: %d bytes response %v", n, tx.Response)
	}
}

// Register sync flags trigger the peripheral's sync hook on the
// matching access direction only.
func TestRegSyncFlags(t *testing.T) {
	m := newMockPeriph("mock_sync")
	syncs := 0
	m.SyncFn = func() { syncs++ }
	m.regA.SyncOnWrite(true)

	transportRead(m.Peripheral, 0, make([]byte, 4))
	if syncs != 0 {
		t.Errorf("Read should not sync got: %d", syncs)
	}
	transportWrite(m.Peripheral, 0, []byte{1, 2, 3, 4})
	if syncs != 1 {
		t.Errorf("Write should sync got: %d", syncs)
	}

	// Debug accesses never sync.
	var tx tlm.Payload
	tx.Setup(tlm.Write, 0, []byte{1, 2, 3, 4})
	tx.SBI = tlm.SbiDebug
	var lat time.Duration
	m.Transport(&tx, &lat)
	if syncs != 1 {
		t.Errorf("Debug write should not sync got: %d", syncs)
	}
}
