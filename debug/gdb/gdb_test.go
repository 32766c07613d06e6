package gdb

/*
 * vplat - Remote debug protocol tests
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
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rcornwell/vplat/kernel"
	"github.com/rcornwell/vplat/tlm"
)

// mockStub is a fake cpu exposing three registers (one hidden), 256
// bytes of memory paged at 0x1000, and breakpoint bookkeeping.
type mockStub struct {
	lock   sync.Mutex
	regs   [3][4]byte
	hidden uint64 // register index with width 0
	mem    [256]byte
	paged  bool
	breaks map[uint64]int
	watch  map[tlm.Range]tlm.Access
	rcmd   string
	cycles atomic.Uint64
}

func newMockStub() *mockStub {
	return &mockStub{
		hidden: 2,
		paged:  true,
		breaks: map[uint64]int{},
		watch:  map[tlm.Range]tlm.Access{},
	}
}

func (m *mockStub) NumRegisters() uint64 { return 3 }

func (m *mockStub) RegisterWidth(reg uint64) uint64 {
	if reg >= 3 || reg == m.hidden {
		return 0
	}
	return 4
}

func (m *mockStub) ReadReg(reg uint64, buf []byte) bool {
	if m.RegisterWidth(reg) == 0 {
		return false
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	copy(buf, m.regs[reg][:])
	return true
}

func (m *mockStub) WriteReg(reg uint64, buf []byte) bool {
	if m.RegisterWidth(reg) == 0 {
		return false
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	copy(m.regs[reg][:], buf)
	return true
}

func (m *mockStub) ReadMem(addr uint64, buf []byte) bool {
	if addr+uint64(len(buf)) > uint64(len(m.mem)) {
		return false
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	copy(buf, m.mem[addr:])
	return true
}

func (m *mockStub) WriteMem(addr uint64, buf []byte) bool {
	if addr+uint64(len(buf)) > uint64(len(m.mem)) {
		return false
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	copy(m.mem[addr:], buf)
	return true
}

func (m *mockStub) PageSize() (uint64, bool) {
	if !m.paged {
		return 0, false
	}
	return 16, true
}

func (m *mockStub) VirtToPhys(vaddr uint64) (uint64, bool) {
	if vaddr >= 0x1000 && vaddr < 0x1100 {
		return vaddr - 0x1000, true
	}
	return 0, false
}

func (m *mockStub) InsertBreakpoint(addr uint64) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.breaks[addr]++
	return true
}

func (m *mockStub) RemoveBreakpoint(addr uint64) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.breaks[addr] == 0 {
		return false
	}
	m.breaks[addr]--
	return true
}

func (m *mockStub) InsertWatchpoint(r tlm.Range, acs tlm.Access) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.watch[r] = acs
	return true
}

func (m *mockStub) RemoveWatchpoint(r tlm.Range, _ tlm.Access) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, ok := m.watch[r]; !ok {
		return false
	}
	delete(m.watch, r)
	return true
}

func (m *mockStub) HandleRcmd(cmd string) string {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.rcmd = cmd
	return "done"
}

func (m *mockStub) Simulate(cycles uint64) {
	m.cycles.Add(cycles)
}

// testClient speaks the remote protocol framing.
type testClient struct {
	conn net.Conn
	rd   *bufio.Reader
}

func dial(t *testing.T, port uint16) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{conn: conn, rd: bufio.NewReader(conn)}
}

func frame(payload string) string {
	sum := byte(0)
	for i := range len(payload) {
		sum += payload[i]
	}
	return fmt.Sprintf("$%s#%02x", payload, sum)
}

func (c *testClient) send(t *testing.T, payload string) {
	t.Helper()
	if _, err := c.conn.Write([]byte(frame(payload))); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	ack, err := c.rd.ReadByte()
	if err != nil || ack != '+' {
		t.Fatalf("no ack got: %q %v", ack, err)
	}
}

func (c *testClient) recv(t *testing.T) string {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		b, err := c.rd.ReadByte()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if b == '$' {
			break
		}
	}
	var payload strings.Builder
	for {
		b, err := c.rd.ReadByte()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if b == '#' {
			break
		}
		payload.WriteByte(b)
	}
	if _, err := c.rd.Discard(2); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if _, err := c.conn.Write([]byte{'+'}); err != nil {
		t.Fatalf("ack failed: %v", err)
	}
	return payload.String()
}

func (c *testClient) exchange(t *testing.T, payload string) string {
	t.Helper()
	c.send(t, payload)
	return c.recv(t)
}

func startGdb(t *testing.T, stub *mockStub, status Status) *Server {
	t.Helper()
	kernel.Reset()
	srv, err := New(0, stub, status)
	if err != nil {
		t.Fatalf("server start failed: %v", err)
	}
	t.Cleanup(func() {
		srv.Stop()
		kernel.Reset()
	})
	return srv
}

// Query packets negotiate the packet size and report offsets.
func TestQueries(t *testing.T) {
	stub := newMockStub()
	srv := startGdb(t, stub, Stopped)
	c := dial(t, srv.Port())

	if got := c.exchange(t, "qSupported:xmlRegisters+"); got != "PacketSize=1000" {
		t.Errorf("qSupported not correct got: %q", got)
	}
	if got := c.exchange(t, "qAttached"); got != "1" {
		t.Errorf("qAttached not correct got: %q", got)
	}
	if got := c.exchange(t, "qOffsets"); got != "Text=0;Data=0;Bss=0" {
		t.Errorf("qOffsets not correct got: %q", got)
	}
	if got := c.exchange(t, "?"); got != "S05" {
		t.Errorf("Exception reply not correct got: %q", got)
	}
	if got := c.exchange(t, "H1"); got != "OK" {
		t.Errorf("Thread reply not correct got: %q", got)
	}
	if got := c.exchange(t, "vCont?"); got != "" {
		t.Errorf("vcont reply not correct got: %q", got)
	}
	// Unknown commands reply empty, the protocol's escape hatch.
	if got := c.exchange(t, "T0"); got != "" {
		t.Errorf("Unknown command reply not correct got: %q", got)
	}
}

// Monitor commands round trip hex encoded through the stub.
func TestRcmd(t *testing.T) {
	stub := newMockStub()
	srv := startGdb(t, stub, Stopped)
	c := dial(t, srv.Port())

	// "reset" in hex is 7265736574, "done" is 646f6e65.
	if got := c.exchange(t, "qRcmd,7265736574"); got != "646f6e65" {
		t.Errorf("qRcmd reply not correct got: %q", got)
	}
	if stub.rcmd != "reset" {
		t.Errorf("Stub command not correct got: %q", stub.rcmd)
	}
}

// Register reads and writes move little endian hex bytes.
func TestRegisters(t *testing.T) {
	stub := newMockStub()
	stub.regs[0] = [4]byte{0x44, 0x33, 0x22, 0x11}
	srv := startGdb(t, stub, Stopped)
	c := dial(t, srv.Port())

	if got := c.exchange(t, "p0"); got != "44332211" {
		t.Errorf("Register read not correct got: %q", got)
	}
	// Hidden registers report unknown contents.
	if got := c.exchange(t, "p2"); got != "xxxxxxxx" {
		t.Errorf("Hidden register read not correct got: %q", got)
	}

	if got := c.exchange(t, "P1=aabbccdd"); got != "OK" {
		t.Errorf("Register write not correct got: %q", got)
	}
	if stub.regs[1] != [4]byte{0xaa, 0xbb, 0xcc, 0xdd} {
		t.Errorf("Register bytes not correct got: % x", stub.regs[1])
	}
	if got := c.exchange(t, "P1=zz"); got != errCommand {
		t.Errorf("Malformed register write got: %q", got)
	}

	// All-register read skips hidden registers.
	if got := c.exchange(t, "g"); got != "44332211aabbccdd" {
		t.Errorf("Register dump not correct got: %q", got)
	}
	if got := c.exchange(t, "G1122334455667788"); got != "OK" {
		t.Errorf("Register load not correct got: %q", got)
	}
	if stub.regs[0] != [4]byte{0x11, 0x22, 0x33, 0x44} {
		t.Errorf("Loaded register not correct got: % x", stub.regs[0])
	}
}

// Memory access walks virtual pages; untranslated pages read as 0xee
// and absorb writes.
func TestMemory(t *testing.T) {
	stub := newMockStub()
	copy(stub.mem[0:], []byte{0xde, 0xad, 0xbe, 0xef})
	srv := startGdb(t, stub, Stopped)
	c := dial(t, srv.Port())

	if got := c.exchange(t, "m1000,4"); got != "deadbeef" {
		t.Errorf("Memory read not correct got: %q", got)
	}
	// Crossing from the last mapped page into unmapped space: the
	// mapped half reads real bytes, the rest is sentinel.
	if got := c.exchange(t, "m10f8,10"); got != "0000000000000000eeeeeeeeeeeeeeee" {
		t.Errorf("Page crossing read not correct got: %q", got)
	}
	if got := c.exchange(t, "m2000,4"); got != "eeeeeeee" {
		t.Errorf("Unmapped read not correct got: %q", got)
	}

	if got := c.exchange(t, "M1004,2:cafe"); got != "OK" {
		t.Errorf("Memory write not correct got: %q", got)
	}
	if stub.mem[4] != 0xca || stub.mem[5] != 0xfe {
		t.Errorf("Written bytes not correct got: % x", stub.mem[4:6])
	}

	// Writes to unmapped pages are silently discarded.
	if got := c.exchange(t, "M2000,2:cafe"); got != "OK" {
		t.Errorf("Unmapped write not correct got: %q", got)
	}
}

// Binary writes unescape 0x7d pairs.
func TestMemoryBinary(t *testing.T) {
	stub := newMockStub()
	srv := startGdb(t, stub, Stopped)
	c := dial(t, srv.Port())

	// Escaped 0x7d followed by a plain byte.
	payload := "X1008,2:}" + string(rune(0x5d)) + "A"
	if got := c.exchange(t, payload); got != "OK" {
		t.Errorf("Binary write not correct got: %q", got)
	}
	if stub.mem[8] != 0x7d || stub.mem[9] != 'A' {
		t.Errorf("Unescaped bytes not correct got: % x", stub.mem[8:10])
	}

	// Empty binary write probes support.
	if got := c.exchange(t, "X1000,0:"); got != "OK" {
		t.Errorf("Empty binary write not correct got: %q", got)
	}
}

// Breakpoints and watchpoints map the Z type codes onto the stub.
func TestBreakpoints(t *testing.T) {
	stub := newMockStub()
	srv := startGdb(t, stub, Stopped)
	c := dial(t, srv.Port())

	if got := c.exchange(t, "Z0,10,1"); got != "OK" {
		t.Errorf("Breakpoint insert not correct got: %q", got)
	}
	if stub.breaks[0x10] != 1 {
		t.Errorf("Breakpoint not inserted")
	}
	if got := c.exchange(t, "z0,10,1"); got != "OK" {
		t.Errorf("Breakpoint remove not correct got: %q", got)
	}
	if got := c.exchange(t, "z0,10,1"); got != errInternal {
		t.Errorf("Removing a missing breakpoint got: %q", got)
	}

	if got := c.exchange(t, "Z2,20,4"); got != "OK" {
		t.Errorf("Watchpoint insert not correct got: %q", got)
	}
	if acs := stub.watch[tlm.NewRange(0x20, 0x23)]; acs != tlm.AccessWrite {
		t.Errorf("Watchpoint access not correct got: %v", acs)
	}
	if got := c.exchange(t, "Z4,30,2"); got != "OK" {
		t.Errorf("Access watchpoint insert not correct got: %q", got)
	}
	if acs := stub.watch[tlm.NewRange(0x30, 0x31)]; acs != tlm.AccessRW {
		t.Errorf("Access watchpoint not correct got: %v", acs)
	}
	if got := c.exchange(t, "Z7,0,0"); got != errCommand {
		t.Errorf("Unknown breakpoint type got: %q", got)
	}
}

// Stepping advances the cpu one cycle and stops; continue runs until
// interrupted; kill stops the simulation.
func TestRunControl(t *testing.T) {
	stub := newMockStub()
	srv := startGdb(t, stub, Running)

	// The fake processor drives the server from the kernel thread.
	done := make(chan struct{})
	go func() {
		defer close(done)
		kernel.BecomeKernelThread()
		for kernel.Running() && srv.Status() != Killed {
			srv.Simulate(5)
		}
	}()

	c := dial(t, srv.Port())
	// Connecting halts the session; give the driver time to park.
	time.Sleep(200 * time.Millisecond)
	base := stub.cycles.Load()

	if got := c.exchange(t, "s"); got != "S05" {
		t.Errorf("Step reply not correct got: %q", got)
	}
	if got := stub.cycles.Load(); got != base+1 {
		t.Errorf("Step cycles not correct got: %d expected: %d", got, base+1)
	}

	// Continue, then interrupt with the break byte.
	c.send(t, "c")
	time.Sleep(200 * time.Millisecond)
	if _, err := c.conn.Write([]byte{0x03}); err != nil {
		t.Fatal(err)
	}
	if got := c.recv(t); got != "S05" {
		t.Errorf("Continue reply not correct got: %q", got)
	}
	if stub.cycles.Load() <= base+1 {
		t.Errorf("Continue did not run got: %d cycles", stub.cycles.Load())
	}

	c.send(t, "k")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Kill did not stop the simulation")
	}
	if kernel.Running() {
		t.Errorf("Kill should stop the kernel")
	}
}
