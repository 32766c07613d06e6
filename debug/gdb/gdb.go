package gdb

/*
 * vplat - Remote debug protocol server
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
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rcornwell/vplat/debug"
	"github.com/rcornwell/vplat/kernel"
	"github.com/rcornwell/vplat/rsp"
	"github.com/rcornwell/vplat/tlm"
	hexfmt "github.com/rcornwell/vplat/util/hex"
)

// Status of the debug session state machine.
type Status int32

const (
	Stopped Status = iota
	Stepping
	Running
	Killed
)

// SigTrap is the stop signal reported for breakpoints and steps.
const SigTrap = 5

// Error replies of the remote protocol.
const (
	errCommand  = "E01"
	errParam    = "E02"
	errInternal = "E03"
	errUnknown  = "E04"
)

// Breakpoint type codes of the Z and z packets.
const (
	bpSoftware = 0
	bpHardware = 1
	wpWrite    = 2
	wpRead     = 3
	wpAccess   = 4
)

// Server drives a debug stub over the GDB remote serial protocol. The
// packet handlers run on the server's network thread; the stub's
// Simulate runs on the kernel thread, which calls back into the
// server so stepping and stopping cooperate with the suspender.
type Server struct {
	srv    *rsp.Server
	susp   *kernel.Suspender
	stub   debug.Stub
	def    Status
	status atomic.Int32
	signal atomic.Int32

	handlers [128]func(cmd string) string
}

// New starts a remote debug server on the given port. The status
// argument is the state entered at startup and after a disconnect;
// use Stopped to keep the cpu halted until a debugger attaches.
func New(port uint16, stub debug.Stub, status Status) (*Server, error) {
	if stub == nil {
		panic("gdb: no debug stub given")
	}

	s := &Server{
		srv:  rsp.New("gdbserver", port),
		susp: kernel.NewSuspender("gdbserver"),
		stub: stub,
		def:  status,
	}
	s.signal.Store(SigTrap)

	s.handlers['q'] = s.handleQuery
	s.handlers['s'] = s.handleStep
	s.handlers['c'] = s.handleContinue
	s.handlers['D'] = s.handleDetach
	s.handlers['k'] = s.handleKill
	s.handlers['p'] = s.handleRegRead
	s.handlers['P'] = s.handleRegWrite
	s.handlers['g'] = s.handleRegReadAll
	s.handlers['G'] = s.handleRegWriteAll
	s.handlers['m'] = s.handleMemRead
	s.handlers['M'] = s.handleMemWrite
	s.handlers['X'] = s.handleMemWriteBin
	s.handlers['Z'] = s.handleBreakpointSet
	s.handlers['z'] = s.handleBreakpointDelete
	s.handlers['H'] = s.handleThread
	s.handlers['v'] = s.handleVcont
	s.handlers['?'] = s.handleException

	s.srv.SetHandler(s.handleCommand)
	s.srv.OnConnect(s.handleConnect)
	s.srv.OnDisconnect(s.handleDisconnect)

	// The zero status is Stopped, so updateStatus would skip the
	// suspend for a Stopped start; set the initial state directly.
	s.status.Store(int32(status))
	if status == Stopped {
		s.susp.Suspend()
	}
	if err := s.srv.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

// Port the server listens on.
func (s *Server) Port() uint16 {
	return s.srv.Port()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	s.updateStatus(Killed)
	s.srv.Stop()
}

// Status returns the session state.
func (s *Server) Status() Status {
	return Status(s.status.Load())
}

func (s *Server) updateStatus(status Status) {
	old := Status(s.status.Swap(int32(status)))
	if old == status {
		return
	}
	// A stopped session holds the kernel through the suspender.
	if status == Stopped {
		s.susp.Suspend()
	} else {
		s.susp.Resume()
	}
}

// Simulate advances the cpu, called from the kernel thread by the
// hosting processor model. A stopped session parks the kernel here
// until the debugger resumes it.
func (s *Server) Simulate(cycles uint64) {
	for cycles > 0 {
		kernel.HandleRequests()

		switch s.Status() {
		case Killed, Stopped:
			return

		case Stepping:
			s.stub.Simulate(1)
			s.Notify(SigTrap)
			cycles--

		default:
			s.stub.Simulate(cycles)
			cycles = 0
		}
	}
}

// Notify reports a trap from the cpu: the session stops with the
// given signal.
func (s *Server) Notify(signal int) {
	s.signal.Store(int32(signal))
	s.updateStatus(Stopped)
}

func (s *Server) handleCommand(cmd string) string {
	if len(cmd) == 0 || int(cmd[0]) >= len(s.handlers) {
		return ""
	}
	h := s.handlers[cmd[0]]
	if h == nil {
		// Unknown commands reply empty, the protocol's escape hatch.
		return ""
	}
	return h(cmd)
}

func (s *Server) handleConnect(peer string) {
	slog.Debug("gdb connected", "peer", peer)
	s.updateStatus(Stopped)
}

func (s *Server) handleDisconnect() {
	slog.Debug("gdb disconnected")
	if s.Status() != Killed {
		s.updateStatus(s.def)
	}
}

func (s *Server) handleQuery(cmd string) string {
	switch {
	case strings.HasPrefix(cmd, "qSupported"):
		return fmt.Sprintf("PacketSize=%x", rsp.PacketSize)
	case strings.HasPrefix(cmd, "qAttached"):
		return "1"
	case strings.HasPrefix(cmd, "qOffsets"):
		return "Text=0;Data=0;Bss=0"
	case strings.HasPrefix(cmd, "qRcmd,"):
		return s.handleRcmd(cmd[len("qRcmd,"):])
	}
	return ""
}

func (s *Server) handleRcmd(hexcmd string) string {
	raw, ok := hexfmt.DecodeBytes(hexcmd)
	if !ok {
		return errCommand
	}
	out := s.stub.HandleRcmd(string(raw))
	var sb strings.Builder
	hexfmt.FormatBytes(&sb, false, []byte(out))
	return sb.String()
}

// waitStopped blocks the handler until the session leaves the given
// running state, watching for interrupt bytes from the client.
func (s *Server) waitStopped(from Status) {
	for s.Status() == from {
		sig := s.srv.RecvSignal(100 * time.Millisecond)
		if sig == 0 {
			continue
		}
		if sig < 0 {
			// Client went away mid-run.
			s.Notify(SigTrap)
			return
		}
		slog.Debug("received signal", "signal", sig)
		s.Notify(SigTrap)
	}
	// Debug accesses are only safe once the kernel is parked.
	if kernel.Running() {
		kernel.WaitSuspended()
	}
}

func (s *Server) handleStep(string) string {
	s.updateStatus(Stepping)
	s.waitStopped(Stepping)
	return fmt.Sprintf("S%02x", s.signal.Load())
}

func (s *Server) handleContinue(string) string {
	s.updateStatus(Running)
	s.waitStopped(Running)
	return fmt.Sprintf("S%02x", s.signal.Load())
}

func (s *Server) handleDetach(string) string {
	s.srv.Disconnect()
	return ""
}

func (s *Server) handleKill(string) string {
	s.srv.Disconnect()
	s.updateStatus(Killed)
	kernel.Stop()
	return ""
}

func (s *Server) handleException(string) string {
	return fmt.Sprintf("S%02x", SigTrap)
}

func (s *Server) handleThread(string) string {
	return "OK"
}

func (s *Server) handleVcont(string) string {
	return ""
}

func (s *Server) handleRegRead(cmd string) string {
	reg, ok := hexfmt.ParseUint(cmd[1:])
	if !ok {
		slog.Warn("malformed command", "cmd", cmd)
		return errCommand
	}

	width := s.stub.RegisterWidth(reg)
	if width == 0 {
		return "xxxxxxxx" // contents unknown
	}

	buf := make([]byte, width)
	good := s.stub.ReadReg(reg, buf)

	var sb strings.Builder
	for _, b := range buf {
		if good {
			hexfmt.FormatByte(&sb, b)
		} else {
			sb.WriteString("xx")
		}
	}
	return sb.String()
}

func (s *Server) handleRegWrite(cmd string) string {
	idx, val, found := strings.Cut(cmd[1:], "=")
	if !found {
		slog.Warn("malformed command", "cmd", cmd)
		return errCommand
	}
	reg, ok := hexfmt.ParseUint(idx)
	if !ok {
		slog.Warn("malformed command", "cmd", cmd)
		return errCommand
	}

	width := s.stub.RegisterWidth(reg)
	if width == 0 {
		return "OK"
	}
	if uint64(len(val)) != width*2 {
		slog.Warn("malformed command", "cmd", cmd)
		return errCommand
	}

	buf, ok := hexfmt.DecodeBytes(val)
	if !ok {
		return errCommand
	}
	if !s.stub.WriteReg(reg, buf) {
		slog.Warn("cannot write register", "reg", reg)
		return errInternal
	}
	return "OK"
}

func (s *Server) handleRegReadAll(string) string {
	var sb strings.Builder
	nregs := s.stub.NumRegisters()
	for reg := uint64(0); reg < nregs; reg++ {
		width := s.stub.RegisterWidth(reg)
		if width == 0 {
			continue
		}
		buf := make([]byte, width)
		good := s.stub.ReadReg(reg, buf)
		for _, b := range buf {
			if good {
				hexfmt.FormatByte(&sb, b)
			} else {
				sb.WriteString("xx")
			}
		}
	}
	return sb.String()
}

func (s *Server) handleRegWriteAll(cmd string) string {
	data := cmd[1:]
	nregs := s.stub.NumRegisters()

	need := uint64(0)
	for reg := uint64(0); reg < nregs; reg++ {
		need += s.stub.RegisterWidth(reg) * 2
	}
	if uint64(len(data)) != need {
		slog.Warn("malformed command", "cmd", cmd)
		return errCommand
	}

	for reg := uint64(0); reg < nregs; reg++ {
		width := s.stub.RegisterWidth(reg)
		if width == 0 {
			continue
		}
		buf, ok := hexfmt.DecodeBytes(data[:width*2])
		if !ok {
			return errCommand
		}
		data = data[width*2:]
		if !s.stub.WriteReg(reg, buf) {
			slog.Warn("cannot write register", "reg", reg)
		}
	}
	return "OK"
}

// parseAddrLen splits "<addr>,<len>" with both fields in hex.
func parseAddrLen(arg string) (uint64, uint64, bool) {
	a, l, found := strings.Cut(arg, ",")
	if !found {
		return 0, 0, false
	}
	addr, ok1 := hexfmt.ParseUint(a)
	size, ok2 := hexfmt.ParseUint(l)
	return addr, size, ok1 && ok2
}

func (s *Server) handleMemRead(cmd string) string {
	addr, size, ok := parseAddrLen(cmd[1:])
	if !ok {
		slog.Warn("malformed command", "cmd", cmd)
		return errCommand
	}
	if size > rsp.PacketSize/2 {
		slog.Warn("too much data requested", "bytes", size)
		return errParam
	}

	buf := make([]byte, size)
	if !s.accessVmem(false, addr, buf) {
		return errUnknown
	}

	var sb strings.Builder
	hexfmt.FormatBytes(&sb, false, buf)
	return sb.String()
}

func (s *Server) handleMemWrite(cmd string) string {
	spec, data, found := strings.Cut(cmd[1:], ":")
	if !found {
		slog.Warn("malformed command", "cmd", cmd)
		return errCommand
	}
	addr, size, ok := parseAddrLen(spec)
	if !ok {
		slog.Warn("malformed command", "cmd", cmd)
		return errCommand
	}
	if size > rsp.PacketSize/2 {
		slog.Warn("too much data requested", "bytes", size)
		return errParam
	}

	buf, ok := hexfmt.DecodeBytes(data)
	if !ok || uint64(len(buf)) != size {
		slog.Warn("malformed command", "cmd", cmd)
		return errCommand
	}
	if !s.accessVmem(true, addr, buf) {
		return errUnknown
	}
	return "OK"
}

func (s *Server) handleMemWriteBin(cmd string) string {
	spec, data, found := strings.Cut(cmd[1:], ":")
	if !found {
		slog.Warn("malformed command", "cmd", cmd)
		return errCommand
	}
	addr, size, ok := parseAddrLen(spec)
	if !ok {
		slog.Warn("malformed command", "cmd", cmd)
		return errCommand
	}
	if size == 0 {
		return "OK" // empty probe for binary write support
	}
	if size > rsp.PacketSize/2 {
		slog.Warn("too much data requested", "bytes", size)
		return errParam
	}

	buf := make([]byte, 0, size)
	for i := 0; i < len(data) && uint64(len(buf)) < size; i++ {
		b := data[i]
		if b == '}' {
			i++
			if i >= len(data) {
				return errCommand
			}
			b = data[i] ^ 0x20
		}
		buf = append(buf, b)
	}
	if uint64(len(buf)) != size {
		slog.Warn("malformed command", "cmd", cmd)
		return errCommand
	}

	if !s.accessVmem(true, addr, buf) {
		return errUnknown
	}
	return "OK"
}

// parseBreakpoint splits "<type>,<addr>,<len>".
func parseBreakpoint(arg string) (uint64, uint64, uint64, bool) {
	parts := strings.SplitN(arg, ",", 3)
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	ty, ok1 := hexfmt.ParseUint(parts[0])
	addr, ok2 := hexfmt.ParseUint(parts[1])
	length, ok3 := hexfmt.ParseUint(parts[2])
	return ty, addr, length, ok1 && ok2 && ok3
}

func (s *Server) handleBreakpointSet(cmd string) string {
	ty, addr, length, ok := parseBreakpoint(cmd[1:])
	if !ok {
		slog.Warn("malformed command", "cmd", cmd)
		return errCommand
	}
	if length == 0 {
		length = 1
	}
	mem := tlm.RangeAt(addr, length)

	switch ty {
	case bpSoftware, bpHardware:
		if !s.stub.InsertBreakpoint(addr) {
			return errInternal
		}
	case wpWrite:
		if !s.stub.InsertWatchpoint(mem, tlm.AccessWrite) {
			return errInternal
		}
	case wpRead:
		if !s.stub.InsertWatchpoint(mem, tlm.AccessRead) {
			return errInternal
		}
	case wpAccess:
		if !s.stub.InsertWatchpoint(mem, tlm.AccessRW) {
			return errInternal
		}
	default:
		slog.Warn("unknown breakpoint type", "type", ty)
		return errCommand
	}
	return "OK"
}

func (s *Server) handleBreakpointDelete(cmd string) string {
	ty, addr, length, ok := parseBreakpoint(cmd[1:])
	if !ok {
		slog.Warn("malformed command", "cmd", cmd)
		return errCommand
	}
	if length == 0 {
		length = 1
	}
	mem := tlm.RangeAt(addr, length)

	switch ty {
	case bpSoftware, bpHardware:
		if !s.stub.RemoveBreakpoint(addr) {
			return errInternal
		}
	case wpWrite:
		if !s.stub.RemoveWatchpoint(mem, tlm.AccessWrite) {
			return errInternal
		}
	case wpRead:
		if !s.stub.RemoveWatchpoint(mem, tlm.AccessRead) {
			return errInternal
		}
	case wpAccess:
		if !s.stub.RemoveWatchpoint(mem, tlm.AccessRW) {
			return errInternal
		}
	default:
		slog.Warn("unknown breakpoint type", "type", ty)
		return errCommand
	}
	return "OK"
}

// accessPmem touches physical memory through the stub.
func (s *Server) accessPmem(iswr bool, addr uint64, buf []byte) bool {
	if iswr {
		return s.stub.WriteMem(addr, buf)
	}
	return s.stub.ReadMem(addr, buf)
}

// accessVmem resolves virtual addresses page by page. Reads of pages
// without a translation fill with 0xee sentinels; writes to them are
// silently discarded. A failed physical access on a translated page
// is a real error and fails the whole request.
func (s *Server) accessVmem(iswr bool, addr uint64, buf []byte) bool {
	pageSize, ok := s.stub.PageSize()
	if !ok || pageSize == 0 {
		return s.accessPmem(iswr, addr, buf)
	}

	end := addr + uint64(len(buf))
	for addr < end {
		todo := end - addr
		if rest := pageSize - addr%pageSize; rest < todo {
			todo = rest
		}
		if pa, ok := s.stub.VirtToPhys(addr); ok {
			if !s.accessPmem(iswr, pa, buf[:todo]) {
				slog.Warn("cannot access memory", "addr", pa, "bytes", todo)
				return false
			}
		} else if !iswr {
			for i := range buf[:todo] {
				buf[i] = 0xee
			}
		}
		addr += todo
		buf = buf[todo:]
	}
	return true
}
