package session

/*
 * vplat - Session protocol server
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
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rcornwell/vplat/debug"
	"github.com/rcornwell/vplat/kernel"
	"github.com/rcornwell/vplat/module"
	"github.com/rcornwell/vplat/prop"
	"github.com/rcornwell/vplat/rsp"
)

// LibVersion is the component library version reported by the v
// command.
const LibVersion = "vplat-1.0"

// Server speaks the line oriented session protocol: comma separated
// commands inside the shared packet framing. It owns the kernel
// thread's main loop, resuming the simulation in slices on behalf of
// its client. A discovery file in the temp directory announces the
// endpoint.
type Server struct {
	srv      *rsp.Server
	announce string
}

var active *Server

// New starts a session server on the given port and writes the
// discovery file. Only one session server may exist per process.
func New(port uint16) (*Server, error) {
	if active != nil {
		return nil, fmt.Errorf("session: server already created")
	}

	s := &Server{
		srv: rsp.New("vspserver", port),
	}
	s.srv.SetHandler(s.handleCommand)

	if err := s.srv.Start(); err != nil {
		return nil, err
	}

	s.announce = filepath.Join(os.TempDir(), fmt.Sprintf("vcml_session_%d", s.srv.Port()))
	line := fmt.Sprintf("localhost:%d:%s:%s\n", s.srv.Port(), username(), progname())
	if err := os.WriteFile(s.announce, []byte(line), 0o644); err != nil {
		s.srv.Stop()
		return nil, fmt.Errorf("session: cannot write %s: %w", s.announce, err)
	}

	active = s
	slog.Info("session server waiting", "port", s.srv.Port())
	return s, nil
}

func username() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

func progname() string {
	if exe, err := os.Executable(); err == nil {
		return exe
	}
	return os.Args[0]
}

// Port the server listens on.
func (s *Server) Port() uint16 {
	return s.srv.Port()
}

// Start runs the kernel thread's main loop: the simulation starts
// paused and advances in the slices the client asks for. It returns
// when the simulation stops.
func (s *Server) Start() {
	kernel.BecomeKernelThread()
	kernel.Serve()
	s.Cleanup()
}

// Cleanup removes the discovery file and shuts the listener down.
func (s *Server) Cleanup() {
	if s.announce != "" {
		if err := os.Remove(s.announce); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove discovery file", "file", s.announce, "error", err)
		}
		s.announce = ""
	}
	s.srv.Stop()
	if active == s {
		active = nil
	}
}

// resumeSimulation releases the kernel for the given duration and
// serves signal bytes until the kernel pauses again.
func (s *Server) resumeSimulation(d time.Duration) {
	kernel.ResumeFor(d)

	for !kernel.IsPaused() && kernel.Running() {
		switch sig := s.srv.RecvSignal(100 * time.Millisecond); sig {
		case 0:
			// nothing arrived, keep waiting

		case -1:
			// Client dropped mid-run: pause and fall back to the
			// prompt state.
			kernel.Pause()
			s.srv.Disconnect()
			return

		case 'u':
			_ = s.srv.SendPacket(s.handleTime(nil))

		case 'x':
			s.forceQuit()
			return

		case 'a':
			kernel.Pause()
			return

		default:
			slog.Debug("received unknown signal", "signal", sig)
		}
	}
}

func (s *Server) forceQuit() {
	kernel.Stop()
	if s.srv.Connected() {
		s.srv.Disconnect()
	}
}

func (s *Server) handleCommand(cmd string) string {
	args := strings.Split(cmd, ",")
	switch args[0] {
	case "n":
		return ""
	case "s":
		return s.handleStep(args)
	case "c":
		return s.handleCont(args)
	case "l":
		return s.handleList(args)
	case "e":
		return s.handleExec(args)
	case "t":
		return s.handleTime(args)
	case "q":
		return s.handleGetQuantum(args)
	case "Q":
		return s.handleSetQuantum(args)
	case "a":
		return s.handleGetAttr(args)
	case "A":
		return s.handleSetAttr(args)
	case "x":
		s.forceQuit()
		return "OK"
	case "v":
		return "OK," + kernel.Version + "," + LibVersion
	}
	return fmt.Sprintf("E,unknown command '%s'", escape(args[0]))
}

// handleStep resumes for an explicit number of seconds, or until the
// next scheduler event, or for one global quantum.
func (s *Server) handleStep(args []string) string {
	var duration time.Duration
	switch {
	case len(args) > 1 && args[1] != "":
		// Seconds on the wire, nanoseconds from here on.
		secs, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Sprintf("E,bad duration '%s'", escape(args[1]))
		}
		duration = time.Duration(secs * float64(time.Second))
	default:
		if next, ok := kernel.NextEventIn(); ok {
			duration = next
		} else {
			duration = kernel.Quantum()
		}
	}

	s.resumeSimulation(duration)
	if s.srv.Connected() {
		return "OK"
	}
	return ""
}

func (s *Server) handleCont([]string) string {
	s.resumeSimulation(kernel.MaxDuration)
	if s.srv.Connected() {
		return "OK"
	}
	return ""
}

func (s *Server) handleTime([]string) string {
	nanos := uint64(kernel.Now() / time.Nanosecond)
	return fmt.Sprintf("OK,%d,%d", nanos, kernel.DeltaCount())
}

func (s *Server) handleGetQuantum([]string) string {
	return fmt.Sprintf("OK,%d", uint64(kernel.Quantum()/time.Nanosecond))
}

func (s *Server) handleSetQuantum(args []string) string {
	if len(args) < 2 {
		return fmt.Sprintf("E,insufficient arguments %d", len(args))
	}
	ns, err := strconv.ParseUint(args[1], 0, 63)
	if err != nil {
		return fmt.Sprintf("E,bad quantum '%s'", escape(args[1]))
	}
	kernel.SetQuantum(time.Duration(ns) * time.Nanosecond)
	return "OK"
}

func (s *Server) handleGetAttr(args []string) string {
	if len(args) < 2 {
		return fmt.Sprintf("E,insufficient arguments %d", len(args))
	}
	attr, ok := prop.Find(args[1])
	if !ok {
		return fmt.Sprintf("E,attribute '%s' not found", escape(args[1]))
	}
	val := attr.String()
	// Scalar strings escape their commas; arrays already encode
	// their elements with the list escaping.
	if attr.Type() == "string" && attr.Count() == 1 {
		val = escape(val)
	}
	return "OK," + val
}

func (s *Server) handleSetAttr(args []string) string {
	if len(args) < 3 {
		return fmt.Sprintf("E,insufficient arguments %d", len(args))
	}
	attr, ok := prop.Find(args[1])
	if !ok {
		return fmt.Sprintf("E,attribute '%s' not found", escape(args[1]))
	}
	val := unescape(strings.Join(args[2:], ","))
	if err := attr.SetString(val); err != nil {
		return "E," + escape(err.Error())
	}
	return "OK"
}

func (s *Server) handleExec(args []string) string {
	if len(args) < 3 {
		return fmt.Sprintf("E,insufficient arguments %d", len(args))
	}
	mod, ok := module.Find(args[1])
	if !ok {
		return fmt.Sprintf("E,object '%s' not found", escape(args[1]))
	}
	out, err := mod.Execute(args[2], args[3:])
	if err != nil {
		return "E," + escape(err.Error())
	}
	return "OK," + escape(out)
}

// handleList replies with the XML object hierarchy: every object with
// its attributes and commands, plus the flat lists of debug targets
// and I/O endpoints.
func (s *Server) handleList(args []string) string {
	format := "xml"
	if len(args) > 1 && args[1] != "" {
		format = strings.ToLower(args[1])
	}
	if format != "xml" {
		return fmt.Sprintf("E,unknown hierarchy format '%s'", escape(format))
	}

	var sb strings.Builder
	sb.WriteString("OK,<?xml version=\"1.0\" ?><hierarchy>")
	for _, m := range module.Roots() {
		listObject(&sb, m)
	}
	for _, tgt := range debug.Targets() {
		fmt.Fprintf(&sb, "<target>%s</target>", xmlEscape(tgt))
	}
	for _, kind := range []string{"keyboard", "pointer", "serial", "adapter"} {
		for _, m := range module.List() {
			if m.Kind() == kind {
				fmt.Fprintf(&sb, "<%s>%s</%s>", kind, xmlEscape(m.Name()), kind)
			}
		}
	}
	sb.WriteString("</hierarchy>")
	return sb.String()
}

func listObject(sb *strings.Builder, m *module.Module) {
	fmt.Fprintf(sb, "<object name=\"%s\" kind=\"%s\">",
		xmlEscape(m.Basename()), xmlEscape(m.Kind()))

	for _, attr := range prop.ForOwner(m.Name()) {
		fmt.Fprintf(sb, "<attribute name=\"%s\" type=\"%s\" count=\"%d\" />",
			xmlEscape(prop.Basename(attr.Name())), xmlEscape(attr.Type()), attr.Count())
	}
	for _, cmd := range m.Commands() {
		fmt.Fprintf(sb, "<command name=\"%s\" argc=\"%d\" desc=\"%s\" />",
			xmlEscape(cmd.Name), cmd.Argc, xmlEscape(cmd.Desc))
	}
	for _, child := range module.Children(m.Name()) {
		listObject(sb, child)
	}

	sb.WriteString("</object>")
}

// escape protects embedded commas in string values on the wire.
func escape(s string) string {
	return strings.ReplaceAll(s, ",", "\\,")
}

func unescape(s string) string {
	return strings.ReplaceAll(s, "\\,", ",")
}

// xmlEscape entity-escapes XML special characters and protects
// commas.
func xmlEscape(s string) string {
	var sb strings.Builder
	for _, c := range s {
		switch c {
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		case '&':
			sb.WriteString("&amp;")
		case '\'':
			sb.WriteString("&apos;")
		case '"':
			sb.WriteString("&quot;")
		default:
			sb.WriteRune(c)
		}
	}
	return escape(sb.String())
}
