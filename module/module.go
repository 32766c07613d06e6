package module

/*
 * vplat - Object hierarchy and module commands
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
	"strings"
	"sync"
)

// Separator joins the levels of a hierarchical object name.
const Separator = "."

// Handler executes a module command and returns its output.
type Handler func(args []string) (string, error)

// Command is a named operation a module offers to the session
// protocol and the console.
type Command struct {
	Name    string
	Argc    int // minimum number of arguments
	Desc    string
	handler Handler
}

// Module is a named object in the platform hierarchy.
type Module struct {
	name string
	kind string
	cmds []*Command
}

var (
	regLock sync.Mutex
	modules = map[string]*Module{}
	order   []string
)

// Register adds an object to the hierarchy. Registering an existing
// name returns the existing module.
func Register(name, kind string) *Module {
	regLock.Lock()
	defer regLock.Unlock()
	if m, ok := modules[name]; ok {
		return m
	}
	m := &Module{name: name, kind: kind}
	modules[name] = m
	order = append(order, name)
	return m
}

// Find looks up a module by its full hierarchical name.
func Find(name string) (*Module, bool) {
	regLock.Lock()
	defer regLock.Unlock()
	m, ok := modules[name]
	return m, ok
}

// List returns every module in registration order.
func List() []*Module {
	regLock.Lock()
	defer regLock.Unlock()
	res := make([]*Module, 0, len(order))
	for _, name := range order {
		res = append(res, modules[name])
	}
	return res
}

// Roots returns the modules without a parent in the hierarchy.
func Roots() []*Module {
	var res []*Module
	for _, m := range List() {
		if !strings.Contains(m.name, Separator) {
			res = append(res, m)
		}
	}
	return res
}

// Children returns the direct children of the named module.
func Children(name string) []*Module {
	prefix := name + Separator
	var res []*Module
	for _, m := range List() {
		rest, ok := strings.CutPrefix(m.name, prefix)
		if ok && !strings.Contains(rest, Separator) {
			res = append(res, m)
		}
	}
	return res
}

// Reset clears the hierarchy. Test knob.
func Reset() {
	regLock.Lock()
	modules = map[string]*Module{}
	order = nil
	regLock.Unlock()
}

// Name returns the module's full hierarchical name.
func (m *Module) Name() string {
	return m.name
}

// Basename returns the last level of the module's name.
func (m *Module) Basename() string {
	if i := strings.LastIndex(m.name, Separator); i >= 0 {
		return m.name[i+1:]
	}
	return m.name
}

// Kind describes what the module is ("peripheral", "memory", ...).
func (m *Module) Kind() string {
	return m.kind
}

// AddCommand registers a command on this module.
func (m *Module) AddCommand(name string, argc int, desc string, h Handler) {
	m.cmds = append(m.cmds, &Command{Name: name, Argc: argc, Desc: desc, handler: h})
}

// Commands returns the module's commands.
func (m *Module) Commands() []*Command {
	return m.cmds
}

// Execute runs a named command with the given arguments.
func (m *Module) Execute(cmd string, args []string) (string, error) {
	for _, c := range m.cmds {
		if c.Name != cmd {
			continue
		}
		if len(args) < c.Argc {
			return "", fmt.Errorf("command %s needs %d arguments, %d given", cmd, c.Argc, len(args))
		}
		return c.handler(args)
	}
	return "", fmt.Errorf("object '%s' has no command '%s'", m.name, cmd)
}
