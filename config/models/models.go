package models

/*
 * vplat - Platform object creation from configuration
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
	"os"
	"strconv"
	"time"

	"github.com/rcornwell/vplat/config/configparser"
	"github.com/rcornwell/vplat/debug"
	"github.com/rcornwell/vplat/debug/gdb"
	"github.com/rcornwell/vplat/debug/session"
	"github.com/rcornwell/vplat/fabric"
	"github.com/rcornwell/vplat/kernel"
	"github.com/rcornwell/vplat/mem"
	"github.com/rcornwell/vplat/util/logger"
)

// Objects built from the configuration file, by name.
var (
	Ports      = map[string]*fabric.TargetPort{}
	Memories   = map[string]*mem.Memory{}
	GdbServers []*gdb.Server
	Session    *session.Server
)

func init() {
	configparser.RegisterModel("memory", createMemory)
	configparser.RegisterModel("quantum", createQuantum)
	configparser.RegisterModel("gdb", createGdb)
	configparser.RegisterModel("session", createSession)
	configparser.RegisterModel("logfile", createLogfile)
}

// Reset drops the built platform. Test knob.
func Reset() {
	Ports = map[string]*fabric.TargetPort{}
	Memories = map[string]*mem.Memory{}
	GdbServers = nil
	Session = nil
}

// memory <name> <size> [readonly] [align=<bits>] [poison=<byte>]
// [images=<list>] [readlat=<dur>] [writelat=<dur>]
func createMemory(args []string, opts []configparser.Option) error {
	if len(args) < 2 {
		return fmt.Errorf("memory needs a name and a size")
	}
	name := args[0]
	size, err := configparser.ParseSize(args[1])
	if err != nil {
		return err
	}

	readonly := false
	for _, arg := range args[2:] {
		if arg == "readonly" {
			readonly = true
		}
	}

	align := uint(0)
	var rl, wl time.Duration
	var poison uint64
	images := ""
	for _, opt := range opts {
		switch opt.Name {
		case "align":
			bits, err := strconv.ParseUint(opt.Value, 0, 6)
			if err != nil {
				return fmt.Errorf("bad alignment '%s'", opt.Value)
			}
			align = uint(bits)
		case "poison":
			poison, err = strconv.ParseUint(opt.Value, 0, 8)
			if err != nil {
				return fmt.Errorf("bad poison '%s'", opt.Value)
			}
		case "images":
			images = opt.Value
		case "readlat":
			if rl, err = time.ParseDuration(opt.Value); err != nil {
				return fmt.Errorf("bad read latency '%s'", opt.Value)
			}
		case "writelat":
			if wl, err = time.ParseDuration(opt.Value); err != nil {
				return fmt.Errorf("bad write latency '%s'", opt.Value)
			}
		default:
			return fmt.Errorf("unknown memory option '%s'", opt.Name)
		}
	}

	m, err := mem.New(name, size, readonly, align, rl, wl)
	if err != nil {
		return err
	}
	m.Poison.Set(poison)
	m.Images.Set(images)
	m.Reset()

	Memories[name] = m
	Ports[name] = fabric.NewTargetPort(name+".in", m)
	return nil
}

// quantum <duration>
func createQuantum(args []string, _ []configparser.Option) error {
	if len(args) < 1 {
		return fmt.Errorf("quantum needs a duration")
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		ns, nerr := strconv.ParseUint(args[0], 0, 63)
		if nerr != nil {
			return fmt.Errorf("bad quantum '%s'", args[0])
		}
		d = time.Duration(ns) * time.Nanosecond
	}
	kernel.SetQuantum(d)
	return nil
}

// gdb <port> <target>
func createGdb(args []string, _ []configparser.Option) error {
	if len(args) < 2 {
		return fmt.Errorf("gdb needs a port and a debug target")
	}
	port, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return fmt.Errorf("bad port '%s'", args[0])
	}
	stub, ok := debug.FindTarget(args[1])
	if !ok {
		return fmt.Errorf("debug target '%s' not found", args[1])
	}
	srv, err := gdb.New(uint16(port), stub, gdb.Stopped)
	if err != nil {
		return err
	}
	GdbServers = append(GdbServers, srv)
	return nil
}

// logfile <path>
func createLogfile(args []string, _ []configparser.Option) error {
	if len(args) < 1 {
		return fmt.Errorf("logfile needs a path")
	}
	file, err := os.Create(args[0])
	if err != nil {
		return err
	}
	logger.Setup(file, false)
	return nil
}

// session <port>
func createSession(args []string, _ []configparser.Option) error {
	if len(args) < 1 {
		return fmt.Errorf("session needs a port")
	}
	port, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return fmt.Errorf("bad port '%s'", args[0])
	}
	srv, err := session.New(uint16(port))
	if err != nil {
		return err
	}
	Session = srv
	return nil
}
