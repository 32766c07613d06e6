package parser

/*
 * vplat - Console command parser
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
	"strconv"
	"strings"
	"time"

	"github.com/rcornwell/vplat/kernel"
	"github.com/rcornwell/vplat/module"
	"github.com/rcornwell/vplat/prop"
)

type command struct {
	name string
	desc string
	fn   func(args []string) (bool, error)
}

var commands []command

func init() {
	commands = []command{
		{"step", "Run the simulation for [seconds], one quantum if omitted", cmdStep},
		{"cont", "Resume the simulation until stopped", cmdCont},
		{"stop", "Pause the running simulation", cmdStop},
		{"time", "Show current simulation time", cmdTime},
		{"quantum", "Show or set the global quantum", cmdQuantum},
		{"list", "List platform objects", cmdList},
		{"exec", "Run a module command: exec <object> <command> [args]", cmdExec},
		{"get", "Read an attribute by hierarchical name", cmdGet},
		{"set", "Write an attribute: set <name> <value>", cmdSet},
		{"help", "Show this command list", cmdHelp},
		{"quit", "Stop the simulation and exit", cmdQuit},
	}
}

// ProcessCommand runs one console line. The first result is true when
// the console should exit.
func ProcessCommand(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	var match *command
	for i := range commands {
		if strings.HasPrefix(commands[i].name, fields[0]) {
			if match != nil {
				return false, fmt.Errorf("ambiguous command '%s'", fields[0])
			}
			match = &commands[i]
		}
	}
	if match == nil {
		return false, fmt.Errorf("unknown command '%s'", fields[0])
	}
	return match.fn(fields[1:])
}

// CompleteCmd offers completions for the console reader.
func CompleteCmd(line string) []string {
	var res []string
	for _, cmd := range commands {
		if strings.HasPrefix(cmd.name, line) {
			res = append(res, cmd.name)
		}
	}
	return res
}

// waitPaused blocks until the kernel parks between run slices.
func waitPaused() {
	for kernel.Running() && !kernel.IsPaused() {
		time.Sleep(10 * time.Millisecond)
	}
}

func cmdStep(args []string) (bool, error) {
	d := kernel.Quantum()
	if len(args) > 0 {
		secs, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return false, fmt.Errorf("bad duration '%s'", args[0])
		}
		d = time.Duration(secs * float64(time.Second))
	}
	kernel.ResumeFor(d)
	waitPaused()
	fmt.Println("time:", kernel.Now())
	return false, nil
}

func cmdCont([]string) (bool, error) {
	kernel.ResumeFor(kernel.MaxDuration)
	fmt.Println("running")
	return false, nil
}

func cmdStop([]string) (bool, error) {
	kernel.Pause()
	waitPaused()
	fmt.Println("paused at:", kernel.Now())
	return false, nil
}

func cmdTime([]string) (bool, error) {
	fmt.Printf("time: %v deltas: %d\n", kernel.Now(), kernel.DeltaCount())
	return false, nil
}

func cmdQuantum(args []string) (bool, error) {
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return false, fmt.Errorf("bad quantum '%s'", args[0])
		}
		kernel.SetQuantum(d)
	}
	fmt.Println("quantum:", kernel.Quantum())
	return false, nil
}

func cmdList([]string) (bool, error) {
	for _, m := range module.List() {
		fmt.Printf("%-30s %s\n", m.Name(), m.Kind())
		for _, cmd := range m.Commands() {
			fmt.Printf("  %-28s %s\n", cmd.Name, cmd.Desc)
		}
	}
	return false, nil
}

func cmdExec(args []string) (bool, error) {
	if len(args) < 2 {
		return false, fmt.Errorf("usage: exec <object> <command> [args]")
	}
	mod, ok := module.Find(args[0])
	if !ok {
		return false, fmt.Errorf("object '%s' not found", args[0])
	}
	out, err := mod.Execute(args[1], args[2:])
	if err != nil {
		return false, err
	}
	fmt.Println(out)
	return false, nil
}

func cmdGet(args []string) (bool, error) {
	if len(args) < 1 {
		return false, fmt.Errorf("usage: get <attribute>")
	}
	attr, ok := prop.Find(args[0])
	if !ok {
		return false, fmt.Errorf("attribute '%s' not found", args[0])
	}
	fmt.Println(attr.String())
	return false, nil
}

func cmdSet(args []string) (bool, error) {
	if len(args) < 2 {
		return false, fmt.Errorf("usage: set <attribute> <value>")
	}
	attr, ok := prop.Find(args[0])
	if !ok {
		return false, fmt.Errorf("attribute '%s' not found", args[0])
	}
	return false, attr.SetString(strings.Join(args[1:], " "))
}

func cmdHelp([]string) (bool, error) {
	for _, cmd := range commands {
		fmt.Printf("%-10s %s\n", cmd.name, cmd.desc)
	}
	return false, nil
}

func cmdQuit([]string) (bool, error) {
	kernel.Stop()
	return true, nil
}
