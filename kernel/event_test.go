package kernel

/*
 * vplat - Event scheduler tests
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
	"time"
)

// Events fire in delay order regardless of scheduling order.
func TestEventOrder(t *testing.T) {
	Reset()
	var fired []string
	Schedule("b", func() { fired = append(fired, "b") }, 20*time.Nanosecond)
	Schedule("a", func() { fired = append(fired, "a") }, 10*time.Nanosecond)
	Schedule("c", func() { fired = append(fired, "c") }, 30*time.Nanosecond)

	advance(30 * time.Nanosecond)

	if len(fired) != 3 {
		t.Fatalf("Events fired not correct got: %d expected: %d", len(fired), 3)
	}
	if fired[0] != "a" || fired[1] != "b" || fired[2] != "c" {
		t.Errorf("Event order not correct got: %v", fired)
	}
}

// A zero delay runs the callback immediately.
func TestEventImmediate(t *testing.T) {
	Reset()
	ran := false
	ev := Schedule("now", func() { ran = true }, 0)
	if !ran {
		t.Errorf("Zero delay event should run immediately")
	}
	if ev != nil {
		t.Errorf("Immediate event should not be queued")
	}
}

// Cancelled events do not fire and give their delay to the next.
func TestEventCancel(t *testing.T) {
	Reset()
	var fired []string
	Schedule("a", func() { fired = append(fired, "a") }, 10*time.Nanosecond)
	b := Schedule("b", func() { fired = append(fired, "b") }, 20*time.Nanosecond)
	Schedule("c", func() { fired = append(fired, "c") }, 30*time.Nanosecond)

	Cancel(b)
	advance(30 * time.Nanosecond)

	if len(fired) != 2 || fired[0] != "a" || fired[1] != "c" {
		t.Errorf("Cancel result not correct got: %v", fired)
	}
}

// An event callback may schedule another event.
func TestEventReschedule(t *testing.T) {
	Reset()
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 4 {
			Schedule("tick", tick, 10*time.Nanosecond)
		}
	}
	Schedule("tick", tick, 10*time.Nanosecond)

	for range 4 {
		advance(10 * time.Nanosecond)
	}
	if count != 4 {
		t.Errorf("Reschedule count not correct got: %d expected: %d", count, 4)
	}
}

// NextEventIn reports the head delay.
func TestNextEventIn(t *testing.T) {
	Reset()
	if _, ok := NextEventIn(); ok {
		t.Errorf("Empty queue should report no event")
	}
	Schedule("a", func() {}, 25*time.Nanosecond)
	d, ok := NextEventIn()
	if !ok || d != 25*time.Nanosecond {
		t.Errorf("NextEventIn not correct got: %v expected: %v", d, 25*time.Nanosecond)
	}
}
