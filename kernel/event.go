package kernel

/*
 * vplat - Event scheduler
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

import "time"

// Callback runs when an event comes due, on the kernel thread.
type Callback = func()

// Event on the delta queue. Each entry stores its delay relative to
// the previous entry, so advancing time only touches the head.
type Event struct {
	delay time.Duration
	name  string
	cb    Callback
	prev  *Event
	next  *Event
	dead  bool
}

type eventList struct {
	head *Event
	tail *Event
}

var el eventList

// Schedule registers cb to run after delay. A zero delay runs the
// callback immediately. The returned event can be cancelled until it
// fires.
func Schedule(name string, cb Callback, delay time.Duration) *Event {
	// If delay is 0 process event immediately
	if delay == 0 {
		cb()
		return nil
	}

	ev := &Event{name: name, cb: cb, delay: delay}

	evptr := el.head
	// If empty put on head
	if evptr == nil {
		el.head = ev
		el.tail = ev
		return ev
	}

	// Scan for place to install it
	for evptr != nil {
		// Event before next event
		if ev.delay <= evptr.delay {
			// Remove current delay from next delay
			evptr.delay -= ev.delay
			ev.prev = evptr.prev
			ev.next = evptr
			evptr.prev = ev
			if ev.prev != nil {
				ev.prev.next = ev
			} else {
				el.head = ev
			}
			// All done
			return ev
		}
		// Make new event relative to head of list
		ev.delay -= evptr.delay
		evptr = evptr.next
	}

	// Get here, put it on tail of list
	ev.prev = el.tail
	el.tail.next = ev
	el.tail = ev
	return ev
}

// Cancel removes a pending event from the queue. Cancelling a nil or
// already fired event is harmless.
func Cancel(ev *Event) {
	if ev == nil || ev.dead {
		return
	}
	ev.dead = true

	nxt := ev.next
	if nxt != nil {
		// Give remaining delay to next event
		nxt.delay += ev.delay
		nxt.prev = ev.prev
	} else {
		// No next event, point tail to prev
		el.tail = ev.prev
	}

	if ev.prev != nil {
		ev.prev.next = ev.next
	} else {
		// No previous, at head of list
		el.head = ev.next
	}
}

// NextEventIn returns the delay until the next pending event.
func NextEventIn() (time.Duration, bool) {
	if el.head == nil {
		return 0, false
	}
	return el.head.delay, true
}

// advance moves simulation time forward by step and fires every event
// that comes due.
func advance(step time.Duration) {
	timeLock.Lock()
	simTime += step
	timeLock.Unlock()

	evptr := el.head
	if evptr == nil {
		return
	}
	evptr.delay -= step

	fired := false
	for evptr != nil && evptr.delay <= 0 {
		// Carry any overshoot into the next relative delay.
		deficit := evptr.delay
		el.head = evptr.next
		if el.head != nil {
			el.head.prev = nil
			el.head.delay += deficit
		} else {
			el.tail = nil
		}
		evptr.dead = true
		evptr.cb()
		fired = true
		evptr = el.head
	}

	if fired {
		timeLock.Lock()
		deltas++
		timeLock.Unlock()
	}
}

func clearEvents() {
	el.head = nil
	el.tail = nil
}
