package kernel

/*
 * vplat - Suspender registry
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

import "sync"

// A Suspender is a named handle that asks the kernel thread to pause
// at the next safe point. Debug and session threads each own one.
// Several suspenders compose: the kernel resumes only when every
// handle has released its request.
type Suspender struct {
	name   string
	asking bool
}

// The suspender set is global. Its mutex is the only lock ever held
// across both the kernel thread and I/O threads.
var (
	suspLock   sync.Mutex
	suspCond   = sync.NewCond(&suspLock)
	suspenders []*Suspender
	suspended  bool // kernel currently blocked in HandleRequests
	suspQuit   bool
)

// NewSuspender registers a named suspender handle.
func NewSuspender(name string) *Suspender {
	s := &Suspender{name: name}
	suspLock.Lock()
	suspenders = append(suspenders, s)
	suspLock.Unlock()
	return s
}

// Name of this suspender.
func (s *Suspender) Name() string {
	return s.name
}

// Suspend marks this handle as requesting a pause. The kernel thread
// honors the request at its next call to HandleRequests.
func (s *Suspender) Suspend() {
	suspLock.Lock()
	s.asking = true
	suspLock.Unlock()
}

// Resume clears this handle's request and wakes the kernel if no
// other handle still asks for a pause.
func (s *Suspender) Resume() {
	suspLock.Lock()
	s.asking = false
	suspCond.Broadcast()
	suspLock.Unlock()
}

// IsSuspending reports whether the kernel is currently paused on this
// handle's behalf.
func (s *Suspender) IsSuspending() bool {
	suspLock.Lock()
	defer suspLock.Unlock()
	return s.asking && suspended
}

func anyAsking() bool {
	for _, s := range suspenders {
		if s.asking {
			return true
		}
	}
	return false
}

// HandleRequests is called by the kernel thread at safe points. While
// any suspender requests a pause the kernel blocks here and simulation
// time does not advance.
func HandleRequests() {
	suspLock.Lock()
	for anyAsking() && !suspQuit {
		suspended = true
		suspCond.Broadcast()
		suspCond.Wait()
	}
	suspended = false
	suspLock.Unlock()
}

// WaitSuspended blocks the calling I/O thread until the kernel has
// actually parked in HandleRequests. Debug accesses are safe after
// this returns.
func WaitSuspended() {
	suspLock.Lock()
	for !suspended && !suspQuit {
		suspCond.Wait()
	}
	suspLock.Unlock()
}

// QuitSuspenders releases the barrier permanently so a stopping
// simulation can unwind no matter what is requested.
func QuitSuspenders() {
	suspLock.Lock()
	suspQuit = true
	suspCond.Broadcast()
	suspLock.Unlock()
}

func resetSuspenders() {
	suspLock.Lock()
	suspenders = nil
	suspended = false
	suspQuit = false
	suspLock.Unlock()
}
