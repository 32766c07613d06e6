package kernel

/*
 * vplat - Simulation kernel: time, quantum and run control
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
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Version of the simulation kernel, reported by the session protocol.
const Version = "vplat-kernel-1.0"

// MaxDuration runs the simulation until stopped.
const MaxDuration = time.Duration(math.MaxInt64)

// Simulation is cooperative single-threaded: one kernel thread runs
// all modeled processes. Network I/O threads only read time through
// the accessors below and request pauses through suspenders.
var (
	timeLock sync.Mutex
	simTime  time.Duration // current simulation time
	deltas   uint64        // number of processed event batches

	quantum atomic.Int64 // global quantum in nanoseconds
	running atomic.Bool  // cleared by Stop
	pausing atomic.Bool  // makes Run return at the next safe point
)

func init() {
	quantum.Store(int64(time.Millisecond))
	running.Store(true)
}

// Now returns the current simulation time.
func Now() time.Duration {
	timeLock.Lock()
	defer timeLock.Unlock()
	return simTime
}

// DeltaCount returns the number of event batches processed so far.
func DeltaCount() uint64 {
	timeLock.Lock()
	defer timeLock.Unlock()
	return deltas
}

// Quantum returns the global quantum, the longest simulated time an
// initiator may run ahead before synchronizing.
func Quantum() time.Duration {
	return time.Duration(quantum.Load())
}

// SetQuantum changes the global quantum.
func SetQuantum(d time.Duration) {
	if d <= 0 {
		d = time.Millisecond
	}
	quantum.Store(int64(d))
}

// Running reports whether the simulation has not been stopped.
func Running() bool {
	return running.Load()
}

// Stop ends the simulation. The suspender barrier is released for
// good so a parked kernel wakes up to observe the stop.
func Stop() {
	running.Store(false)
	pausing.Store(true)
	QuitSuspenders()
}

// Pause makes the current Run return at the next quantum boundary
// without stopping the simulation.
func Pause() {
	pausing.Store(true)
}

// Run advances simulation time by up to d, processing scheduled events
// in order. It returns early when the simulation is stopped or paused.
// Only the kernel thread may run the simulation.
func Run(d time.Duration) {
	if !IsKernelThread() {
		panic("kernel: Run called outside the kernel thread")
	}
	pausing.Store(false)

	end := simTime + d
	if end < simTime { // overflow, run until stopped
		end = MaxDuration
	}

	for running.Load() && !pausing.Load() && simTime < end {
		HandleRequests()
		if !running.Load() || pausing.Load() {
			return
		}

		step := Quantum()
		if rest := end - simTime; rest < step {
			step = rest
		}
		if next, ok := NextEventIn(); ok && next < step {
			step = next
		}
		advance(step)
	}
}

// The pause handle parks the kernel between run slices. Controllers
// (the session server, the console) release it with ResumeFor.
var (
	pauseLock sync.Mutex
	pauseSusp *Suspender
	slice     atomic.Int64
)

func pauseHandle() *Suspender {
	pauseLock.Lock()
	defer pauseLock.Unlock()
	if pauseSusp == nil {
		pauseSusp = NewSuspender("kernel")
		slice.Store(int64(MaxDuration))
	}
	return pauseSusp
}

// Serve is the kernel thread's main loop: the simulation starts
// paused and advances in the slices controllers ask for, parking
// again after each one. It returns when the simulation stops.
func Serve() {
	pause := pauseHandle()
	pause.Suspend()

	for Running() {
		HandleRequests()
		if !Running() {
			return
		}
		Run(time.Duration(slice.Load()))
		if Running() {
			pause.Suspend()
		}
	}
}

// ResumeFor releases a served kernel for the given simulated
// duration.
func ResumeFor(d time.Duration) {
	pause := pauseHandle()
	slice.Store(int64(d))
	pause.Resume()
}

// IsPaused reports whether a served kernel is parked between slices.
func IsPaused() bool {
	return pauseHandle().IsSuspending()
}

// Reset restores the kernel to its initial state. Test knob.
func Reset() {
	timeLock.Lock()
	simTime = 0
	deltas = 0
	timeLock.Unlock()
	quantum.Store(int64(time.Millisecond))
	running.Store(true)
	pausing.Store(false)
	clearEvents()
	resetSuspenders()
	releaseKernelThread()
	pauseLock.Lock()
	pauseSusp = nil
	pauseLock.Unlock()
}
