package kernel

/*
 * vplat - Kernel thread identification
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
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// The kernel goroutine pins itself to one OS thread so transaction
// code can tell kernel context from network I/O threads.
var kernelTID atomic.Int64

// BecomeKernelThread marks the calling goroutine as the simulation
// kernel. It locks the goroutine to its OS thread for the lifetime of
// the process.
func BecomeKernelThread() {
	runtime.LockOSThread()
	kernelTID.Store(int64(unix.Gettid()))
}

// IsKernelThread reports whether the caller runs on the kernel thread.
// Before BecomeKernelThread is called every caller counts as the
// kernel, which keeps single-threaded tests simple.
func IsKernelThread() bool {
	tid := kernelTID.Load()
	return tid == 0 || tid == int64(unix.Gettid())
}

func releaseKernelThread() {
	kernelTID.Store(0)
}
