package kernel

/*
 * vplat - Process signal handling
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
	"log/slog"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"
)

// HandleSignals installs the interactive signal policy: the first
// SIGINT stops the simulation, a second SIGINT within one second
// exits the process. SIGTSTP is intercepted and handed to onTstp so a
// console can offer it to the simulated machine instead.
func HandleSignals(onTstp func()) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, os.Interrupt, unix.SIGTSTP)

	go func() {
		var lastInt time.Time
		for sig := range ch {
			switch sig {
			case os.Interrupt:
				now := time.Now()
				if now.Sub(lastInt) < time.Second {
					slog.Warn("second interrupt, exiting")
					os.Exit(1)
				}
				lastInt = now
				slog.Info("interrupt, stopping simulation")
				Stop()
			case unix.SIGTSTP:
				if onTstp != nil {
					onTstp()
				}
			}
		}
	}()
}
