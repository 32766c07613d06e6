/*
 * vplat - Main process.
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

package main

import (
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	reader "github.com/rcornwell/vplat/command/reader"
	config "github.com/rcornwell/vplat/config/configparser"
	models "github.com/rcornwell/vplat/config/models"
	"github.com/rcornwell/vplat/kernel"
	logger "github.com/rcornwell/vplat/util/logger"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Platform configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Log debug to console")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	log := logger.Setup(file, *optDebug)
	log.Info("vplat started")

	if *optConfig != "" {
		if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
			log.Error("configuration file " + *optConfig + " can't be found")
			os.Exit(1)
		}
		if err := config.LoadConfigFile(*optConfig); err != nil {
			log.Error(err.Error())
			os.Exit(1)
		}
	}

	// First interrupt stops the simulation, a second one within a
	// second exits.
	kernel.HandleSignals(func() {
		slog.Info("terminal stop offered to the simulated console")
	})

	// The console runs beside the kernel loop and drives it through
	// the pause handle, exactly like a session client would.
	go reader.ConsoleReader()

	// The main goroutine is the kernel thread; it returns once the
	// simulation stops.
	if models.Session != nil {
		models.Session.Start()
	} else {
		kernel.BecomeKernelThread()
		kernel.Serve()
	}

	for _, srv := range models.GdbServers {
		srv.Stop()
	}
	log.Info("servers stopped")
}
