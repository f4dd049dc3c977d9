// Copyright 2024 The gvisor-unet Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command unetctl is a small, runnable surface over the in-process AF_UNIX
// emulation in pkg/transport. It never touches host sockets: "connect" and
// "listen" here mean entries in an in-process VFS, not fds on this machine.
// It exists to let the emulation be poked at and observed outside of the
// unit tests, the same role runsc's own subcommands play for gVisor itself
// (SPEC_FULL.md §10.5).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&pairCmd{log: log}, "")
	subcommands.Register(&rendezvousCmd{log: log}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

func fail(log *logrus.Entry, format string, args ...interface{}) subcommands.ExitStatus {
	log.Errorf(format, args...)
	return subcommands.ExitFailure
}

func printf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}
