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

package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/google/gvisor-unet/pkg/transport"
)

// pairCmd implements subcommands.Command for "pair": it creates a connected
// stream socketpair in an in-process VFS, writes one message end to end, and
// prints what the other end received.
type pairCmd struct {
	log     *logrus.Entry
	message string
}

func (*pairCmd) Name() string     { return "pair" }
func (*pairCmd) Synopsis() string { return "create a socketpair and exchange one message" }
func (*pairCmd) Usage() string {
	return "pair -message <text>\n  demonstrates pkg/transport.NewPair end to end.\n"
}

func (p *pairCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.message, "message", "hello", "payload to send across the pair")
}

func (p *pairCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	vfs := transport.NewVFS(transport.WithLogger(p.log))
	a, b := transport.NewPair(vfs, transport.SockStream)

	vfs.Lock()
	n, err := a.SendMsg(vfs, [][]byte{[]byte(p.message)}, nil, 0)
	vfs.Unlock()
	if err != nil {
		return fail(p.log, "send failed: %v", err)
	}

	buf := make([]byte, n)
	vfs.Lock()
	res, err := b.RecvMsg(vfs, [][]byte{buf}, 0, transport.MsgDontwait)
	vfs.Unlock()
	if err != nil {
		return fail(p.log, "recv failed: %v", err)
	}

	printf("sent %d bytes, received %q\n", n, buf[:res.N])
	return subcommands.ExitSuccess
}
