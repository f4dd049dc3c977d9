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
	"fmt"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/google/gvisor-unet/pkg/transport"
)

// rendezvousCmd implements subcommands.Command for "rendezvous": it binds a
// listening endpoint to an abstract name, fans out N concurrent clients that
// each connect and send one line, and prints what the server received from
// each. The clients run under golang.org/x/sync/errgroup, which aggregates
// their errors; the accept-and-receive loop runs sequentially on the calling
// goroutine (SPEC_FULL.md §10.5).
type rendezvousCmd struct {
	log      *logrus.Entry
	name     string
	clients  int
}

func (*rendezvousCmd) Name() string { return "rendezvous" }
func (*rendezvousCmd) Synopsis() string {
	return "bind+listen on an abstract name and accept N concurrent clients"
}
func (*rendezvousCmd) Usage() string {
	return "rendezvous -name <abstract-name> -clients <n>\n"
}

func (r *rendezvousCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.name, "name", "unetctl-demo", "abstract namespace name to bind")
	f.IntVar(&r.clients, "clients", 3, "number of concurrent clients to connect")
}

func (r *rendezvousCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	vfs := transport.NewVFS(transport.WithLogger(r.log))
	server := transport.NewEndpoint(vfs, transport.SockSeqpacket)

	addr := append([]byte{0}, []byte(r.name)...)
	addrLen := 2 + len(addr)

	vfs.Lock()
	if err := server.Bind(vfs, unix.AF_UNIX, addr, addrLen); err != nil {
		vfs.Unlock()
		return fail(r.log, "bind: %v", err)
	}
	if err := server.Listen(vfs, r.clients); err != nil {
		vfs.Unlock()
		return fail(r.log, "listen: %v", err)
	}
	vfs.Unlock()

	g, _ := errgroup.WithContext(ctx)

	for i := 0; i < r.clients; i++ {
		i := i
		g.Go(func() error {
			client := transport.NewEndpoint(vfs, transport.SockSeqpacket)
			vfs.Lock()
			err := client.Connect(vfs, unix.AF_UNIX, addr, addrLen)
			vfs.Unlock()
			if err != nil {
				return fmt.Errorf("client %d connect: %w", i, err)
			}

			msg := []byte(fmt.Sprintf("hello from client %d", i))
			vfs.Lock()
			_, err = client.SendMsg(vfs, [][]byte{msg}, nil, 0)
			vfs.Unlock()
			if err != nil {
				return fmt.Errorf("client %d send: %w", i, err)
			}
			return nil
		})
	}

	for i := 0; i < r.clients; i++ {
		vfs.Lock()
		conn, connFD, err := server.Accept(vfs)
		vfs.Unlock()
		if err != nil {
			return fail(r.log, "accept %d: %v", i, err)
		}

		buf := make([]byte, 256)
		vfs.Lock()
		res, err := conn.RecvMsg(vfs, [][]byte{buf}, 0, 0)
		vfs.Unlock()
		if err != nil {
			return fail(r.log, "recv %d: %v", i, err)
		}
		printf("server received: %q\n", buf[:res.N])

		vfs.Lock()
		vfs.CloseLocked(connFD)
		vfs.Unlock()
	}

	if err := g.Wait(); err != nil {
		return fail(r.log, "client error: %v", err)
	}
	return subcommands.ExitSuccess
}
