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

package transport

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"
)

// abstractAddr builds the sun_path bytes and addrlen for an abstract name,
// per §6: sun_path[0] == 0, name verbatim after it.
func abstractAddr(name string) ([]byte, int) {
	addr := append([]byte{0}, []byte(name)...)
	return addr, sunPathOffset + len(addr)
}

// Scenario 1 (§8.1): socketpair(AF_UNIX, SOCK_STREAM); A writes "hello"; B
// reads it back whole; B's POLLIN clears afterward.
func TestScenarioPairStream(t *testing.T) {
	vfs := NewVFS()
	a, b := NewPair(vfs, SockStream)

	vfs.Lock()
	n, err := a.SendMsg(vfs, [][]byte{[]byte("hello")}, nil, 0)
	vfs.Unlock()
	if err != nil || n != 5 {
		t.Fatalf("SendMsg = (%d, %v), want (5, nil)", n, err)
	}

	buf := make([]byte, 10)
	vfs.Lock()
	res, err := b.RecvMsg(vfs, [][]byte{buf}, 0, MsgDontwait)
	vfs.Unlock()
	if err != nil || res.N != 5 || string(buf[:5]) != "hello" {
		t.Fatalf("RecvMsg = (%+v, %v), want N=5 buf=hello", res, err)
	}

	vfs.Lock()
	pollin := b.GetPollEvents() & PollIn
	vfs.Unlock()
	if pollin != 0 {
		t.Fatalf("POLLIN still set after drain")
	}
}

// Scenario 2 (§8.2): abstract rendezvous with backlog=1; a second connect
// while the first is pending is refused; accept pairs the first; a further
// accept with no pending connection and a short timeout returns EAGAIN.
func TestScenarioAbstractRendezvous(t *testing.T) {
	vfs := NewVFS()
	server := NewEndpoint(vfs, SockStream)

	addr, addrLen := abstractAddr("svc")
	vfs.Lock()
	if err := server.Bind(vfs, unix.AF_UNIX, addr, addrLen); err != nil {
		t.Fatalf("Bind = %v", err)
	}
	if err := server.Listen(vfs, 1); err != nil {
		t.Fatalf("Listen = %v", err)
	}
	vfs.Unlock()

	client1 := NewEndpoint(vfs, SockStream)
	connectDone := make(chan *Errno, 1)
	go func() {
		vfs.Lock()
		defer vfs.Unlock()
		connectDone <- client1.Connect(vfs, unix.AF_UNIX, addr, addrLen)
	}()

	// Wait until client1 is actually enqueued before trying client2.
	for {
		vfs.Lock()
		queued := len(server.pendingConnections)
		vfs.Unlock()
		if queued == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	client2 := NewEndpoint(vfs, SockStream)
	vfs.Lock()
	err := client2.Connect(vfs, unix.AF_UNIX, addr, addrLen)
	vfs.Unlock()
	if err != ErrConnectionRefused {
		t.Fatalf("second Connect = %v, want ErrConnectionRefused (queue full)", err)
	}

	vfs.Lock()
	serverSide, serverFD, err := server.Accept(vfs)
	vfs.Unlock()
	if err != nil {
		t.Fatalf("Accept = %v", err)
	}
	if serverFD < 0 {
		t.Fatalf("Accept fd = %d, want >= 0", serverFD)
	}
	if got := <-connectDone; got != nil {
		t.Fatalf("first Connect result = %v, want nil", got)
	}
	if serverSide.peer != client1 || client1.peer != serverSide {
		t.Fatalf("accepted endpoint not paired with client1")
	}

	server.SetRecvTimeout(10 * time.Millisecond)
	vfs.Lock()
	_, _, err = server.Accept(vfs)
	vfs.Unlock()
	if err != ErrWouldBlock {
		t.Fatalf("Accept with no pending conn = %v, want ErrWouldBlock", err)
	}
}

// Scenario 3 (§8.3): connecting to an unbound abstract name is refused.
func TestScenarioUnboundAbstractConnect(t *testing.T) {
	vfs := NewVFS()
	c := NewEndpoint(vfs, SockStream)
	addr, addrLen := abstractAddr("nope")
	vfs.Lock()
	err := c.Connect(vfs, unix.AF_UNIX, addr, addrLen)
	vfs.Unlock()
	if err != ErrConnectionRefused {
		t.Fatalf("Connect(unbound) = %v, want ErrConnectionRefused", err)
	}
}

// Scenario 4 (§8.4): FD passing, with and without MSG_CTRUNC.
func TestScenarioFDPassing(t *testing.T) {
	vfs := NewVFS()
	a, b := NewPair(vfs, SockStream)

	// Fabricate two fds for the VFS fd table to dup; any distinct
	// *Endpoint values stand in for arbitrary file streams here.
	fd1, _ := vfs.(*referenceVFS).AddFileStreamLocked(NewEndpoint(vfs, SockDgram))
	fd2, _ := vfs.(*referenceVFS).AddFileStreamLocked(NewEndpoint(vfs, SockDgram))

	vfs.Lock()
	n, err := a.SendMsg(vfs, [][]byte{[]byte("x")}, []int{fd1, fd2}, 0)
	vfs.Unlock()
	if err != nil || n != 1 {
		t.Fatalf("SendMsg = (%d, %v), want (1, nil)", n, err)
	}

	buf := make([]byte, 10)
	vfs.Lock()
	res, err := b.RecvMsg(vfs, [][]byte{buf}, 2, MsgDontwait)
	vfs.Unlock()
	if err != nil || res.N != 1 || len(res.Rights) != 2 || res.Flags&MsgCtrunc != 0 {
		t.Fatalf("RecvMsg(cap=2) = %+v, %v; want N=1, 2 rights, no CTRUNC", res, err)
	}

	// Repeat with room for one fd only.
	fd3, _ := vfs.(*referenceVFS).AddFileStreamLocked(NewEndpoint(vfs, SockDgram))
	fd4, _ := vfs.(*referenceVFS).AddFileStreamLocked(NewEndpoint(vfs, SockDgram))
	vfs.Lock()
	n, err = a.SendMsg(vfs, [][]byte{[]byte("y")}, []int{fd3, fd4}, 0)
	vfs.Unlock()
	if err != nil || n != 1 {
		t.Fatalf("second SendMsg = (%d, %v), want (1, nil)", n, err)
	}

	vfs.Lock()
	res, err = b.RecvMsg(vfs, [][]byte{buf}, 1, MsgDontwait)
	vfs.Unlock()
	if err != nil || res.N != 1 || len(res.Rights) != 1 || res.Flags&MsgCtrunc == 0 {
		t.Fatalf("RecvMsg(cap=1) = %+v, %v; want N=1, 1 right, CTRUNC set", res, err)
	}
}

// Scenario 5 (§8.5): half-close EOF.
func TestScenarioHalfCloseEOF(t *testing.T) {
	vfs := NewVFS()
	a, b := NewPair(vfs, SockStream)

	vfs.Lock()
	fdA, _ := vfs.(*referenceVFS).AddFileStreamLocked(a)
	vfs.Unlock()

	vfs.Lock()
	vfs.CloseLocked(fdA)
	vfs.Unlock()

	buf := make([]byte, 10)
	vfs.Lock()
	res, err := b.RecvMsg(vfs, [][]byte{buf}, 0, MsgDontwait)
	vfs.Unlock()
	if err != nil || res.N != 0 {
		t.Fatalf("RecvMsg after peer close = (%+v, %v), want (N=0, nil) for EOF", res, err)
	}

	vfs.Lock()
	_, err = b.SendMsg(vfs, [][]byte{[]byte("z")}, nil, 0)
	vfs.Unlock()
	if err != ErrConnectionReset {
		t.Fatalf("SendMsg after peer close = %v, want ErrConnectionReset", err)
	}
}

// Scenario 6 (§8.6): DGRAM truncation.
func TestScenarioDatagramTruncation(t *testing.T) {
	vfs := NewVFS()
	a, b := NewPair(vfs, SockDgram)

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}
	vfs.Lock()
	n, err := a.SendMsg(vfs, [][]byte{payload}, nil, 0)
	vfs.Unlock()
	if err != nil || n != 100 {
		t.Fatalf("SendMsg = (%d, %v), want (100, nil)", n, err)
	}

	buf := make([]byte, 40)
	vfs.Lock()
	res, err := b.RecvMsg(vfs, [][]byte{buf}, 0, MsgDontwait)
	empty := b.rxDgram.empty()
	vfs.Unlock()
	if err != nil || res.N != 40 || res.Flags&MsgTrunc == 0 {
		t.Fatalf("RecvMsg = %+v, %v; want N=40, MSG_TRUNC set", res, err)
	}
	if !empty {
		t.Fatalf("datagram queue not drained after truncated read")
	}
	if diff := cmp.Diff(payload[:40], buf); diff != "" {
		t.Fatalf("payload prefix mismatch (-want +got):\n%s", diff)
	}
}

// SO_PEERCRED must reflect the peer's credentials captured at pairing time
// (§8 universal invariant).
func TestPeerCredentialsCachedOnConnect(t *testing.T) {
	vfs := NewVFS(WithProcessEmulator(staticProcessEmulator{pid: 42, uid: 7, gid: 9}))
	a, b := NewPair(vfs, SockStream)

	if got, want := b.PeerCredentials(), (Credentials{PID: 42, UID: 7, GID: 9}); got != want {
		t.Fatalf("b.PeerCredentials() = %+v, want %+v", got, want)
	}
	if got, want := a.PeerCredentials(), (Credentials{PID: 42, UID: 7, GID: 9}); got != want {
		t.Fatalf("a.PeerCredentials() = %+v, want %+v", got, want)
	}
}

func TestNeverPollOutDuringConnecting(t *testing.T) {
	vfs := NewVFS()
	server := NewEndpoint(vfs, SockStream)
	addr, addrLen := abstractAddr("pollsvc")
	vfs.Lock()
	server.Bind(vfs, unix.AF_UNIX, addr, addrLen)
	server.Listen(vfs, 1)
	vfs.Unlock()

	client := NewEndpoint(vfs, SockStream)
	done := make(chan struct{})
	go func() {
		vfs.Lock()
		client.Connect(vfs, unix.AF_UNIX, addr, addrLen)
		vfs.Unlock()
		close(done)
	}()

	for {
		vfs.Lock()
		queued := len(server.pendingConnections)
		if queued == 1 {
			ev := client.GetPollEvents()
			vfs.Unlock()
			if ev&PollOut != 0 {
				t.Fatalf("GetPollEvents during CONNECTING = %#x, POLLOUT must never be set", ev)
			}
			break
		}
		vfs.Unlock()
		time.Sleep(time.Millisecond)
	}

	vfs.Lock()
	server.Accept(vfs)
	vfs.Unlock()
	<-done
}
