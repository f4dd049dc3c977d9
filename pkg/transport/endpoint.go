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

// Package transport implements the local-socket endpoint object and its two
// name registries: the hard core of an in-process AF_UNIX emulation for a
// sandboxed runtime that cannot call the host kernel's socket APIs. See
// SPEC_FULL.md for the full design this package follows.
package transport

import "time"

// Endpoint is a single AF_UNIX socket instance (§3). A pair of Endpoints
// with mutual peer links forms a connection; a LISTENING Endpoint never
// carries data and only pairs incoming clients with freshly minted server
// Endpoints during Accept.
//
// All fields are guarded by the VFS passed into every method; Endpoint holds
// no lock of its own (§5, §9: the lock is a process-wide VFS singleton
// injected as a collaborator, not an ambient global).
type Endpoint struct {
	socketType SockType
	streamDir  StreamDir
	nonblock   bool

	st state

	peer *Endpoint

	abstractName string
	logdName     string
	// logdTargetName is the destination name recorded by an unconnected
	// DGRAM endpoint's connect() call, consulted by SendMsg (§4.6, §4.8).
	logdTargetName     string
	logdTargetAddrKind addrKind

	backlog             int
	pendingConnections  []*Endpoint

	rxRing  *RingBuffer
	rxDgram datagramQueue
	rxCtrl  controlMessageQueue

	myCred   Credentials
	peerCred Credentials
	passCred bool

	recvTimeout time.Duration

	// closed is set by the last-reference hook (§4.12); a pending connect
	// entry belonging to a closed client is discarded rather than accepted.
	closed bool

	// connectResult is set on a queued (CONNECTING) client by the listening
	// endpoint's last-reference hook when the listener is closed while the
	// client is still waiting: Connect's wait loop surfaces it instead of
	// hanging on a listener that will never call Accept (§4.6, §4.7 step 3).
	connectResult *Errno

	// refs counts the live fd-table entries referring to this Endpoint
	// (an Endpoint may be reachable from more than one fd after dup(2) or
	// after an SCM_RIGHTS transfer); onLastFileRef fires when it reaches
	// zero (§3 Lifecycle, §5).
	refs int
}

// newEndpoint allocates an Endpoint in state NEW, snapshotting credentials
// from the process emulator at construction time (§3: my_cred).
func newEndpoint(vfs VFS, stype SockType, dir StreamDir) *Endpoint {
	e := &Endpoint{
		socketType: stype,
		streamDir:  dir,
		st:         stateNew,
		myCred:     snapshotCredentials(vfs.Process()),
		peerCred:   noPeerCredentials,
	}
	if stype == SockStream && dir != WriteOnly {
		e.rxRing = NewRingBuffer(streamBufferSize)
	}
	return e
}

// NewEndpoint creates a single unbound, unconnected Endpoint as socket(2)
// would for SOCK_DGRAM, or as the first half of a later connect/listen
// sequence for SOCK_STREAM/SOCK_SEQPACKET.
func NewEndpoint(vfs VFS, stype SockType) *Endpoint {
	e := newEndpoint(vfs, stype, ReadWrite)
	if stype == SockDgram {
		// DGRAM has no handshake: it is immediately usable (§4.3).
		e.st = stateConnected
	}
	return e
}

// NewPair allocates a connected pair as socketpair(2) would (§4.3: "NEW ->
// CONNECTED directly for DGRAM ... pair-binds if a peer was provided via
// socketpair").
func NewPair(vfs VFS, stype SockType) (a, b *Endpoint) {
	a = newEndpoint(vfs, stype, ReadWrite)
	b = newEndpoint(vfs, stype, ReadWrite)
	a.st, b.st = stateConnected, stateConnected
	setPeer(a, b)
	return a, b
}

// NewPipe allocates a half-duplex pair: a READ_ONLY endpoint and a
// WRITE_ONLY endpoint sharing a single stream ring, as pipe(2) would (§3,
// §4.11; grounded on LocalSocket::READ_ONLY/WRITE_ONLY in the teacher's
// posix_translation/local_socket.h).
func NewPipe(vfs VFS) (readEnd, writeEnd *Endpoint) {
	readEnd = newEndpoint(vfs, SockStream, ReadOnly)
	writeEnd = newEndpoint(vfs, SockStream, WriteOnly)
	readEnd.st, writeEnd.st = stateConnected, stateConnected
	setPeer(readEnd, writeEnd)
	return readEnd, writeEnd
}

// setPeer installs the symmetric peer link and stamps peer credentials both
// ways (§3 invariant: "peer is symmetric").
func setPeer(a, b *Endpoint) {
	a.peer, b.peer = b, a
	a.peerCred, b.peerCred = b.myCred, a.myCred
}

// SetNonblocking toggles O_NONBLOCK. Stream Connect and Accept refuse to
// operate in non-blocking mode (§4.6, §4.7: ENOSYS, an explicit limitation).
func (e *Endpoint) SetNonblocking(nb bool) { e.nonblock = nb }

func (e *Endpoint) isBlocking() bool { return !e.nonblock }

// SetRecvTimeout sets SO_RCVTIMEO; zero means wait forever.
func (e *Endpoint) SetRecvTimeout(d time.Duration) { e.recvTimeout = d }

// State exposes the current state machine value for tests and diagnostics.
func (e *Endpoint) State() string { return e.st.String() }

// Type returns the socket type.
func (e *Endpoint) Type() SockType { return e.socketType }

// Bind implements §4.4. addr is the raw sun_path bytes (not including
// sa_family); addrLen is the full addrlen the caller passed.
func (e *Endpoint) Bind(vfs VFS, family uint16, addr []byte, addrLen int) *Errno {
	if !validFamily(family) {
		return ErrInvalid
	}
	if e.abstractName != "" || e.logdName != "" {
		return ErrInvalid
	}
	parsed, errno := parseSockaddrUn(addr, addrLen)
	if errno != nil {
		return errno
	}

	switch parsed.kind {
	case addrLogd:
		if errno := vfs.Logd().Bind(parsed.name, e); errno != nil {
			return errno
		}
		e.logdName = parsed.name
	case addrAbstract:
		if errno := vfs.Abstract().Bind(parsed.name, e); errno != nil {
			return errno
		}
		e.abstractName = parsed.name
	}
	return nil
}

// Listen implements §4.5.
func (e *Endpoint) Listen(vfs VFS, backlog int) *Errno {
	if e.socketType == SockDgram {
		return ErrNotSupported
	}
	if e.abstractName == "" && e.logdName == "" {
		return ErrInvalid
	}
	e.backlog = backlog
	e.st = stateListening
	return nil
}

// lookupTarget resolves a bind name against the registry it was parsed as
// belonging to.
func lookupTarget(vfs VFS, parsed parsedAddr) *Endpoint {
	if parsed.kind == addrAbstract {
		return vfs.Abstract().Lookup(parsed.name)
	}
	return vfs.Logd().Lookup(parsed.name)
}

// Connect implements §4.6. The caller must hold the VFS lock; Connect
// releases and reacquires it internally while blocked.
func (e *Endpoint) Connect(vfs VFS, family uint16, addr []byte, addrLen int) *Errno {
	if e.socketType == SockDgram {
		parsed, errno := parseSockaddrUn(addr, addrLen)
		if errno != nil {
			return errno
		}
		e.logdTargetName = parsed.name
		e.logdTargetAddrKind = parsed.kind
		return nil
	}

	if e.st == stateConnected || e.st == stateListening {
		return ErrIsConnected
	}
	if e.nonblock {
		return ErrNotImplemented
	}
	if !validFamily(family) {
		return ErrInvalid
	}
	parsed, errno := parseSockaddrUn(addr, addrLen)
	if errno != nil {
		return errno
	}

	target := lookupTarget(vfs, parsed)
	if target == nil {
		return ErrConnectionRefused
	}
	if target.socketType != e.socketType || target.st != stateListening {
		return ErrConnectionRefused
	}
	if len(target.pendingConnections) >= target.backlog {
		return ErrConnectionRefused
	}

	wasEmpty := len(target.pendingConnections) == 0
	target.pendingConnections = append(target.pendingConnections, e)
	e.st = stateConnecting
	if wasEmpty {
		vfs.Broadcast()
	}

	for e.st == stateConnecting {
		if e.closed {
			return ErrBadFD
		}
		vfs.Wait()
	}
	if e.connectResult != nil {
		err := e.connectResult
		e.connectResult = nil
		return err
	}
	return nil
}

// Accept implements §4.7. It returns the newly connected server-side
// Endpoint together with the fd the VFS just allocated for it: the caller
// owns that fd and is responsible for eventually releasing it via
// vfs.CloseLocked, exactly as it would for any other fd-table entry.
func (e *Endpoint) Accept(vfs VFS) (*Endpoint, int, *Errno) {
	if e.st != stateListening {
		return nil, -1, ErrNotSupported
	}
	if e.nonblock {
		return nil, -1, ErrNotImplemented
	}

	deadline := e.recvDeadline()
	for {
		e.discardClosedPendingLocked()
		if len(e.pendingConnections) > 0 {
			break
		}
		if e.closed || e.st != stateListening {
			return nil, -1, ErrBadFD
		}
		if e.waitWithTimeout(vfs, deadline) {
			return nil, -1, ErrWouldBlock
		}
	}

	server := newEndpoint(vfs, e.socketType, ReadWrite)
	server.st = stateConnected

	fd, errno := vfs.AddFileStreamLocked(server)
	if errno != nil {
		return nil, -1, errno
	}

	client := e.pendingConnections[0]
	e.pendingConnections = e.pendingConnections[1:]

	setPeer(server, client)
	client.st = stateConnected

	vfs.Broadcast()
	return server, fd, nil
}

// discardClosedPendingLocked drops queued connect attempts whose client
// Endpoint has since been torn down, detected by its closed flag (set by
// onLastFileRef). It removes nothing unless a client's last reference
// dropped while it was still queued.
func (e *Endpoint) discardClosedPendingLocked() {
	live := e.pendingConnections[:0]
	for _, c := range e.pendingConnections {
		if c.closed {
			continue
		}
		live = append(live, c)
	}
	e.pendingConnections = live
}

// recvDeadline computes the absolute deadline a blocking wait loop should
// use, per the current recv_timeout setting. It must be computed once, at
// the start of the blocking operation, and the same deadline reused across
// every iteration of that operation's wait loop: recomputing it fresh on
// every spurious wakeup would let an unrelated Broadcast elsewhere in the
// VFS (every send/accept/connect broadcasts the single process-wide
// condition variable, §5) keep re-arming the timeout indefinitely.
func (e *Endpoint) recvDeadline() time.Time {
	if e.recvTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(e.recvTimeout)
}

// waitWithTimeout waits on the VFS condition until deadline (or forever, if
// deadline is zero), and reports whether the wait timed out.
func (e *Endpoint) waitWithTimeout(vfs VFS, deadline time.Time) (timedOut bool) {
	if deadline.IsZero() {
		vfs.Wait()
		return false
	}
	return vfs.WaitUntil(deadline)
}
