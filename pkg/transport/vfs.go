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
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// errUnknownFD is the internal (non-errno) failure a caller-supplied fd
// that the VFS never issued produces; wrapInternal attaches the offending
// fd and call site before it is logged (SPEC_FULL.md §10.2).
var errUnknownFD = errors.New("fd not present in table")

// VFS is the narrow surface an Endpoint consumes from the surrounding
// virtual file system (§6, collaborator contract). It owns the single
// process-wide lock and condition variable that every blocking operation
// waits on (§5).
type VFS interface {
	Lock()
	Unlock()

	// Wait blocks on the condition variable until the next Broadcast. The
	// caller must hold the lock; Wait releases it and reacquires it before
	// returning, exactly like sync.Cond.Wait.
	Wait()

	// WaitUntil is like Wait but also returns true if deadline elapses
	// before a Broadcast wakes the caller. A zero deadline means wait
	// forever.
	WaitUntil(deadline time.Time) (timedOut bool)

	Broadcast()

	// AddFileStreamLocked installs ep in the FD table and returns its new
	// fd, or -1 with ErrTooManyOpenFiles if the table is full.
	AddFileStreamLocked(ep *Endpoint) (fd int, err *Errno)

	// DupLocked duplicates fd, returning a new fd referring to the same
	// underlying stream. hint, if >= 0, requests a specific fd number (as
	// dup2 would); -1 means "pick any."
	DupLocked(fd int, hint int) (newFD int, err *Errno)

	// CloseLocked closes fd, releasing the underlying stream if this was
	// its last reference.
	CloseLocked(fd int)

	// Abstract and Logd return the two NameRegistry singletons a bind()
	// call chooses between (§4.4).
	Abstract() *NameRegistry
	Logd() *NameRegistry

	// Process returns the collaborator supplying pid/uid/gid for
	// credential snapshotting.
	Process() ProcessEmulator
}

// referenceVFS is a minimal, in-memory VFS used by tests and by the
// cmd/unetctl demo: a real sandboxed runtime supplies its own VFS that also
// tracks paths, permissions and non-socket file streams, but the locking and
// registry surface Endpoint needs is exactly this.
type referenceVFS struct {
	mu  sync.Mutex
	cnd *sync.Cond

	abstract *NameRegistry
	logd     *NameRegistry
	process  ProcessEmulator

	fds    map[int]*Endpoint
	nextFD int

	log *logrus.Entry
}

// Option configures a referenceVFS constructed by NewVFS.
type Option func(*referenceVFS)

// WithProcessEmulator overrides the default (pid=1, uid=0, gid=0) process
// emulator, e.g. in tests that exercise SO_PEERCRED across distinct
// credentials.
func WithProcessEmulator(pe ProcessEmulator) Option {
	return func(r *referenceVFS) { r.process = pe }
}

// WithLogger attaches a logrus entry used for the handful of lifecycle
// events the reference VFS itself logs (fd table exhaustion, an unknown fd
// passed to DupLocked or CloseLocked); the Endpoint type itself never logs
// (see SPEC_FULL.md §10.1).
func WithLogger(log *logrus.Entry) Option {
	return func(r *referenceVFS) { r.log = log }
}

type staticProcessEmulator struct {
	pid int32
	uid uint32
	gid uint32
}

func (s staticProcessEmulator) GetPid() int32  { return s.pid }
func (s staticProcessEmulator) GetUid() uint32 { return s.uid }
func (s staticProcessEmulator) GetGid() uint32 { return s.gid }

// NewVFS constructs a reference VFS with fresh abstract and logd registries.
func NewVFS(opts ...Option) VFS {
	r := &referenceVFS{
		abstract: NewAbstractNamespace(),
		logd:     NewLogdNamespace(),
		process:  staticProcessEmulator{pid: 1, uid: 0, gid: 0},
		fds:      make(map[int]*Endpoint),
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	r.cnd = sync.NewCond(&r.mu)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *referenceVFS) Lock()   { r.mu.Lock() }
func (r *referenceVFS) Unlock() { r.mu.Unlock() }
func (r *referenceVFS) Wait()   { r.cnd.Wait() }

func (r *referenceVFS) WaitUntil(deadline time.Time) bool {
	if deadline.IsZero() {
		r.cnd.Wait()
		return false
	}

	// sync.Cond has no timed wait, so a timer goroutine closes done and
	// broadcasts once the deadline elapses. The wait reports a timeout
	// whenever that timer has fired by the time the lock is reacquired,
	// even if a real Broadcast also woke the caller; callers (Accept,
	// RecvMsg) return EAGAIN on a timeout without re-checking their
	// predicate.
	done := make(chan struct{})
	timer := time.AfterFunc(time.Until(deadline), func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		select {
		case <-done:
		default:
			close(done)
			r.cnd.Broadcast()
		}
	})
	r.cnd.Wait()
	timer.Stop()
	select {
	case <-done:
		return true
	default:
		return false
	}
}

func (r *referenceVFS) Broadcast() { r.cnd.Broadcast() }

func (r *referenceVFS) AddFileStreamLocked(ep *Endpoint) (int, *Errno) {
	for i := 0; i < 1<<20; i++ {
		fd := r.nextFD
		r.nextFD++
		if _, taken := r.fds[fd]; !taken {
			r.fds[fd] = ep
			ep.refs++
			return fd, nil
		}
	}
	r.log.Warn("fd table exhausted")
	return -1, ErrTooManyOpenFiles
}

func (r *referenceVFS) DupLocked(fd int, hint int) (int, *Errno) {
	ep, ok := r.fds[fd]
	if !ok {
		r.log.Warn(wrapInternal(errUnknownFD, fmt.Sprintf("DupLocked(%d)", fd)))
		return -1, ErrBadFD
	}
	if hint >= 0 {
		if _, taken := r.fds[hint]; taken {
			return -1, ErrBadFD
		}
		r.fds[hint] = ep
		ep.refs++
		return hint, nil
	}
	return r.AddFileStreamLocked(ep)
}

func (r *referenceVFS) CloseLocked(fd int) {
	ep, ok := r.fds[fd]
	if !ok {
		r.log.Warn(wrapInternal(errUnknownFD, fmt.Sprintf("CloseLocked(%d)", fd)))
		return
	}
	delete(r.fds, fd)
	ep.refs--
	if ep.refs <= 0 {
		ep.onLastFileRef(r)
	}
}

func (r *referenceVFS) Abstract() *NameRegistry   { return r.abstract }
func (r *referenceVFS) Logd() *NameRegistry       { return r.logd }
func (r *referenceVFS) Process() ProcessEmulator  { return r.process }

// wrapInternal is used for the handful of failure paths that are not part of
// the POSIX errno contract (e.g. a caller-supplied fd the VFS itself never
// issued); it exists so non-socket-facing internal code can still report
// context-rich errors via github.com/pkg/errors without that type leaking
// into the Endpoint API (SPEC_FULL.md §10.2).
func wrapInternal(err error, msg string) error {
	return errors.Wrap(err, msg)
}
