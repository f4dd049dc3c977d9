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
	"golang.org/x/sys/unix"
)

// Errno is the POSIX return-value contract for every Endpoint operation:
// callers get (n, err) where err, if non-nil, is always an *Errno wrapping
// one of the constants below. Internal plumbing errors never leak through
// this type; they are degraded to the nearest Errno before crossing the
// Endpoint API (see §7 of the design).
type Errno struct {
	unix.Errno
}

func newErrno(e unix.Errno) *Errno {
	return &Errno{Errno: e}
}

// Is reports whether err wraps the same errno value as e, so callers can
// write errors.Is(err, ErrWouldBlock) instead of a type assertion plus field
// read.
func (e *Errno) Is(target error) bool {
	other, ok := target.(*Errno)
	if !ok {
		return false
	}
	return e.Errno == other.Errno
}

// The errno values this emulation is allowed to return, per §6.
var (
	ErrInvalid           = newErrno(unix.EINVAL)
	ErrIsConnected       = newErrno(unix.EISCONN)
	ErrNotImplemented    = newErrno(unix.ENOSYS)
	ErrNotSupported      = newErrno(unix.EOPNOTSUPP)
	ErrConnectionRefused = newErrno(unix.ECONNREFUSED)
	ErrConnectionReset   = newErrno(unix.ECONNRESET)
	ErrWouldBlock        = newErrno(unix.EAGAIN)
	ErrBadFD             = newErrno(unix.EBADF)
	ErrTooManyOpenFiles  = newErrno(unix.EMFILE)
	ErrIllegalSeek       = newErrno(unix.ESPIPE)
	ErrAddressInUse      = newErrno(unix.EADDRINUSE)
)
