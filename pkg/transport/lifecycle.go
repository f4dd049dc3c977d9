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

// onLastFileRef implements §4.12: when an Endpoint's last FD reference is
// released, its peer link is severed symmetrically (so the peer observes
// EOF/HUP) and any name binding is cleared. This mirrors
// LocalSocket::OnLastFileRef in the teacher's posix_translation/local_socket.cc
// almost line for line, generalized to also unbind from whichever
// NameRegistry the Endpoint was bound in, to drain any undelivered
// SCM_RIGHTS so their fds are not leaked (§5: "owned by the rx_ctrl entry
// until either delivered ... or closed"), and to refuse any clients still
// queued in pendingConnections when a LISTENING endpoint is closed out from
// under them.
func (e *Endpoint) onLastFileRef(vfs VFS) {
	e.closed = true

	if e.peer != nil {
		e.peer.peer = nil
		e.peer = nil
	}

	// A closed listener will never call Accept again: every client still
	// queued on it would otherwise wait on a connection that can never be
	// completed, so refuse them here (§4.6, §4.7 step 3).
	for _, c := range e.pendingConnections {
		c.st = stateNew
		c.connectResult = ErrConnectionRefused
	}
	e.pendingConnections = nil

	// Always broadcast, even with no peer and no pending connections: a
	// LISTENING endpoint never has a peer, but a blocked Accept() on it
	// still needs to wake up and observe e.closed.
	vfs.Broadcast()

	if e.abstractName != "" {
		vfs.Abstract().Bind(e.abstractName, nil)
		e.abstractName = ""
	}
	if e.logdName != "" {
		vfs.Logd().Bind(e.logdName, nil)
		e.logdName = ""
	}

	for !e.rxCtrl.empty() {
		fds := e.rxCtrl.front()
		for _, fd := range *fds {
			vfs.CloseLocked(fd)
		}
		e.rxCtrl.pop()
	}
}
