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

// PeerCredentials implements getsockopt(SOL_SOCKET, SO_PEERCRED) (§4.9): it
// copies out the cached peer_cred, which is (0, -1, -1) until a connection
// is established (§3).
func (e *Endpoint) PeerCredentials() Credentials {
	return e.peerCred
}

// PassCred implements getsockopt(SOL_SOCKET, SO_PASSCRED).
func (e *Endpoint) PassCred() bool {
	return e.passCred
}

// SetPassCred implements setsockopt(SOL_SOCKET, SO_PASSCRED): when set,
// RecvMsg attaches SCM_CREDENTIALS to subsequent reads (§3, §4.8).
func (e *Endpoint) SetPassCred(v bool) {
	e.passCred = v
}

// FIONREAD implements the §4.10 ioctl: for STREAM, the current ring size;
// for DGRAM/SEQPACKET, the size of the head datagram's payload, or 0.
func (e *Endpoint) FIONREAD() int {
	if e.socketType == SockStream {
		if e.rxRing == nil {
			return 0
		}
		return e.rxRing.Size()
	}
	if dg := e.rxDgram.front(); dg != nil {
		return len(dg.Payload)
	}
	return 0
}
