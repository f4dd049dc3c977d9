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

// isSelectReadReady mirrors LocalSocket::IsSelectReadReady in the teacher's
// posix_translation/local_socket.cc: STREAM is ready when its ring has data
// or its peer is gone (to surface EOF); DGRAM/SEQPACKET is ready whenever
// its datagram queue is non-empty. This is also the predicate RecvMsg's
// blocking wait re-evaluates (§4.8, §6).
func (e *Endpoint) isSelectReadReady() bool {
	if e.socketType == SockStream {
		return (e.rxRing != nil && e.rxRing.Size() > 0) || e.peer == nil
	}
	return !e.rxDgram.empty()
}

// canRead implements the CanRead predicate of §4.11: true for non-DGRAM
// endpoints once the peer is closed (so EOF is visible as readable), else
// true whenever there is buffered data to drain.
func (e *Endpoint) canRead() bool {
	if e.socketType != SockDgram && e.peer == nil {
		return true
	}
	if e.socketType == SockStream {
		return e.rxRing != nil && e.rxRing.Size() > 0
	}
	return !e.rxDgram.empty()
}

// canWrite implements the CanWrite predicate of §4.11: true when the peer is
// gone (the write will simply fail fast) or the peer has room (STREAM) or
// unconditionally for DGRAM, where queues are unbounded by design.
func (e *Endpoint) canWrite() bool {
	if e.peer == nil {
		return true
	}
	if e.socketType == SockStream {
		return e.peer.rxRing != nil && e.peer.rxRing.Size() < e.peer.rxRing.Capacity()
	}
	return true
}

// GetPollEvents implements §4.11's state/direction table verbatim.
func (e *Endpoint) GetPollEvents() int16 {
	switch e.st {
	case stateNew:
		return PollOut | PollHup

	case stateConnecting:
		return 0

	case stateConnected:
		switch e.streamDir {
		case ReadOnly:
			var ev int16
			if e.rxRing != nil && e.rxRing.Size() > 0 {
				ev |= PollIn
			}
			if e.peer == nil {
				ev |= PollHup
			}
			return ev
		case WriteOnly:
			if e.peer == nil {
				return PollOut | PollErr
			}
			if e.peer.rxRing != nil && e.peer.rxRing.Size() < e.peer.rxRing.Capacity() {
				return PollOut
			}
			return 0
		default: // ReadWrite
			var ev int16
			if e.canRead() {
				ev |= PollIn
			}
			if e.canWrite() {
				ev |= PollOut
			}
			if e.socketType != SockDgram && e.peer == nil {
				ev |= PollHup
			}
			return ev
		}

	case stateListening:
		if len(e.pendingConnections) > 0 {
			return PollIn | PollOut
		}
		return PollOut

	default:
		return 0
	}
}
