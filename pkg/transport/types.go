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

import "golang.org/x/sys/unix"

// SockType is the socket(2) type: STREAM, DGRAM or SEQPACKET (§3).
type SockType int

const (
	SockStream SockType = iota
	SockDgram
	SockSeqpacket
)

func (t SockType) String() string {
	switch t {
	case SockStream:
		return "STREAM"
	case SockDgram:
		return "DGRAM"
	case SockSeqpacket:
		return "SEQPACKET"
	default:
		return "UNKNOWN"
	}
}

// StreamDir models the half-duplex pipe degeneracy of §3: pipes use
// READ_ONLY/WRITE_ONLY, sockets use READ_WRITE.
type StreamDir int

const (
	ReadWrite StreamDir = iota
	ReadOnly
	WriteOnly
)

// state is the Endpoint state machine of §4.3.
type state int

const (
	stateNew state = iota
	stateConnecting
	stateConnected
	stateListening
)

func (s state) String() string {
	switch s {
	case stateNew:
		return "NEW"
	case stateConnecting:
		return "CONNECTING"
	case stateConnected:
		return "CONNECTED"
	case stateListening:
		return "LISTENING"
	default:
		return "UNKNOWN"
	}
}

// Poll event bits. Endpoint.GetPollEvents returns a bitmask built from these,
// reusing golang.org/x/sys/unix's poll(2) constants directly (§4.11) rather
// than redeclaring the numeric values.
const (
	PollIn   = unix.POLLIN
	PollOut  = unix.POLLOUT
	PollErr  = unix.POLLERR
	PollHup  = unix.POLLHUP
	PollNVal = unix.POLLNVAL
)
