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

// MsgFlags carries the small subset of send/recv flags this emulation
// interprets: MSG_DONTWAIT (skip blocking even on a blocking socket) on
// recv, and MSG_TRUNC/MSG_CTRUNC as recv *outputs* (§4.8, §6). SendMsg
// never blocks and ignores its flags.
type MsgFlags int

const (
	MsgDontwait MsgFlags = 1 << iota
	MsgTrunc
	MsgCtrunc
)

// RecvResult is the outcome of a RecvMsg call: bytes delivered into the
// caller's iovecs, any SCM_RIGHTS fds delivered (already duplicated into the
// receiver's fd table), the sender's credentials if SCM_CREDENTIALS was
// attached, and output flags (MSG_TRUNC/MSG_CTRUNC).
type RecvResult struct {
	N           int
	Rights      []int
	Credentials *Credentials
	Flags       MsgFlags
}

// SendMsg implements §4.8 sendmsg. data is the scatter/gather payload as a
// list of buffers (already concatenated logically); rights is the raw list
// of SCM_RIGHTS fds the caller wants to pass, if any.
func (e *Endpoint) SendMsg(vfs VFS, data [][]byte, rights []int, flags MsgFlags) (int, *Errno) {
	if e.streamDir == ReadOnly {
		return 0, ErrBadFD
	}
	if (e.socketType == SockStream || e.socketType == SockSeqpacket) && e.st != stateConnected {
		return 0, ErrInvalid
	}

	if e.peer != nil {
		return e.peer.deliver(vfs, data, rights, e.myCred)
	}

	if e.socketType == SockDgram && e.logdTargetName != "" {
		target := lookupTarget(vfs, parsedAddr{kind: e.logdTargetAddrKind, name: e.logdTargetName})
		if target == nil {
			return 0, ErrConnectionRefused
		}
		return target.deliver(vfs, data, rights, e.myCred)
	}

	if e.socketType == SockDgram {
		return 0, ErrConnectionRefused
	}
	return 0, ErrConnectionReset
}

// deliver is invoked on the *receiver* endpoint (§4.8 "deliver").
func (e *Endpoint) deliver(vfs VFS, data [][]byte, rights []int, senderCred Credentials) (int, *Errno) {
	bytesAttempted := 0
	for _, b := range data {
		bytesAttempted += len(b)
	}

	var bytesDelivered int
	switch e.socketType {
	case SockStream:
		for _, b := range data {
			if len(b) == 0 {
				continue
			}
			n := 0
			if e.rxRing != nil {
				n = e.rxRing.Write(b)
			}
			bytesDelivered += n
			if n < len(b) {
				break
			}
		}
	default: // SockDgram, SockSeqpacket
		if bytesAttempted > 0 {
			concat := make([]byte, 0, bytesAttempted)
			for _, b := range data {
				concat = append(concat, b...)
			}
			e.rxDgram.push(Datagram{Payload: concat, SenderCred: senderCred})
			bytesDelivered = bytesAttempted
		}
	}

	if bytesDelivered > 0 && len(rights) > 0 {
		dup := make([]int, 0, len(rights))
		for _, fd := range rights {
			newFD, errno := vfs.DupLocked(fd, -1)
			if errno != nil {
				continue
			}
			dup = append(dup, newFD)
		}
		e.rxCtrl.push(dup)
	}

	if bytesDelivered > 0 {
		vfs.Broadcast()
		return bytesDelivered, nil
	}

	if bytesAttempted != 0 {
		return 0, ErrWouldBlock
	}
	return 0, nil
}

// RecvMsg implements §4.8 recvmsg. iov is the caller's scatter/gather read
// buffers; ctrlCapacity bounds how many SCM_RIGHTS fds fit in the caller's
// control buffer (msg_controllen, expressed as a max fd count rather than a
// raw byte budget, since the cmsg wire encoding itself is the VFS's concern
// at the syscall boundary, not this package's — see §6).
func (e *Endpoint) RecvMsg(vfs VFS, iov [][]byte, ctrlCapacity int, flags MsgFlags) (RecvResult, *Errno) {
	if e.streamDir == WriteOnly {
		return RecvResult{}, ErrBadFD
	}
	if (e.socketType == SockStream || e.socketType == SockSeqpacket) && e.st != stateConnected {
		return RecvResult{}, ErrInvalid
	}

	if e.isBlocking() && flags&MsgDontwait == 0 {
		deadline := e.recvDeadline()
		for e.peer != nil && !e.isSelectReadReady() {
			if e.waitWithTimeout(vfs, deadline) {
				return RecvResult{}, ErrWouldBlock
			}
		}
	}

	var result RecvResult
	switch e.socketType {
	case SockStream:
		for _, buf := range iov {
			if e.rxRing == nil || e.rxRing.Size() == 0 {
				break
			}
			n := e.rxRing.Read(buf, len(buf))
			result.N += n
			if n < len(buf) {
				break
			}
		}
	default: // SockDgram, SockSeqpacket
		if dg := e.rxDgram.front(); dg != nil {
			left := len(dg.Payload)
			off := 0
			for _, buf := range iov {
				if left == 0 {
					break
				}
				n := len(buf)
				if n > left {
					n = left
				}
				copy(buf[:n], dg.Payload[off:off+n])
				off += n
				left -= n
				result.N += n
			}
			if left > 0 {
				result.Flags |= MsgTrunc
			}
			if e.passCred {
				senderCred := dg.SenderCred
				result.Credentials = &senderCred
			}
			e.rxDgram.pop()
		}
	}

	if result.N > 0 && !e.rxCtrl.empty() {
		fds := e.rxCtrl.front()
		for len(*fds) > ctrlCapacity {
			last := len(*fds) - 1
			vfs.CloseLocked((*fds)[last])
			*fds = (*fds)[:last]
			result.Flags |= MsgCtrunc
		}
		result.Rights = *fds
		e.rxCtrl.pop()
	}

	if result.N > 0 && e.passCred {
		if result.Credentials == nil {
			// STREAM: use the cached peer credentials (§4.8).
			cred := e.peerCred
			result.Credentials = &cred
		}
		// DGRAM/SEQPACKET already populated Credentials from the datagram.
	} else if e.socketType == SockStream {
		result.Credentials = nil
	}

	if result.N > 0 {
		if e.peer != nil {
			vfs.Broadcast()
		}
		return result, nil
	}

	if e.peer == nil && e.socketType != SockDgram {
		return result, nil // EOF
	}
	return result, ErrWouldBlock
}
