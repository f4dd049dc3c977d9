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

// Datagram is a single DGRAM/SEQPACKET record: the complete scatter/gather
// payload concatenated into one buffer, plus the credentials of the sender
// captured at send time (§3, §4.8).
type Datagram struct {
	Payload    []byte
	SenderCred Credentials
}

// datagramQueue is the per-endpoint FIFO of pending Datagrams. Unlike
// RingBuffer, it is intentionally unbounded (§1 Non-goals: "flow control over
// datagrams (datagram queues are unbounded by design)").
type datagramQueue struct {
	q []Datagram
}

func (d *datagramQueue) push(dg Datagram) {
	d.q = append(d.q, dg)
}

func (d *datagramQueue) empty() bool {
	return len(d.q) == 0
}

func (d *datagramQueue) front() *Datagram {
	if len(d.q) == 0 {
		return nil
	}
	return &d.q[0]
}

func (d *datagramQueue) pop() {
	if len(d.q) == 0 {
		return
	}
	// Avoid retaining the popped payload's backing array forever.
	d.q[0] = Datagram{}
	d.q = d.q[1:]
}
