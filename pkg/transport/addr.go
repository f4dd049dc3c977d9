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

// sunPathOffset is offsetof(sockaddr_un, sun_path): sa_family_t is a
// 16-bit field on Linux, so sun_path starts at byte 2.
const sunPathOffset = 2

// addrKind distinguishes the two bind namespaces, chosen purely by whether
// sun_path[0] is NUL (§4.4, §6, §9 preserved Open Question: this differs
// from Linux filesystem semantics for pathname sockets but matches the
// embedded use case this emulation targets).
type addrKind int

const (
	addrLogd addrKind = iota
	addrAbstract
)

// parsedAddr is the name extracted from a raw sockaddr_un, annotated with
// which namespace it belongs to.
type parsedAddr struct {
	kind addrKind
	name string
}

// parseSockaddrUn validates and decodes a raw sockaddr_un payload (the bytes
// of sun_path as delivered by the caller, NOT including sa_family), per §4.4
// and §6. addrLen is the full addrlen the caller passed to bind/connect,
// used to compute how many sun_path bytes are significant.
func parseSockaddrUn(path []byte, addrLen int) (parsedAddr, *Errno) {
	if addrLen < sunPathOffset+1 {
		return parsedAddr{}, ErrInvalid
	}
	pathLen := addrLen - sunPathOffset
	if pathLen > len(path) {
		pathLen = len(path)
	}
	if pathLen == 0 {
		return parsedAddr{}, ErrInvalid
	}

	if path[0] == 0 {
		// Abstract: the name is the remaining bytes verbatim, NULs
		// included, per §6.
		name := string(path[1:pathLen])
		return parsedAddr{kind: addrAbstract, name: name}, nil
	}

	// Logd (pathname-form): a NUL-terminated C string.
	end := pathLen
	for i, b := range path[:pathLen] {
		if b == 0 {
			end = i
			break
		}
	}
	return parsedAddr{kind: addrLogd, name: string(path[:end])}, nil
}

// validFamily confirms the sockaddr's sa_family is AF_UNIX, as every bind/connect
// call must check before looking at sun_path (§4.4).
func validFamily(family uint16) bool {
	return family == unix.AF_UNIX
}
