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

// NameRegistry maps a bind name to exactly one live Endpoint. Two instances
// exist in a VFS: the abstract namespace and the logd pathname namespace
// (§4.2). Both are guarded by the caller's lock (the VFS global mutex); the
// registry itself does no locking.
type NameRegistry struct {
	filter func(name string) bool
	byName map[string]*Endpoint
}

// NewAbstractNamespace creates the abstract-name registry. Any name is
// accepted: the abstract namespace has no notion of well-known names.
func NewAbstractNamespace() *NameRegistry {
	return &NameRegistry{byName: make(map[string]*Endpoint)}
}

// NewLogdNamespace creates the logd pathname registry. Only the three
// well-known logd socket paths are accepted; this mirrors
// posix_translation/logd_socket_namespace.cc verbatim, including its
// EOPNOTSUPP on any other path (§9, preserved Open Question).
func NewLogdNamespace() *NameRegistry {
	return &NameRegistry{
		byName: make(map[string]*Endpoint),
		filter: func(name string) bool {
			switch name {
			case "/dev/socket/logd", "/dev/socket/logdr", "/dev/socket/logdw":
				return true
			default:
				return false
			}
		},
	}
}

// Bind associates name with ep. Passing a nil ep clears the binding (used by
// an Endpoint's last-reference hook, §4.12). Rebinding a name already held by
// a live endpoint fails with EADDRINUSE.
func (r *NameRegistry) Bind(name string, ep *Endpoint) *Errno {
	if r.filter != nil && !r.filter(name) {
		return ErrNotSupported
	}
	if ep == nil {
		delete(r.byName, name)
		return nil
	}
	if _, taken := r.byName[name]; taken {
		return ErrAddressInUse
	}
	r.byName[name] = ep
	return nil
}

// Lookup returns the endpoint bound to name, or nil if none.
func (r *NameRegistry) Lookup(name string) *Endpoint {
	return r.byName[name]
}
