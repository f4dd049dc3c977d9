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

import "testing"

func TestAbstractNamespaceBindLookup(t *testing.T) {
	reg := NewAbstractNamespace()
	ep := &Endpoint{}
	if err := reg.Bind("svc", ep); err != nil {
		t.Fatalf("Bind = %v, want nil", err)
	}
	if got := reg.Lookup("svc"); got != ep {
		t.Fatalf("Lookup = %v, want %v", got, ep)
	}
	if got := reg.Lookup("nope"); got != nil {
		t.Fatalf("Lookup(unbound) = %v, want nil", got)
	}
}

func TestAbstractNamespaceDuplicateBindFails(t *testing.T) {
	reg := NewAbstractNamespace()
	a, b := &Endpoint{}, &Endpoint{}
	if err := reg.Bind("svc", a); err != nil {
		t.Fatalf("first Bind = %v, want nil", err)
	}
	if err := reg.Bind("svc", b); err != ErrAddressInUse {
		t.Fatalf("second Bind = %v, want ErrAddressInUse", err)
	}
}

func TestAbstractNamespaceUnbind(t *testing.T) {
	reg := NewAbstractNamespace()
	ep := &Endpoint{}
	reg.Bind("svc", ep)
	if err := reg.Bind("svc", nil); err != nil {
		t.Fatalf("Unbind = %v, want nil", err)
	}
	if got := reg.Lookup("svc"); got != nil {
		t.Fatalf("Lookup after unbind = %v, want nil", got)
	}
	// Rebinding after unbind succeeds.
	if err := reg.Bind("svc", &Endpoint{}); err != nil {
		t.Fatalf("Bind after unbind = %v, want nil", err)
	}
}

func TestLogdNamespaceRejectsUnknownNames(t *testing.T) {
	reg := NewLogdNamespace()
	if err := reg.Bind("/dev/socket/not-logd", &Endpoint{}); err != ErrNotSupported {
		t.Fatalf("Bind(unknown) = %v, want ErrNotSupported", err)
	}
	for _, name := range []string{"/dev/socket/logd", "/dev/socket/logdr", "/dev/socket/logdw"} {
		if err := reg.Bind(name, &Endpoint{}); err != nil {
			t.Fatalf("Bind(%q) = %v, want nil", name, err)
		}
	}
}
