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

// Credentials is the (pid, uid, gid) triple carried by SCM_CREDENTIALS and
// cached as a connected Endpoint's peer_cred, mirroring struct ucred.
type Credentials struct {
	PID int32
	UID uint32
	GID uint32
}

// noPeerCredentials is the default peer_cred value before a connection is
// established: pid=0, uid=-1, gid=-1 as unsigned.
var noPeerCredentials = Credentials{PID: 0, UID: ^uint32(0), GID: ^uint32(0)}

// ProcessEmulator is the out-of-scope collaborator (§6) that supplies the
// credentials of the calling process; a real implementation is backed by the
// sandboxed runtime's process table.
type ProcessEmulator interface {
	GetPid() int32
	GetUid() uint32
	GetGid() uint32
}

func snapshotCredentials(pe ProcessEmulator) Credentials {
	return Credentials{
		PID: pe.GetPid(),
		UID: pe.GetUid(),
		GID: pe.GetGid(),
	}
}
