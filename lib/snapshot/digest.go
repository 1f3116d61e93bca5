// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest of a response payload.
type Digest [32]byte

// payloadDomainKey separates payload digests from any other use of
// BLAKE3 on the same bytes. Changing it invalidates stored digests.
var payloadDomainKey = [32]byte{
	'h', 'o', 's', 't', 'f', 'l', 'o', 'w', '.', 's', 'n', 'a', 'p', 's', 'h', 'o',
	't', '.', 'p', 'a', 'y', 'l', 'o', 'a', 'd', 0, 0, 0, 0, 0, 0, 0,
}

// DigestPayload returns the keyed digest of raw.
func DigestPayload(raw []byte) Digest {
	hasher, err := blake3.NewKeyed(payloadDomainKey[:])
	if err != nil {
		// Only returned for a key that is not 32 bytes.
		panic("snapshot: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(raw)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// String returns the lowercase hex encoding.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters, for log lines.
func (d Digest) Short() string {
	return d.String()[:12]
}

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}
