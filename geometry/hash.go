// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geometry

// FNV-1a parameters.
const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// hashInts computes an FNV-1a hash over the little-endian bytes of vals
// without allocating.
func hashInts(vals ...int) uint64 {
	h := uint64(fnvOffset64)
	for _, v := range vals {
		u := uint64(v) //nolint:gosec // G115: bit pattern only
		for range 8 {
			h ^= u & 0xff
			h *= fnvPrime64
			u >>= 8
		}
	}
	return h
}
