// Package distribution implements DataDistribution's hash-to-shard
// resolution: hash function dispatch, shard/override lookup, and the
// wire marshal format shards and overrides are published in.
package distribution

import "crypto/md5"

// HashFunction selects how findCoveringNode turns a routing key into a
// 64-bit hash before walking shard ranges.
type HashFunction int

const (
	// HashUserDef delegates to a caller-supplied function. It is the
	// zero value, so a Table whose HashFn is left unset uses it.
	HashUserDef HashFunction = iota
	// HashMD5 takes the high 64 bits of the MD5 digest of the key.
	HashMD5
	// HashJenkins uses the one-at-a-time routine below, zero-extended to
	// 64 bits.
	HashJenkins
)

// UserHashFunc is the signature a caller registers for HashUserDef.
type UserHashFunc func(key string) uint64

// jenkinsOneAtATime32 is Bob Jenkins' one-at-a-time hash: for each byte
// h+=b; h+=h<<10; h^=h>>6; then finalize h+=h<<3; h^=h>>11; h+=h<<15;
// with 32-bit wraparound throughout.
func jenkinsOneAtATime32(key string) uint32 {
	var h uint32
	for i := 0; i < len(key); i++ {
		h += uint32(key[i])
		h += h << 10
		h ^= h >> 6
	}
	h += h << 3
	h ^= h >> 11
	h += h << 15
	return h
}

// jenkins64 widens the 32-bit routine to the 64-bit hash space shard
// bounds live in by zero-extending the result; it does not spread bits
// into the upper 32 bits.
func jenkins64(key string) uint64 {
	return uint64(jenkinsOneAtATime32(key))
}

// md5Hash64 takes the high 64 bits of the MD5 digest of key.
func md5Hash64(key string) uint64 {
	sum := md5.Sum([]byte(key))
	var h uint64
	for i := 0; i < 8; i++ {
		h = h<<8 | uint64(sum[i])
	}
	return h
}

// Hash computes the 64-bit routing hash for key under fn. userFn is
// consulted only when fn == HashUserDef, and must be non-nil in that
// case.
func Hash(fn HashFunction, key string, userFn UserHashFunc) uint64 {
	switch fn {
	case HashMD5:
		return md5Hash64(key)
	case HashJenkins:
		return jenkins64(key)
	case HashUserDef:
		return userFn(key)
	default:
		return jenkins64(key)
	}
}
