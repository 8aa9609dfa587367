// Copyright (C) 2021 Toitware ApS.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; version
// 2.1 only.
//
// This library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// The license can be found in the file `LICENSE` in the top level
// directory of this repository.

package fetcher

import (
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
)

// sipHash24 is SipHash-2-4 with the given 64-bit keys, matching Rust's
// (deprecated) std::hash::SipHasher. There is no third-party siphash
// implementation in use anywhere in this tool's dependency tree, and the
// exact variant here (zero keys, specific round counts) has to match the
// reference package manager's hasher bit for bit, so it is implemented
// directly against the published algorithm rather than pulled from a
// general-purpose hashing library.
func sipHash24(k0, k1 uint64, data []byte) uint64 {
	v0 := k0 ^ 0x736f6d6570736575
	v1 := k1 ^ 0x646f72616e646f6d
	v2 := k0 ^ 0x6c7967656e657261
	v3 := k1 ^ 0x7465646279746573

	round := func() {
		v0 += v1
		v1 = bitsRotl(v1, 13)
		v1 ^= v0
		v0 = bitsRotl(v0, 32)
		v2 += v3
		v3 = bitsRotl(v3, 16)
		v3 ^= v2
		v0 += v3
		v3 = bitsRotl(v3, 21)
		v3 ^= v0
		v2 += v1
		v1 = bitsRotl(v1, 17)
		v1 ^= v2
		v2 = bitsRotl(v2, 32)
	}

	length := len(data)
	end := length - (length % 8)

	for i := 0; i < end; i += 8 {
		m := binary.LittleEndian.Uint64(data[i : i+8])
		v3 ^= m
		round()
		round()
		v0 ^= m
	}

	var last [8]byte
	copy(last[:], data[end:])
	last[7] = byte(length)
	m := binary.LittleEndian.Uint64(last[:])
	v3 ^= m
	round()
	round()
	v0 ^= m

	v2 ^= 0xff
	round()
	round()
	round()
	round()

	return v0 ^ v1 ^ v2 ^ v3
}

func bitsRotl(x uint64, n uint) uint64 {
	return (x << n) | (x >> (64 - n))
}

// hashBytesHex writes data through SipHash-2-4 with zero keys and encodes
// the result as 16 lowercase hex characters, low byte first, matching the
// reference tool's `to_hex(hash_u64(...))`.
func hashBytesHex(data []byte) string {
	h := sipHash24(0, 0, data)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], h)
	return fmt.Sprintf("%02x%02x%02x%02x%02x%02x%02x%02x",
		buf[0], buf[1], buf[2], buf[3], buf[4], buf[5], buf[6], buf[7])
}

// hashStrBytes reproduces the byte sequence Rust's derived Hash impl for
// `str` feeds to a Hasher: the raw bytes followed by a 0xff separator.
func hashStrBytes(s string) []byte {
	b := make([]byte, 0, len(s)+1)
	b = append(b, s...)
	b = append(b, 0xff)
	return b
}

// registryHash reproduces Registry's derived Hash impl, which hashes the
// enum-style discriminant `2usize` (written as 8 native-endian bytes, LE
// on every platform cargo ships for) ahead of the index URL string.
func registryHash(index string) string {
	var disc [8]byte
	binary.LittleEndian.PutUint64(disc[:], 2)
	data := append(disc[:], hashStrBytes(index)...)
	return hashBytesHex(data)
}

// Ident returns "<last-path-segment-or-'_empty'>-<16-hex-siphash>" for a
// canonicalized git URL.
func Ident(canonicalURL string) string {
	segment := "_empty"
	if u, err := url.Parse(canonicalURL); err == nil {
		trimmed := strings.Trim(u.Path, "/")
		if trimmed != "" {
			parts := strings.Split(trimmed, "/")
			segment = parts[len(parts)-1]
		}
	}
	return fmt.Sprintf("%s-%s", segment, hashBytesHex(hashStrBytes(canonicalURL)))
}

// CanonicalizeURL applies the five canonicalization steps used to derive a
// stable git ident: reject cannot-be-a-base URLs, drop a trailing path
// slash, lowercase scheme+path for github.com, strip a trailing ".git",
// and clear the fragment and query.
func CanonicalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Opaque != "" {
		return "", fmt.Errorf("invalid url %q: cannot-be-a-base-URLs are not supported", raw)
	}

	if strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	if strings.EqualFold(u.Host, "github.com") {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		u.Path = strings.ToLower(u.Path)
	}

	if strings.HasSuffix(u.Path, ".git") {
		u.Path = strings.TrimSuffix(u.Path, ".git")
	}

	u.Fragment = ""
	u.RawQuery = ""

	return u.String(), nil
}

// GetCratePrefix maps a crate name to its registry-index directory prefix,
// counting Unicode scalars rather than bytes: "1" for a 1-char name, "2"
// for 2 chars, "3/<c1>" for 3 chars, and "<c1c2>/<c3c4>" for 4+ chars.
func GetCratePrefix(name string) (string, error) {
	runes := []rune(name)
	switch len(runes) {
	case 0:
		return "", fmt.Errorf("empty crate name")
	case 1:
		return "1", nil
	case 2:
		return "2", nil
	case 3:
		return fmt.Sprintf("3/%c", runes[0]), nil
	default:
		return fmt.Sprintf("%c%c/%c%c", runes[0], runes[1], runes[2], runes[3]), nil
	}
}
