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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_EncodeDecodeCacheFile_roundTrip(t *testing.T) {
	entries := []CacheVersionEntry{
		{Version: "0.1.0", Line: []byte(`{"name":"foo","vers":"0.1.0","cksum":"abc"}`)},
		{Version: "0.2.0", Line: []byte(`{"name":"foo","vers":"0.2.0","cksum":"def"}`)},
	}
	encoded := EncodeCacheFile("deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", entries)
	require.NotEmpty(t, encoded)
	assert.Equal(t, CurrentCacheVersion, encoded[0])

	headCommit, decoded, err := DecodeCacheFile(encoded)
	require.NoError(t, err)
	assert.Equal(t, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", headCommit)
	assert.Equal(t, entries, decoded)
}

func Test_DecodeCacheFile_rejectsUnsupportedVersion(t *testing.T) {
	_, _, err := DecodeCacheFile([]byte{0x09, 'a', 0})
	assert.Error(t, err)
}

func Test_DecodeCacheFile_rejectsTruncated(t *testing.T) {
	_, _, err := DecodeCacheFile([]byte{CurrentCacheVersion, 'a', 'b', 'c'})
	assert.Error(t, err)
}

func Test_ParseVersionFromLine(t *testing.T) {
	line := []byte(`{"name":"serde","vers":"1.0.104","deps":[],"cksum":"x","features":{},"yanked":false}`)
	version, err := ParseVersionFromLine(line)
	require.NoError(t, err)
	assert.Equal(t, "1.0.104", version)
}

func Test_ParseVersionFromLine_missingField(t *testing.T) {
	_, err := ParseVersionFromLine([]byte(`{"name":"serde"}`))
	assert.Error(t, err)
}

func Test_cacheFileName(t *testing.T) {
	name, err := cacheFileName("serde")
	require.NoError(t, err)
	assert.Equal(t, ".cache/se/rd/serde", name)
}
