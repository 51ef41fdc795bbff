// Object pools for reducing GC pressure in hot paths
//
// The line parser allocates one argument map per G-code move and the
// generator renders the whole output through byte buffers; both come
// from pools here.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"bytes"
	"sync"
)

// ArgsMap pool - for G-code word maps
var argsMapPool = sync.Pool{
	New: func() any {
		return make(map[string]string, 8)
	},
}

// GetArgsMap gets a string map from the pool
func GetArgsMap() map[string]string {
	return argsMapPool.Get().(map[string]string)
}

// PutArgsMap returns a string map to the pool after clearing it
func PutArgsMap(m map[string]string) {
	if m == nil {
		return
	}
	clear(m)
	argsMapPool.Put(m)
}

// Buffer pool - for output rendering
var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// GetBuffer gets a byte buffer from the pool
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// PutBuffer resets a buffer and returns it to the pool. Oversized
// buffers are dropped so the pool does not pin a whole output file.
func PutBuffer(b *bytes.Buffer) {
	if b == nil {
		return
	}
	if b.Cap() > 1<<20 {
		return
	}
	b.Reset()
	bufferPool.Put(b)
}
