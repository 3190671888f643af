/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package wire

import (
	"sort"
	"strconv"
)

// Encode renders v in the canonical byte grammar. Encoding is total:
// every Value constructed via this package's constructors encodes
// without error.
func Encode(v Value) []byte {
	buf := make([]byte, 0, 64)
	return appendValue(buf, v)
}

func appendValue(buf []byte, v Value) []byte {
	switch v.kind {
	case KindInt:
		buf = append(buf, 'i')
		buf = strconv.AppendInt(buf, v.i, 10)
		buf = append(buf, 'e')
		return buf
	case KindStr:
		buf = strconv.AppendInt(buf, int64(len(v.s)), 10)
		buf = append(buf, ':')
		buf = append(buf, v.s...)
		return buf
	case KindList:
		buf = append(buf, 'l')
		for _, item := range v.l {
			buf = appendValue(buf, item)
		}
		buf = append(buf, 'e')
		return buf
	case KindDict:
		buf = append(buf, 'd')
		keys := make([]string, 0, len(v.d))
		for k := range v.d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			buf = appendValue(buf, StrOf(k))
			buf = appendValue(buf, v.d[k])
		}
		buf = append(buf, 'e')
		return buf
	default:
		return buf
	}
}
