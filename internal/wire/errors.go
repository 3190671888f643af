/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0
 */

package wire

import "errors"

// ErrMalformed is returned by Decode when the input is not a legal
// encoding of the grammar documented in the package comment. It is a
// sentinel so callers can use errors.Is instead of string matching.
var ErrMalformed = errors.New("wire: malformed encoding")
