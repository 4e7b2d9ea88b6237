// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package ptr

// Any returns a pointer of the given value
func Any[T any](v T) *T {
	return &v
}
