// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package uuid

import (
	guuid "github.com/google/uuid"
)

// MustNewUUID returns a new v4 UUID string.
// Processes and tasks are both identified by v4 UUIDs.
func MustNewUUID() string {
	newUuid, err := guuid.NewRandom()
	if err != nil {
		panic(err)
	}
	return newUuid.String()
}

// IsValidUUID reports whether s parses as a UUID
func IsValidUUID(s string) bool {
	_, err := guuid.Parse(s)
	return err == nil
}
