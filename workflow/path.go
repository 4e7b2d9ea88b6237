// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"strconv"
	"strings"

	"github.com/maestroio/maestro/persistence"
)

// Filter fields may address nested values with dotted/indexed paths, e.g.
// "field5[0].text5a". The resolver walks a generic tree of values
// (object/array/scalar) and reports "not found" instead of failing, so
// filters stay total.

type pathSegment struct {
	key     string
	indexes []int
}

func parsePath(path string) []pathSegment {
	parts := strings.Split(path, ".")
	segments := make([]pathSegment, 0, len(parts))
	for _, part := range parts {
		seg := pathSegment{key: part}
		if open := strings.Index(part, "["); open >= 0 {
			seg.key = part[:open]
			rest := part[open:]
			for strings.HasPrefix(rest, "[") {
				close := strings.Index(rest, "]")
				if close < 0 {
					break
				}
				idx, err := strconv.Atoi(rest[1:close])
				if err != nil {
					break
				}
				seg.indexes = append(seg.indexes, idx)
				rest = rest[close+1:]
			}
		}
		segments = append(segments, seg)
	}
	return segments
}

// resolvePath returns the value at path inside root, and whether it exists
func resolvePath(root persistence.JSONObject, path string) (interface{}, bool) {
	var current interface{} = map[string]interface{}(root)
	for _, seg := range parsePath(path) {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[seg.key]
		if !ok {
			return nil, false
		}
		for _, idx := range seg.indexes {
			arr, ok := current.([]interface{})
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]
		}
	}
	return current, true
}

// deletePath removes the value at path. A trailing index splices the element
// out of its array. Missing paths are a no-op.
func deletePath(root persistence.JSONObject, path string) {
	segments := parsePath(path)
	if len(segments) == 0 {
		return
	}

	var current interface{} = map[string]interface{}(root)
	for _, seg := range segments[:len(segments)-1] {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return
		}
		current, ok = obj[seg.key]
		if !ok {
			return
		}
		for _, idx := range seg.indexes {
			arr, ok := current.([]interface{})
			if !ok || idx < 0 || idx >= len(arr) {
				return
			}
			current = arr[idx]
		}
	}

	last := segments[len(segments)-1]
	obj, ok := current.(map[string]interface{})
	if !ok {
		return
	}
	if len(last.indexes) == 0 {
		delete(obj, last.key)
		return
	}

	// walk down to the array holding the final index, remembering how to
	// write the spliced copy back
	value, ok := obj[last.key]
	if !ok {
		return
	}
	writeBack := func(v interface{}) { obj[last.key] = v }
	for _, idx := range last.indexes[:len(last.indexes)-1] {
		arr, ok := value.([]interface{})
		if !ok || idx < 0 || idx >= len(arr) {
			return
		}
		i := idx
		parent := arr
		writeBack = func(v interface{}) { parent[i] = v }
		value = arr[idx]
	}
	arr, ok := value.([]interface{})
	finalIdx := last.indexes[len(last.indexes)-1]
	if !ok || finalIdx < 0 || finalIdx >= len(arr) {
		return
	}
	spliced := make([]interface{}, 0, len(arr)-1)
	spliced = append(spliced, arr[:finalIdx]...)
	spliced = append(spliced, arr[finalIdx+1:]...)
	writeBack(spliced)
}
