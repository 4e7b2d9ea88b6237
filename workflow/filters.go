// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"dario.cat/mergo"
	"github.com/goccy/go-json"

	"github.com/maestroio/maestro/persistence"
)

// ApplyFilters runs a task's filter chain over a document of the shape
// {"payload": {...}}. The input document is never mutated; each action
// operates on a deep copy and unknown actions are skipped. Filters run in
// declaration order, so later filters see the output of earlier ones.
func ApplyFilters(data persistence.JSONObject, filters []persistence.FilterSpec) persistence.JSONObject {
	result := deepCopy(data)
	if result == nil {
		result = persistence.JSONObject{}
	}
	for _, filter := range filters {
		switch filter.Action {
		case persistence.FilterActionDeleteFields:
			applyDeleteFields(result, filter)
		case persistence.FilterActionRenameFields:
			applyRenameFields(result, filter)
		case persistence.FilterActionMergeFields:
			applyMergeFields(result, filter)
		case persistence.FilterActionExtractFields:
			applyExtractFields(result, filter)
		case persistence.FilterActionDeleteAllButFields:
			applyDeleteAllButFields(result, filter)
		}
	}
	return result
}

// NewFilterDocument wraps a payload in the document shape the filter chain
// operates on
func NewFilterDocument(payload persistence.JSONObject) persistence.JSONObject {
	if payload == nil {
		payload = persistence.JSONObject{}
	}
	return persistence.JSONObject{"payload": map[string]interface{}(payload)}
}

func applyDeleteFields(data persistence.JSONObject, filter persistence.FilterSpec) {
	payload := payloadOf(data)
	if payload == nil {
		return
	}
	for _, field := range filter.Fields {
		value, ok := resolvePath(payload, field.Name)
		if !ok || isFalsy(value) {
			continue
		}
		deletePath(payload, field.Name)
	}
}

func applyRenameFields(data persistence.JSONObject, filter persistence.FilterSpec) {
	payload := payloadOf(data)
	if payload == nil {
		return
	}
	for _, field := range filter.Fields {
		newName := field.NewName
		if newName == "" {
			newName = filter.NewName
		}
		if newName == "" {
			continue
		}
		value, ok := resolvePath(payload, field.Name)
		if !ok || isFalsy(value) {
			continue
		}
		payload[newName] = value
		deletePath(payload, field.Name)
	}
}

func applyMergeFields(data persistence.JSONObject, filter persistence.FilterSpec) {
	payload := payloadOf(data)
	if payload == nil || filter.NewName == "" {
		return
	}
	for _, field := range filter.Fields {
		value, ok := resolvePath(payload, field.Name)
		if !ok || isFalsy(value) {
			continue
		}
		switch v := value.(type) {
		case map[string]interface{}:
			dest, ok := payload[filter.NewName].(map[string]interface{})
			if !ok {
				dest = map[string]interface{}{}
			}
			// later fields win on key conflicts
			_ = mergo.Merge(&dest, v, mergo.WithOverride)
			payload[filter.NewName] = dest
		case []interface{}:
			payload[filter.NewName] = append(destSlice(payload[filter.NewName]), v...)
		default:
			payload[filter.NewName] = append(destSlice(payload[filter.NewName]), v)
		}
		if field.Name != filter.NewName {
			deletePath(payload, field.Name)
		}
	}
}

func applyExtractFields(data persistence.JSONObject, filter persistence.FilterSpec) {
	payload := payloadOf(data)
	if payload == nil || filter.To == "" {
		return
	}
	bucket, ok := data[filter.To].(map[string]interface{})
	if !ok {
		bucket = map[string]interface{}{}
	}
	for _, field := range filter.Fields {
		value, ok := resolvePath(payload, field.Name)
		if !ok || isFalsy(value) {
			continue
		}
		bucket[field.Name] = value
	}
	data[filter.To] = bucket
}

func applyDeleteAllButFields(data persistence.JSONObject, filter persistence.FilterSpec) {
	payload := payloadOf(data)
	if payload == nil {
		return
	}
	// keep-list only addresses top level keys
	kept := map[string]interface{}{}
	for _, field := range filter.Fields {
		value, ok := payload[field.Name]
		if !ok || isFalsy(value) {
			continue
		}
		kept[field.Name] = value
	}
	data["payload"] = kept
}

func payloadOf(data persistence.JSONObject) persistence.JSONObject {
	payload, ok := data["payload"].(map[string]interface{})
	if !ok {
		return nil
	}
	return payload
}

func destSlice(existing interface{}) []interface{} {
	switch v := existing.(type) {
	case nil:
		return nil
	case []interface{}:
		return v
	default:
		return []interface{}{v}
	}
}

// isFalsy mirrors loose truthiness on decoded JSON values: null, false,
// empty string and numeric zero are skipped by filters
func isFalsy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == ""
	case float64:
		return v == 0
	case int:
		return v == 0
	default:
		return false
	}
}

func deepCopy(data persistence.JSONObject) persistence.JSONObject {
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var copied persistence.JSONObject
	if err := json.Unmarshal(raw, &copied); err != nil {
		return nil
	}
	return copied
}
