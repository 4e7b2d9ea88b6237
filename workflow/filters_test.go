// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maestroio/maestro/persistence"
)

func samplePayload() persistence.JSONObject {
	return persistence.JSONObject{
		"field1": "value1",
		"field2": "value2",
		"field3": map[string]interface{}{"text3": "some text"},
		"field4": map[string]interface{}{"text4": "other text"},
		"field5": []interface{}{
			map[string]interface{}{"text5a": "deep text"},
		},
		"list1": []interface{}{"a", "b"},
		"list2": []interface{}{"c"},
	}
}

func TestApplyFiltersDeleteFields(t *testing.T) {
	out := ApplyFilters(NewFilterDocument(samplePayload()), []persistence.FilterSpec{{
		Action: persistence.FilterActionDeleteFields,
		Fields: []persistence.FilterField{
			{Name: "field1"},
			{Name: "field5[0].text5a"},
			{Name: "does.not.exist"},
		},
	}})

	payload := out["payload"].(map[string]interface{})
	assert.NotContains(t, payload, "field1")
	assert.Contains(t, payload, "field2")
	assert.Equal(t, []interface{}{map[string]interface{}{}}, payload["field5"])
}

func TestApplyFiltersRenameFields(t *testing.T) {
	out := ApplyFilters(NewFilterDocument(samplePayload()), []persistence.FilterSpec{{
		Action: persistence.FilterActionRenameFields,
		Fields: []persistence.FilterField{
			{Name: "field1", NewName: "renamed1"},
			{Name: "field5[0].text5a", NewName: "surfaced"},
		},
	}})

	payload := out["payload"].(map[string]interface{})
	assert.Equal(t, "value1", payload["renamed1"])
	assert.NotContains(t, payload, "field1")
	// deep sources are lifted to the top level and removed in place
	assert.Equal(t, "deep text", payload["surfaced"])
	assert.Equal(t, []interface{}{map[string]interface{}{}}, payload["field5"])
}

func TestApplyFiltersMergeFields(t *testing.T) {
	t.Run("objects merge with later fields winning", func(t *testing.T) {
		payload := persistence.JSONObject{
			"first":  map[string]interface{}{"shared": "from first", "a": "1"},
			"second": map[string]interface{}{"shared": "from second", "b": "2"},
		}
		out := ApplyFilters(NewFilterDocument(payload), []persistence.FilterSpec{{
			Action:  persistence.FilterActionMergeFields,
			Fields:  []persistence.FilterField{{Name: "first"}, {Name: "second"}},
			NewName: "merged",
		}})

		result := out["payload"].(map[string]interface{})
		assert.Equal(t, map[string]interface{}{
			"shared": "from second",
			"a":      "1",
			"b":      "2",
		}, result["merged"])
		assert.NotContains(t, result, "first")
		assert.NotContains(t, result, "second")
	})

	t.Run("arrays concatenate", func(t *testing.T) {
		out := ApplyFilters(NewFilterDocument(samplePayload()), []persistence.FilterSpec{{
			Action:  persistence.FilterActionMergeFields,
			Fields:  []persistence.FilterField{{Name: "list1"}, {Name: "list2"}},
			NewName: "all",
		}})

		result := out["payload"].(map[string]interface{})
		assert.Equal(t, []interface{}{"a", "b", "c"}, result["all"])
		assert.NotContains(t, result, "list1")
		assert.NotContains(t, result, "list2")
	})

	t.Run("scalars append", func(t *testing.T) {
		out := ApplyFilters(NewFilterDocument(samplePayload()), []persistence.FilterSpec{{
			Action:  persistence.FilterActionMergeFields,
			Fields:  []persistence.FilterField{{Name: "field1"}, {Name: "field2"}},
			NewName: "values",
		}})

		result := out["payload"].(map[string]interface{})
		assert.Equal(t, []interface{}{"value1", "value2"}, result["values"])
	})
}

func TestApplyFiltersExtractFields(t *testing.T) {
	out := ApplyFilters(NewFilterDocument(samplePayload()), []persistence.FilterSpec{{
		Action: persistence.FilterActionExtractFields,
		Fields: []persistence.FilterField{{Name: "field1"}, {Name: "field2"}},
		To:     "headers",
	}})

	assert.Equal(t, map[string]interface{}{
		"field1": "value1",
		"field2": "value2",
	}, out["headers"])
	// extraction copies, the payload keeps the originals
	payload := out["payload"].(map[string]interface{})
	assert.Equal(t, "value1", payload["field1"])
}

func TestApplyFiltersDeleteAllButFields(t *testing.T) {
	out := ApplyFilters(NewFilterDocument(samplePayload()), []persistence.FilterSpec{{
		Action: persistence.FilterActionDeleteAllButFields,
		Fields: []persistence.FilterField{{Name: "field1"}, {Name: "field3"}},
	}})

	assert.Equal(t, map[string]interface{}{
		"field1": "value1",
		"field3": map[string]interface{}{"text3": "some text"},
	}, out["payload"])
}

func TestApplyFiltersSkipsFalsyValues(t *testing.T) {
	payload := persistence.JSONObject{
		"empty":  "",
		"zero":   float64(0),
		"off":    false,
		"absent": nil,
		"kept":   "value",
	}
	out := ApplyFilters(NewFilterDocument(payload), []persistence.FilterSpec{{
		Action: persistence.FilterActionDeleteFields,
		Fields: []persistence.FilterField{
			{Name: "empty"}, {Name: "zero"}, {Name: "off"}, {Name: "absent"}, {Name: "kept"},
		},
	}})

	result := out["payload"].(map[string]interface{})
	assert.Contains(t, result, "empty")
	assert.Contains(t, result, "zero")
	assert.Contains(t, result, "off")
	assert.NotContains(t, result, "kept")
}

func TestApplyFiltersNeverMutatesInput(t *testing.T) {
	input := NewFilterDocument(samplePayload())
	_ = ApplyFilters(input, []persistence.FilterSpec{
		{
			Action: persistence.FilterActionDeleteFields,
			Fields: []persistence.FilterField{{Name: "field1"}},
		},
		{
			Action: persistence.FilterActionRenameFields,
			Fields: []persistence.FilterField{{Name: "field2", NewName: "renamed"}},
		},
		{
			Action: persistence.FilterActionDeleteAllButFields,
			Fields: []persistence.FilterField{{Name: "field3"}},
		},
	})

	assert.Equal(t, NewFilterDocument(samplePayload()), input)
}

func TestApplyFiltersChainsInOrder(t *testing.T) {
	out := ApplyFilters(NewFilterDocument(samplePayload()), []persistence.FilterSpec{
		{
			Action: persistence.FilterActionRenameFields,
			Fields: []persistence.FilterField{{Name: "field1", NewName: "renamed"}},
		},
		{
			Action: persistence.FilterActionDeleteAllButFields,
			Fields: []persistence.FilterField{{Name: "renamed"}},
		},
	})

	assert.Equal(t, map[string]interface{}{"renamed": "value1"}, out["payload"])
}

func TestApplyFiltersUnknownActionIsSkipped(t *testing.T) {
	doc := NewFilterDocument(samplePayload())
	out := ApplyFilters(doc, []persistence.FilterSpec{{
		Action: "explodeFields",
		Fields: []persistence.FilterField{{Name: "field1"}},
	}})
	assert.Equal(t, doc, out)
}
