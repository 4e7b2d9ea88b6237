// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maestroio/maestro/persistence"
)

func TestResolvePath(t *testing.T) {
	doc := persistence.JSONObject{
		"field1": "value1",
		"field2": map[string]interface{}{
			"nested": map[string]interface{}{"leaf": float64(7)},
		},
		"field5": []interface{}{
			map[string]interface{}{"text5a": "some text"},
			map[string]interface{}{"text5b": "other text"},
		},
	}

	v, ok := resolvePath(doc, "field1")
	assert.True(t, ok)
	assert.Equal(t, "value1", v)

	v, ok = resolvePath(doc, "field2.nested.leaf")
	assert.True(t, ok)
	assert.Equal(t, float64(7), v)

	v, ok = resolvePath(doc, "field5[0].text5a")
	assert.True(t, ok)
	assert.Equal(t, "some text", v)

	v, ok = resolvePath(doc, "field5[1]")
	assert.True(t, ok)
	assert.Equal(t, map[string]interface{}{"text5b": "other text"}, v)

	_, ok = resolvePath(doc, "missing")
	assert.False(t, ok)
	_, ok = resolvePath(doc, "field2.absent.leaf")
	assert.False(t, ok)
	_, ok = resolvePath(doc, "field5[9]")
	assert.False(t, ok)
	_, ok = resolvePath(doc, "field1.not.an.object")
	assert.False(t, ok)
}

func TestDeletePath(t *testing.T) {
	t.Run("top level key", func(t *testing.T) {
		doc := persistence.JSONObject{"a": "x", "b": "y"}
		deletePath(doc, "a")
		assert.Equal(t, persistence.JSONObject{"b": "y"}, doc)
	})

	t.Run("nested key", func(t *testing.T) {
		doc := persistence.JSONObject{
			"outer": map[string]interface{}{"keep": true, "drop": "gone"},
		}
		deletePath(doc, "outer.drop")
		assert.Equal(t, map[string]interface{}{"keep": true}, doc["outer"])
	})

	t.Run("key inside array element", func(t *testing.T) {
		doc := persistence.JSONObject{
			"items": []interface{}{
				map[string]interface{}{"a": 1, "b": 2},
			},
		}
		deletePath(doc, "items[0].a")
		assert.Equal(t, []interface{}{map[string]interface{}{"b": 2}}, doc["items"])
	})

	t.Run("trailing index splices the element", func(t *testing.T) {
		doc := persistence.JSONObject{
			"items": []interface{}{"first", "second", "third"},
		}
		deletePath(doc, "items[1]")
		assert.Equal(t, []interface{}{"first", "third"}, doc["items"])
	})

	t.Run("missing path is a no-op", func(t *testing.T) {
		doc := persistence.JSONObject{"a": "x"}
		deletePath(doc, "nope.deeper")
		deletePath(doc, "a[3]")
		assert.Equal(t, persistence.JSONObject{"a": "x"}, doc)
	})
}
