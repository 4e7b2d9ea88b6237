// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"github.com/xeipuuv/gojsonschema"

	"github.com/maestroio/maestro/persistence"
)

// SchemaValidator checks a task callback body against the JSON schema
// declared on the task definition. A non-empty slice means the body does
// not conform; the error return is for schemas that cannot be compiled.
type SchemaValidator interface {
	Validate(payload persistence.JSONObject, schema persistence.JSONObject) ([]string, error)
}

type jsonSchemaValidator struct{}

func NewJSONSchemaValidator() SchemaValidator {
	return jsonSchemaValidator{}
}

func (jsonSchemaValidator) Validate(payload persistence.JSONObject, schema persistence.JSONObject) ([]string, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(map[string]interface{}(schema)),
		gojsonschema.NewGoLoader(map[string]interface{}(payload)))
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return issues, nil
}
