// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package tag

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const LoggingCallAtKey = "logging-call-at"

// Tag is the interface for logging system
type Tag struct {
	// keep this field private
	field zap.Field
}

// Field returns a zap field
func (t *Tag) Field() zap.Field {
	return t.field
}

func newStringTag(key string, value string) Tag {
	return Tag{
		field: zap.String(key, value),
	}
}

func newIntTag(key string, value int) Tag {
	return Tag{
		field: zap.Int(key, value),
	}
}

func newTimeTag(key string, value time.Time) Tag {
	return Tag{
		field: zap.Time(key, value),
	}
}

func newObjectTag(key string, value interface{}) Tag {
	return Tag{
		field: zap.String(key, fmt.Sprintf("%v", value)),
	}
}

func newErrorTag(key string, value error) Tag {
	//NOTE zap already chosen "error" as key
	return Tag{
		field: zap.Error(value),
	}
}

// TAGS

func Error(err error) Tag {
	return newErrorTag("error", err)
}

func Service(sv string) Tag {
	return newStringTag("service", sv)
}

func Message(msg string) Tag {
	return newStringTag("message", msg)
}

func FlowName(name string) Tag {
	return newStringTag("flowName", name)
}

func ProcessUuid(id string) Tag {
	return newStringTag("processUuid", id)
}

func TaskUuid(id string) Tag {
	return newStringTag("taskUuid", id)
}

func TaskType(tt string) Tag {
	return newStringTag("taskType", tt)
}

func Topic(topic string) Tag {
	return newStringTag("topic", topic)
}

func TraceId(id string) Tag {
	return newStringTag("traceId", id)
}

func StatusCode(status int) Tag {
	return newIntTag("status", status)
}

func Date(v time.Time) Tag {
	return newTimeTag("date", v)
}

func Value(v interface{}) Tag {
	return newObjectTag("value", v)
}
