// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"github.com/maestroio/maestro/common/log/tag"
)

// Logger is our abstraction for logging
// Usage examples:
//
//	 1) logger = logger.WithTags(
//	         tag.ProcessUuid("f89773f7-..."),
//	         tag.FlowName("test-2"))
//	    logger.Info("task dispatched")
//	 2) logger.Info("task dispatched",
//	         tag.ProcessUuid("f89773f7-..."),
//	         tag.FlowName("test-2"))
//	 Note: msg should be static, it is not recommended to use fmt.Sprintf() for msg.
//	       Anything dynamic should be tagged.
type Logger interface {
	Debug(msg string, tags ...tag.Tag)
	Info(msg string, tags ...tag.Tag)
	Warn(msg string, tags ...tag.Tag)
	Error(msg string, tags ...tag.Tag)
	Fatal(msg string, tags ...tag.Tag)
	WithTags(tags ...tag.Tag) Logger
}
