/*
Copyright 2024 The CloudNet Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package common

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// CatchAndLogPanicWithOptions recovers a panic, logs it with its call stack and hands the
// resulting error to the custom handler, if any. Must be deferred directly
func CatchAndLogPanicWithOptions(ctx context.Context,
	loggerInstance logger.Logger,
	actionName string,
	options *CatchAndLogPanicOptions) error {
	if recoveredErr := recover(); recoveredErr != nil {
		var args []interface{}
		if options != nil {
			args = options.Args
		}

		LogPanic(ctx, loggerInstance, actionName, args, debug.Stack(), recoveredErr)

		err := ErrorFromRecoveredError(recoveredErr)
		if options != nil && options.CustomHandler != nil {
			options.CustomHandler(err)
		}

		return err
	}

	return nil
}

// LogPanic logs a recovered panic
func LogPanic(ctx context.Context,
	loggerInstance logger.Logger,
	actionName string,
	args []interface{},
	callStack []byte,
	recoveredErr interface{}) {
	logVars := []interface{}{
		"err", recoveredErr,
		"stack", string(callStack),
	}

	logVars = append(logVars, args...)
	loggerInstance.ErrorWithCtx(ctx, fmt.Sprintf("Panic caught while %s", actionName), logVars...)
}

// ErrorFromRecoveredError converts the value passed to panic into an error
func ErrorFromRecoveredError(recoveredError interface{}) error {
	switch typedErr := recoveredError.(type) {
	case string:
		return errors.New(typedErr)
	case error:
		return typedErr
	default:
		return errors.New(fmt.Sprintf("Unknown error type: %v", typedErr))
	}
}
