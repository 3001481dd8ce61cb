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

package errgroup

import (
	"context"

	"github.com/cloudnetservice/cloudnet/pkg/common"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds a group created with a non-positive concurrency
const DefaultConcurrency = 10

// Group runs named actions concurrently, at most concurrency at a time. A panicking action
// fails the group instead of the process
type Group struct {
	*errgroup.Group
	logger logger.Logger
	ctx    context.Context
}

func WithContext(ctx context.Context, parentLogger logger.Logger, concurrency int) (*Group, context.Context) {
	baseGroup, groupCtx := errgroup.WithContext(ctx)

	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	baseGroup.SetLimit(concurrency)

	return &Group{
		Group:  baseGroup,
		logger: parentLogger,
		ctx:    groupCtx,
	}, groupCtx
}

// Go runs action in the group, blocking while the group is at its concurrency limit
func (g *Group) Go(actionName string, action func() error) {
	g.Group.Go(func() (err error) {
		defer common.CatchAndLogPanicWithOptions(g.ctx, // nolint: errcheck
			g.logger,
			actionName,
			&common.CatchAndLogPanicOptions{
				CustomHandler: func(panicErr error) {
					err = errors.Wrapf(panicErr, "Panic while %s", actionName)
				},
			})

		return action()
	})
}
