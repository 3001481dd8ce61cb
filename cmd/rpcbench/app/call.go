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

package app

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudnetservice/cloudnet/pkg/errgroup"
	"github.com/cloudnetservice/cloudnet/pkg/network/rpc"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/spf13/cobra"
)

type callOptions struct {
	calls       int
	concurrency int
	payloadSize int
	chainDepth  int
}

type callCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	options        callOptions
}

func newCallCommandeer(rootCommandeer *RootCommandeer) *callCommandeer {
	commandeer := &callCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Invoke remote methods concurrently and report latencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if commandeer.options.calls <= 0 {
				return errors.New("Amount of calls must be positive")
			}

			if commandeer.options.chainDepth < 0 {
				return errors.New("Chain depth can't be negative")
			}

			// initialize root
			if err := rootCommandeer.initialize(); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			benchEnvironment, err := newEnvironment(rootCommandeer.loggerInstance, rootCommandeer.configuration)
			if err != nil {
				return errors.Wrap(err, "Failed to create environment")
			}

			defer benchEnvironment.Close()

			report, err := runCalls(cmd.Context(), rootCommandeer.loggerInstance, benchEnvironment, &commandeer.options)
			if err != nil {
				return errors.Wrap(err, "Failed to run calls")
			}

			return rootCommandeer.render(cmd, report)
		},
	}

	cmd.Flags().IntVarP(&commandeer.options.calls, "calls", "n", 1000, "Amount of calls to send")
	cmd.Flags().IntVarP(&commandeer.options.concurrency,
		"concurrency",
		"",
		errgroup.DefaultConcurrency,
		"Amount of calls in flight at once")
	cmd.Flags().IntVarP(&commandeer.options.payloadSize, "payload-size", "", 64, "Length of the echoed string")
	cmd.Flags().IntVarP(&commandeer.options.chainDepth,
		"chain-depth",
		"",
		0,
		"Send chains adding to a remote tally this many times instead of echo calls")

	commandeer.cmd = cmd

	return commandeer
}

func runCalls(ctx context.Context,
	parentLogger logger.Logger,
	benchEnvironment *environment,
	options *callOptions) (*callReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	service := &benchService{}

	class, err := benchEnvironment.RegisterService(service)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to register bench service")
	}

	if err := benchEnvironment.RegisterChainTarget(&Tally{}); err != nil {
		return nil, errors.Wrap(err, "Failed to register tally")
	}

	sender := benchEnvironment.rpcFactory.NewSender(class, benchEnvironment.client)

	var api benchAPI
	if err := benchEnvironment.rpcFactory.Bind(class, benchEnvironment.client, &api); err != nil {
		return nil, errors.Wrap(err, "Failed to bind bench API")
	}
	payload := strings.Repeat("x", options.payloadSize)
	latencies := make([]time.Duration, options.calls)

	var failures atomic.Int64

	callGroup, groupCtx := errgroup.WithContext(ctx, parentLogger, options.concurrency)
	started := time.Now()

	for callIndex := 0; callIndex < options.calls; callIndex++ {
		callIndex := callIndex

		callGroup.Go("invoking bench method", func() error {
			callStarted := time.Now()
			callErr := invokeOnce(groupCtx, benchEnvironment, &api, sender, payload, options.chainDepth)
			latencies[callIndex] = time.Since(callStarted)

			// failed calls are counted, not fatal
			if callErr != nil {
				failures.Add(1)
				parentLogger.DebugWith("Call failed", "callIndex", callIndex, "err", callErr.Error())
			}

			return nil
		})
	}

	if err := callGroup.Wait(); err != nil {
		return nil, errors.Wrap(err, "Calls were interrupted")
	}

	report := newCallReport(options, time.Since(started), latencies, int(failures.Load()))
	report.Handled = service.invocations.Load()

	return report, nil
}

func invokeOnce(ctx context.Context,
	benchEnvironment *environment,
	api *benchAPI,
	sender *rpc.Sender,
	payload string,
	chainDepth int) error {
	queryCtx, cancel, err := benchEnvironment.queryContext(ctx)
	if err != nil {
		return err
	}

	defer cancel()

	if chainDepth == 0 {
		result, err := api.Echo(queryCtx, payload)
		if err != nil {
			return errors.Wrap(err, "Echo call failed")
		}

		if result != payload {
			return errors.Errorf("Echo returned %d bytes instead of %d", len(result), len(payload))
		}

		return nil
	}

	chain, err := buildTallyChain(sender, chainDepth)
	if err != nil {
		return errors.Wrap(err, "Failed to build chain")
	}

	result, err := chain.FireSync(queryCtx)
	if err != nil {
		return errors.Wrap(err, "Chain failed")
	}

	if result != int64(chainDepth) {
		return errors.Errorf("Chain returned %v instead of %d", result, chainDepth)
	}

	return nil
}

// buildTallyChain creates a tally at zero, adds one chainDepth times and reads the total
func buildTallyChain(sender *rpc.Sender, chainDepth int) (*rpc.Chain, error) {
	head, err := sender.InvokeMethod("Tally", int64(0))
	if err != nil {
		return nil, err
	}

	chain, err := head.JoinMethod("Add", int64(1))
	if err != nil {
		return nil, err
	}

	for link := 1; link < chainDepth; link++ {
		if chain, err = chain.JoinMethod("Add", int64(1)); err != nil {
			return nil, err
		}
	}

	return chain.JoinMethod("Current")
}
