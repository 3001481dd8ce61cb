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
	"fmt"
	"net"
	"reflect"
	"time"

	"github.com/cloudnetservice/cloudnet/pkg/adminserver"
	"github.com/cloudnetservice/cloudnet/pkg/network/buffer"
	"github.com/cloudnetservice/cloudnet/pkg/network/chunk"
	"github.com/cloudnetservice/cloudnet/pkg/network/packet"
	"github.com/cloudnetservice/cloudnet/pkg/network/rpc"
	"github.com/cloudnetservice/cloudnet/pkg/network/rpc/object"
	"github.com/cloudnetservice/cloudnet/pkg/networkconfig"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

const maxGoroutines = 10000

// environment is a client and a server channel joined by an in-memory pipe, with the RPC
// and chunked transfer layers of the server listening on their channels
type environment struct {
	logger         logger.Logger
	configuration  *networkconfig.Config
	metricRegistry *prometheus.Registry
	bufferFactory  *buffer.Factory
	rpcFactory     *rpc.Factory
	handlers       *rpc.HandlerRegistry
	chunkMetrics   *chunk.Metrics
	receiver       *chunk.Receiver
	client         *packet.StreamChannel
	server         *packet.StreamChannel
	adminServer    *adminserver.Server
	scheduler      *cron.Cron
}

func newEnvironment(parentLogger logger.Logger, configuration *networkconfig.Config) (*environment, error) {
	loggerInstance := parentLogger.GetChild("environment")
	metricRegistry := prometheus.NewRegistry()

	rpcMetrics, err := rpc.NewMetrics(metricRegistry)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create RPC metrics")
	}

	chunkMetrics, err := chunk.NewMetrics(metricRegistry)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create chunk metrics")
	}

	mapper := object.NewObjectMapper(loggerInstance, true)
	bufferFactory := buffer.NewFactory(mapper)

	newEnvironment := &environment{
		logger:         loggerInstance,
		configuration:  configuration,
		metricRegistry: metricRegistry,
		bufferFactory:  bufferFactory,
		rpcFactory:     rpc.NewFactory(loggerInstance, mapper, bufferFactory, rpcMetrics),
		handlers:       rpc.NewHandlerRegistry(loggerInstance),
		chunkMetrics:   chunkMetrics,
		receiver:       chunk.NewReceiver(loggerInstance, chunkMetrics),
		scheduler:      cron.New(),
	}

	newEnvironment.rpcFactory.SetNormalizePrimitives(configuration.NormalizePrimitives())
	newEnvironment.client, newEnvironment.server = newEnvironment.createChannelPair()

	newEnvironment.server.Listeners().AddListener(packet.RPCChannel,
		newEnvironment.rpcFactory.NewListener(newEnvironment.handlers))
	newEnvironment.server.Listeners().AddListener(packet.ChunkedTransferChannel, newEnvironment.receiver)

	if err := newEnvironment.scheduleSessionExpiry(); err != nil {
		newEnvironment.Close()
		return nil, errors.Wrap(err, "Failed to schedule session expiry")
	}

	newEnvironment.scheduler.Start()

	if configuration.MetricsEnabled() {
		if err := newEnvironment.startAdminServer(); err != nil {
			newEnvironment.Close()
			return nil, errors.Wrap(err, "Failed to start admin server")
		}
	}

	return newEnvironment, nil
}

// Close closes both channels and stops the background work of the environment
func (e *environment) Close() {
	<-e.scheduler.Stop().Done()

	e.client.Close() // nolint: errcheck
	e.server.Close() // nolint: errcheck

	if e.adminServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		e.adminServer.Stop(ctx) // nolint: errcheck
	}
}

// RegisterService registers a handler for the class of service
func (e *environment) RegisterService(service interface{}) (*rpc.Class, error) {
	class, err := e.rpcFactory.ClassOf(reflect.TypeOf(service))
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create class of %T", service)
	}

	e.handlers.RegisterHandler(e.rpcFactory.NewHandler(class, service))

	return class, nil
}

// RegisterChainTarget registers an instanceless handler for the class of target, invoked
// on the working instance of a chain only
func (e *environment) RegisterChainTarget(target interface{}) error {
	class, err := e.rpcFactory.ClassOf(reflect.TypeOf(target))
	if err != nil {
		return errors.Wrapf(err, "Failed to create class of %T", target)
	}

	e.handlers.RegisterHandler(e.rpcFactory.NewHandler(class, nil))

	return nil
}

func (e *environment) createChannelPair() (*packet.StreamChannel, *packet.StreamChannel) {
	clientConn, serverConn := net.Pipe()

	client := packet.NewStreamChannel(e.logger.GetChild("client"), clientConn, e.bufferFactory, nil)
	server := packet.NewStreamChannel(e.logger.GetChild("server"), serverConn, e.bufferFactory, nil)

	client.SetMaxFrameLength(e.configuration.Network.MaxFrameLength)
	server.SetMaxFrameLength(e.configuration.Network.MaxFrameLength)

	go client.RunHandler()
	go server.RunHandler()

	return client, server
}

// scheduleSessionExpiry drops chunk sessions idle for longer than the session timeout
func (e *environment) scheduleSessionExpiry() error {
	sessionTimeout, err := e.configuration.GetSessionTimeout()
	if err != nil {
		return errors.Wrap(err, "Failed to get session timeout")
	}

	if _, err := e.scheduler.AddFunc(fmt.Sprintf("@every %s", sessionTimeout/2), func() {
		if expired := e.receiver.ExpireSessions(sessionTimeout); expired > 0 {
			e.logger.WarnWith("Expired idle transfer sessions", "expired", expired)
		}
	}); err != nil {
		return errors.Wrap(err, "Failed to add expiry job")
	}

	return nil
}

func (e *environment) startAdminServer() error {
	e.adminServer = adminserver.NewServer(e.logger, e.configuration.Metrics.ListenAddress, e.metricRegistry)

	e.adminServer.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(maxGoroutines))
	e.adminServer.AddReadinessCheck("server-channel", func() error {
		select {
		case <-e.server.Done():
			return errors.New("Server channel is closed")
		default:
			return nil
		}
	})

	return e.adminServer.Start()
}

func (e *environment) queryContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	queryTimeout, err := e.configuration.GetQueryTimeout()
	if err != nil {
		return nil, nil, errors.Wrap(err, "Failed to get query timeout")
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	return queryCtx, cancel, nil
}
