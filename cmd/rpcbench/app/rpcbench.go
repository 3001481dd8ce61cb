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
	"os"

	"github.com/cloudnetservice/cloudnet/pkg/networkconfig"
	"github.com/cloudnetservice/cloudnet/pkg/renderer"
	"github.com/cloudnetservice/cloudnet/pkg/version"

	"github.com/mitchellh/go-homedir"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/spf13/cobra"
)

type RootCommandeer struct {
	loggerInstance    logger.Logger
	cmd               *cobra.Command
	verbose           bool
	configurationPath string
	output            string
	configuration     *networkconfig.Config
}

func NewRootCommandeer() *RootCommandeer {
	commandeer := &RootCommandeer{}

	cmd := &cobra.Command{
		Use:           "rpcbench [command]",
		Short:         "Exercise the RPC and chunked transfer layers over a local channel pair",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfigurationPath := os.Getenv("CLOUDNET_NETWORK_CONFIG")
	if defaultConfigurationPath == "" {
		defaultConfigurationPath = "~/.cloudnet/network.yaml"
	}

	cmd.PersistentFlags().BoolVarP(&commandeer.verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().StringVarP(&commandeer.configurationPath,
		"config",
		"c",
		defaultConfigurationPath,
		"Path to a network configuration file, defaults are used when it doesn't exist")
	cmd.PersistentFlags().StringVarP(&commandeer.output,
		"output",
		"o",
		renderer.OutputFormatText,
		"Output format - \"text\", \"json\", or \"yaml\"")

	cmd.AddCommand(
		newCallCommandeer(commandeer).cmd,
		newTransferCommandeer(commandeer).cmd,
		newVersionCommandeer(commandeer).cmd,
	)

	commandeer.cmd = cmd

	return commandeer
}

// Execute uses os.Args to execute the command
func (rc *RootCommandeer) Execute() error {
	return rc.cmd.Execute()
}

// GetCmd returns the underlying cobra command
func (rc *RootCommandeer) GetCmd() *cobra.Command {
	return rc.cmd
}

func (rc *RootCommandeer) initialize() error {
	var err error

	configReader, err := networkconfig.NewReader()
	if err != nil {
		return errors.Wrap(err, "Failed to create configuration reader")
	}

	configurationPath, err := homedir.Expand(rc.configurationPath)
	if err != nil {
		return errors.Wrapf(err, "Failed to expand configuration path %s", rc.configurationPath)
	}

	rc.configuration, err = configReader.ReadFileOrDefault(configurationPath)
	if err != nil {
		return errors.Wrap(err, "Failed to read network configuration")
	}

	rc.loggerInstance, err = rc.createLogger()
	if err != nil {
		return errors.Wrap(err, "Failed to create logger")
	}

	version.Log(rc.loggerInstance)

	rc.loggerInstance.DebugWith("Read configuration",
		"path", configurationPath,
		"configuration", rc.configuration)

	return nil
}

func (rc *RootCommandeer) createLogger() (logger.Logger, error) {
	loggerLevel := nucliozap.GetLevelByName(rc.configuration.Logger.Level)
	if rc.verbose {
		loggerLevel = nucliozap.DebugLevel
	}

	loggerInstance, err := nucliozap.NewNuclioZapCmd("rpcbench", loggerLevel, os.Stderr)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create logger")
	}

	return loggerInstance, nil
}

func (rc *RootCommandeer) render(cmd *cobra.Command, report interface{}) error {
	return renderer.NewRenderer(cmd.OutOrStdout()).Render(rc.output, report)
}
