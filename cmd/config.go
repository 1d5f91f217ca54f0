// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultBaud      = 115200
	defaultModel     = "delta2"
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// Persistent flags that may also be set from the config file or environment
var configKeys = []string{
	"port", "baud", "url", "username", "no-ssl-verify",
	"model", "xor", "log-level", "log-format",
}

func bindFlags(flags *pflag.FlagSet) {
	for _, key := range configKeys {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", key, err))
		}
	}

	viper.SetDefault("baud", defaultBaud)
	viper.SetDefault("model", defaultModel)
	viper.SetDefault("xor", true)
	viper.SetDefault("log-level", defaultLogLevel)
	viper.SetDefault("log-format", defaultLogFormat)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".powerstat")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("POWERSTAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Config error:", err)
		}
	}
}

// loadSettings copies the merged flag, file and environment values into
// the command variables
func loadSettings() {
	portName = viper.GetString("port")
	baudRate = viper.GetInt("baud")
	wsURL = viper.GetString("url")
	wsUsername = viper.GetString("username")
	wsNoSSLVerify = viper.GetBool("no-ssl-verify")
	modelName = viper.GetString("model")
	useXOR = viper.GetBool("xor")
	logLevel = viper.GetString("log-level")
	logFormat = viper.GetString("log-format")
}
