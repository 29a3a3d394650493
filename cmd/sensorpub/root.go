package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/soypat/sensor-mqtt/internal/publisher"
	"github.com/soypat/sensor-mqtt/internal/sensor"
)

const (
	envPrefix   = "SENSORPUB"
	defaultSeed = 1
	defaultStep = 16
)

var (
	cfgFile string
	debug   bool
	logger  *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sensorpub",
	Short: "Publish analog sensor readings over MQTT.",
	Long: `sensorpub samples an analog sensor and publishes every reading to an MQTT v5
broker with QoS0. Lost connections are re-established with exponential backoff.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		adc := sensor.NewSimulatedADC(viper.GetInt64("seed"), viper.GetInt("step"))
		p, err := publisher.New(cfg, adc, publisher.WithLogger(logger))
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger.Info("Publishing readings", zap.String("broker", cfg.Broker),
			zap.String("topic", cfg.Topic), zap.Duration("interval", cfg.Interval))
		return p.Run(ctx)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error("sensorpub failed", zap.Error(err))
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := publisher.DefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sensorpub.yaml)")
	flags.BoolVar(&debug, "debug", false, "enable debug (default is false)")
	flags.String("broker", defaults.Broker, "host:port of the MQTT broker.")
	flags.String("client-id", defaults.ClientID, "MQTT client identifier.")
	flags.String("topic", defaults.Topic, "topic readings are published to.")
	flags.Duration("interval", defaults.Interval, "time between published readings.")
	flags.Int("buffer-size", defaults.BufferSize, "size of the session write and receive buffers.")
	flags.Int64("seed", defaultSeed, "seed of the simulated ADC.")
	flags.Int("step", defaultStep, "largest change between two simulated ADC readings.")
	for key, flag := range map[string]string{
		"broker":      "broker",
		"client_id":   "client-id",
		"topic":       "topic",
		"interval":    "interval",
		"buffer_size": "buffer-size",
		"seed":        "seed",
		"step":        "step",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	newLogger := zap.NewProduction
	if debug {
		newLogger = zap.NewDevelopment
	}
	var err error
	if logger, err = newLogger(); err != nil {
		panic(err)
	}

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}

		// Search config in home directory with name ".sensorpub" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".sensorpub")
	}
	setDefaults(viper.GetViper())

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		logger.Info("Using config file: " + viper.ConfigFileUsed())
	}
}

// setDefaults registers every configuration key so that it can be read from
// the environment.
func setDefaults(v *viper.Viper) {
	defaults := publisher.DefaultConfig()
	v.SetDefault("broker", defaults.Broker)
	v.SetDefault("client_id", defaults.ClientID)
	v.SetDefault("topic", defaults.Topic)
	v.SetDefault("interval", defaults.Interval)
	v.SetDefault("buffer_size", defaults.BufferSize)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("retry_delay", defaults.RetryDelay)
	v.SetDefault("max_backoff", defaults.MaxBackoff)
	v.SetDefault("seed", defaultSeed)
	v.SetDefault("step", defaultStep)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv() // read in environment variables that match
}

func loadConfig(v *viper.Viper) (publisher.Config, error) {
	var cfg publisher.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
