package main

import (
	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/xlog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
)

type Config struct {
	NShards      int      `toml:"nShards"`
	EncodingType string   `toml:"encodingType"`
	Dir          string   `toml:"dir"`
	Compress     bool     `toml:"compress"`
	LogLevel     string   `toml:"logLevel"`
	LogOutput    []string `toml:"logOutput"`
	Workers      int      `toml:"workers"`
}

var (
	config     Config
	configFile string
	logOutput  cli.StringSlice
)

//flags not given on the command line are taken from the toml file named by
//--config, if any
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Path to the config file",
			Aliases:     []string{"c"},
			Destination: &configFile,
		},
		altsrc.NewIntFlag(&cli.IntFlag{
			Name:        "nShards",
			Usage:       "number of shards",
			Value:       10,
			Destination: &config.NShards,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "encodingType",
			Usage:       "erasure code variant",
			Value:       "RS2",
			Destination: &config.EncodingType,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "dir",
			Usage:       "sliver store directory",
			Value:       "slivers",
			Destination: &config.Dir,
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:        "compress",
			Usage:       "snappy compress sliver files",
			Destination: &config.Compress,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "logLevel",
			Value:       "info",
			Destination: &config.LogLevel,
		}),
		altsrc.NewStringSliceFlag(&cli.StringSliceFlag{
			Name:        "logOutput",
			Usage:       "log destinations, stderr when empty",
			Destination: &logOutput,
		}),
		altsrc.NewIntFlag(&cli.IntFlag{
			Name:        "workers",
			Usage:       "concurrent file operations, 0 for no limit",
			Value:       8,
			Destination: &config.Workers,
		}),
	}
}

func loadConfig(flags []cli.Flag) cli.BeforeFunc {
	fromFile := altsrc.InitInputSourceWithContext(flags, altsrc.NewTomlSourceFromFlagFunc("config"))
	return func(c *cli.Context) error {
		if c.IsSet("config") {
			if err := fromFile(c); err != nil {
				return errors.Wrapf(err, "load %s", configFile)
			}
		}
		config.LogOutput = logOutput.Value()
		if err := validateConf(&config); err != nil {
			return err
		}
		level, err := xlog.ParseLevel(config.LogLevel)
		if err != nil {
			return err
		}
		return xlog.InitLog(config.LogOutput, level)
	}
}

func validateConf(conf *Config) error {
	if conf.NShards <= 0 || conf.NShards > 1<<16-1 {
		return errors.Errorf("nShards must be in [1, 65535], got %d", conf.NShards)
	}
	if _, err := encoding.ParseEncodingType(conf.EncodingType); err != nil {
		return err
	}
	if len(conf.Dir) == 0 {
		return errors.Errorf("dir can not be empty")
	}
	if conf.Workers < 0 {
		return errors.Errorf("workers can not be negative")
	}
	if len(conf.LogOutput) == 0 {
		conf.LogOutput = []string{"stderr"}
	}
	return nil
}

func (conf *Config) encodingType() encoding.EncodingType {
	t, _ := encoding.ParseEncodingType(conf.EncodingType)
	return t
}
