package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// defaults are the values flags fall back to when the flag is not given,
// loaded from ~/.blhost.yaml (or ./.blhost.yaml) if present.
// A missing config file is not an error — every default below is also
// the driver's hard-coded fallback.
type defaults struct {
	Timeout     float64
	CmdRepeat   int
	Port        string
	Baudrate    int
	Interface   string
	Channel     string
	ExtendedID  bool
	RedisAddr   string
	MetricsAddr string
}

func loadDefaults() defaults {
	d := defaults{
		Timeout:    5.0,
		CmdRepeat:  3,
		Port:       "/dev/ttyUSB0",
		Baudrate:   57600,
		Interface:  "socketcan",
		Channel:    "can0",
		ExtendedID: false,
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName(".blhost")
	v.AddConfigPath("$HOME/")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.Warnf("blhost: failed to read config file: %v", err)
		}
		return d
	}

	if err := v.Unmarshal(&d); err != nil {
		logrus.Warnf("blhost: failed to parse config file: %v", err)
	}
	return d
}
