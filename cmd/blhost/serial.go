package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lauszus/pyblhost/pkg/engine"
	"github.com/Lauszus/pyblhost/pkg/metrics"
	"github.com/Lauszus/pyblhost/pkg/transport"
)

func newSerialCommand(a *app, d defaults) *cobra.Command {
	var port string
	var baudrate int

	cmd := &cobra.Command{
		Use:   "serial",
		Short: "Talk to the target over a serial UART",
	}
	cmd.PersistentFlags().StringVar(&port, "port", d.Port, "Serial device path")
	cmd.PersistentFlags().IntVar(&baudrate, "baudrate", d.Baudrate, "Serial baud rate")

	open := func() (*engine.Engine, *metrics.Registry, error) {
		if port == "" {
			return nil, nil, argError{fmt.Errorf("serial: --port is required")}
		}

		reg := a.newMetrics()
		e := engine.New(nil, reg)
		s, err := transport.NewSerial(port, baudrate, e.Feed)
		if err != nil {
			return nil, nil, fmt.Errorf("serial: failed to open %s: %w", port, err)
		}
		e.SetTransport(s)
		return e, reg, nil
	}

	cmd.AddCommand(newPingCommand(a, open))
	cmd.AddCommand(newResetCommand(a, open))
	cmd.AddCommand(newGetPropertyCommand(a, open))
	cmd.AddCommand(newUploadCommand(a, open))
	cmd.AddCommand(newReadCommand(a, open))

	return cmd
}
