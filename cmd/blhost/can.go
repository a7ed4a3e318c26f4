package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lauszus/pyblhost/pkg/engine"
	"github.com/Lauszus/pyblhost/pkg/metrics"
	"github.com/Lauszus/pyblhost/pkg/transport"
)

// transportOpener constructs an Engine bound to a freshly opened
// transport, along with the metrics.Registry the engine was built with.
// Each op subcommand (ping/reset/get-property/upload/read) calls it
// once, independent of whether the transport is CAN or serial.
type transportOpener func() (*engine.Engine, *metrics.Registry, error)

func newCanCommand(a *app, d defaults) *cobra.Command {
	var txIDHex, rxIDHex, iface, channel string
	var extendedID bool

	cmd := &cobra.Command{
		Use:   "can",
		Short: "Talk to the target over a SocketCAN interface",
	}
	cmd.PersistentFlags().StringVar(&txIDHex, "tx-id", "", "Arbitration ID the target transmits with (hex or decimal)")
	cmd.PersistentFlags().StringVar(&rxIDHex, "rx-id", "", "Arbitration ID the host transmits with (hex or decimal)")
	cmd.PersistentFlags().StringVar(&iface, "interface", d.Interface, "CAN interface driver name")
	cmd.PersistentFlags().StringVar(&channel, "channel", d.Channel, "CAN channel/device name (e.g. can0)")
	cmd.PersistentFlags().BoolVar(&extendedID, "extended-id", d.ExtendedID, "Use 29-bit extended arbitration IDs instead of 11-bit")

	open := func() (*engine.Engine, *metrics.Registry, error) {
		if txIDHex == "" || rxIDHex == "" {
			return nil, nil, argError{fmt.Errorf("can: --tx-id and --rx-id are required")}
		}
		txID, err := parseNumber(txIDHex)
		if err != nil {
			return nil, nil, argError{fmt.Errorf("can: invalid --tx-id: %w", err)}
		}
		rxID, err := parseNumber(rxIDHex)
		if err != nil {
			return nil, nil, argError{fmt.Errorf("can: invalid --rx-id: %w", err)}
		}

		reg := a.newMetrics()
		e := engine.New(nil, reg)
		c, err := transport.NewCAN(channel, txID, rxID, extendedID, e.Feed)
		if err != nil {
			return nil, nil, fmt.Errorf("can: failed to open %s: %w", channel, err)
		}
		e.SetTransport(c)
		return e, reg, nil
	}

	cmd.AddCommand(newPingCommand(a, open))
	cmd.AddCommand(newResetCommand(a, open))
	cmd.AddCommand(newGetPropertyCommand(a, open))
	cmd.AddCommand(newUploadCommand(a, open))
	cmd.AddCommand(newReadCommand(a, open))

	return cmd
}
