package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Lauszus/pyblhost/pkg/protocol"
	"github.com/Lauszus/pyblhost/pkg/workflow"
)

func newGetPropertyCommand(a *app, open transportOpener) *cobra.Command {
	var propHex string
	var memoryID uint32

	cmd := &cobra.Command{
		Use:   "get-property",
		Short: "Query a bootloader property",
		RunE: func(cmd *cobra.Command, args []string) error {
			if propHex == "" {
				return argError{fmt.Errorf("get-property: --prop is required")}
			}
			prop, err := parseNumber(propHex)
			if err != nil {
				return argError{fmt.Errorf("get-property: invalid --prop: %w", err)}
			}

			e, _, err := open()
			if err != nil {
				return err
			}
			defer e.Shutdown(a.timeout())

			wf := workflow.New(e)
			values, ok := wf.GetProperty(protocol.PropertyTag(prop), memoryID, a.timeout(), a.cmdRepeat)
			if !ok {
				return fmt.Errorf("get-property: operation failed")
			}

			if sink, sinkErr := a.newSink("blhost:get-property"); sinkErr == nil {
				sink.PropertyValues(values)
				defer sink.Close()
			} else {
				logrus.Warnf("blhost: telemetry sink unavailable: %v", sinkErr)
			}

			for _, v := range values {
				logrus.Infof("blhost: property value: %s", protocol.RenderPropertyValue(v))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&propHex, "prop", "", "Property tag to query (hex or decimal)")
	cmd.Flags().Uint32Var(&memoryID, "memory-id", 0, "Memory ID the property applies to")

	return cmd
}
