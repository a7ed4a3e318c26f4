package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Lauszus/pyblhost/pkg/workflow"
)

func newPingCommand(a *app, open transportOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Ping the target and report the protocol version",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := open()
			if err != nil {
				return err
			}
			defer e.Shutdown(a.timeout())

			wf := workflow.New(e)
			for i := 0; i < a.cmdRepeat; i++ {
				if wf.Ping(a.timeout()) {
					logrus.Infof("blhost: target responded in %d attempt(s), protocol version %s", i+1, e.LastPingVersion)
					return nil
				}
			}
			return fmt.Errorf("ping: timed out waiting for ping response")
		},
	}
}
