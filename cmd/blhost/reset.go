package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Lauszus/pyblhost/pkg/workflow"
)

func newResetCommand(a *app, open transportOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the target",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := open()
			if err != nil {
				return err
			}
			defer e.Shutdown(a.timeout())

			wf := workflow.New(e)
			for i := 0; i < a.cmdRepeat; i++ {
				if wf.Reset(a.timeout()) {
					logrus.Infof("blhost: target reset in %d attempt(s)", i+1)
					return nil
				}
			}
			return fmt.Errorf("reset: timed out waiting for reset response")
		},
	}
}
