package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/Lauszus/pyblhost/pkg/workflow"
)

func newReadCommand(a *app, open transportOpener) *cobra.Command {
	var outputPath, startAddressHex, byteCountHex string

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read a region of target memory to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath == "" {
				return argError{fmt.Errorf("read: --binary is required")}
			}
			startAddress, err := parseNumber(startAddressHex)
			if err != nil {
				return argError{fmt.Errorf("read: invalid --start-address: %w", err)}
			}
			byteCount, err := parseNumber(byteCountHex)
			if err != nil {
				return argError{fmt.Errorf("read: invalid --byte-count: %w", err)}
			}

			e, reg, err := open()
			if err != nil {
				return err
			}
			defer e.Shutdown(a.timeout())

			sink, sinkErr := a.newSink("blhost:read")
			if sinkErr != nil {
				logrus.Warnf("blhost: telemetry sink unavailable: %v", sinkErr)
			}
			defer sink.Close()

			p := mpb.New(mpb.WithWidth(60))
			var bar *mpb.Bar

			wf := workflow.New(e)
			data, err := wf.Read(startAddress, byteCount, workflow.ReadOptions{
				Timeout:    a.timeout(),
				PingRepeat: a.cmdRepeat,
				Progress: func(percent float64) {
					if bar == nil && percent > 0 {
						bar = p.AddBar(100,
							mpb.PrependDecorators(decor.Name("read: ")),
							mpb.AppendDecorators(decor.Percentage()),
						)
					}
					if bar != nil {
						bar.SetCurrent(int64(percent))
					}
					sink.Progress(percent)
					if reg != nil {
						reg.ReadProgress.Set(percent)
					}
				},
			})
			p.Wait()

			sink.Outcome(err == nil)
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}

			if writeErr := os.WriteFile(outputPath, data, 0o644); writeErr != nil {
				return fmt.Errorf("read: failed to write %s: %w", outputPath, writeErr)
			}
			logrus.Infof("blhost: read %d bytes to %s", len(data), outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outputPath, "binary", "", "Path to write the read-back image to")
	cmd.Flags().StringVar(&startAddressHex, "start-address", "", "Flash start address (hex or decimal)")
	cmd.Flags().StringVar(&byteCountHex, "byte-count", "", "Number of bytes to read")

	return cmd
}
