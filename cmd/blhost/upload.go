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

func newUploadCommand(a *app, open transportOpener) *cobra.Command {
	var binaryPath, startAddressHex, byteCountHex string
	var noReset, assumeSuccess bool
	var attempts int

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Erase and write a binary image to the target",
		RunE: func(cmd *cobra.Command, args []string) error {
			if binaryPath == "" {
				return argError{fmt.Errorf("upload: --binary is required")}
			}
			startAddress, err := parseNumber(startAddressHex)
			if err != nil {
				return argError{fmt.Errorf("upload: invalid --start-address: %w", err)}
			}
			byteCount, err := parseNumber(byteCountHex)
			if err != nil {
				return argError{fmt.Errorf("upload: invalid --byte-count: %w", err)}
			}

			data, err := os.ReadFile(binaryPath)
			if err != nil {
				return fmt.Errorf("upload: failed to read %s: %w", binaryPath, err)
			}

			e, reg, err := open()
			if err != nil {
				return err
			}
			defer e.Shutdown(a.timeout())

			sink, sinkErr := a.newSink("blhost:upload")
			if sinkErr != nil {
				logrus.Warnf("blhost: telemetry sink unavailable: %v", sinkErr)
			}
			defer sink.Close()

			// The progress bar is created on the first progress event
			// above 0%, never printed at 0% before anything has actually moved.
			p := mpb.New(mpb.WithWidth(60))
			var bar *mpb.Bar

			wf := workflow.New(e)
			ok, err := wf.Upload(data, startAddress, byteCount, workflow.UploadOptions{
				Timeout:       a.timeout(),
				PingRepeat:    a.cmdRepeat,
				Attempts:      attempts,
				ResetAfter:    !noReset,
				AssumeSuccess: assumeSuccess,
				Progress: func(percent float64) {
					if bar == nil && percent > 0 {
						bar = p.AddBar(100,
							mpb.PrependDecorators(decor.Name("upload: ")),
							mpb.AppendDecorators(decor.Percentage()),
						)
					}
					if bar != nil {
						bar.SetCurrent(int64(percent))
					}
					sink.Progress(percent)
					if reg != nil {
						reg.UploadProgress.Set(percent)
					}
				},
			})
			if err != nil {
				return argError{err}
			}
			p.Wait()

			sink.Outcome(ok)
			if !ok {
				return fmt.Errorf("upload: failed")
			}
			logrus.Info("blhost: upload succeeded")
			return nil
		},
	}

	cmd.Flags().StringVar(&binaryPath, "binary", "", "Path to the binary image to upload")
	cmd.Flags().StringVar(&startAddressHex, "start-address", "", "Flash start address (hex or decimal)")
	cmd.Flags().StringVar(&byteCountHex, "byte-count", "", "Region size to erase, in bytes (hex or decimal)")
	cmd.Flags().BoolVar(&noReset, "no-reset", false, "Do not reset the target after uploading")
	cmd.Flags().BoolVar(&assumeSuccess, "assume-success", false, "Treat a terminal-status timeout as success")
	cmd.Flags().IntVar(&attempts, "attempts", 1, "Number of upload attempts before giving up")

	return cmd
}
