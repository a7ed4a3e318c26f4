// Command blhost drives the NXP MCUBOOT/KBOOT bootloader protocol over a
// CAN or serial transport: ping, reset, get-property, upload and read.
package main

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"
)

// argError marks a failure that should exit with code 2 (spec §6): bad
// arguments caught before any transport I/O was attempted.
type argError struct{ err error }

func (e argError) Error() string { return e.err.Error() }
func (e argError) Unwrap() error { return e.err }

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		var ae argError
		if errors.As(err, &ae) {
			logrus.Error(ae.Error())
			os.Exit(2)
		}
		logrus.Error(err)
		os.Exit(1)
	}
}
