// Command encoder_calibration runs the encoder zero-offset calibration of one wheel module.
//
//	encoder_calibration <iface> <slave_index>
package main

import (
	"os"

	"github.com/arloliu/go-wheelcal/calibration"
	"github.com/arloliu/go-wheelcal/internal/cli"
	"github.com/arloliu/go-wheelcal/logger"
	"github.com/arloliu/go-wheelcal/master"
)

func main() {
	os.Exit(cli.Main(cli.Command{
		Name: "encoder_calibration",
		NewProcedure: func(_ []string, l logger.Logger) (master.Procedure, error) {
			proc := calibration.NewEncoderCalibration()
			proc.Logger = l
			return proc, nil
		},
	}))
}
