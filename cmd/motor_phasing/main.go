// Command motor_phasing runs the motor phase calibration of one wheel module, driving each motor for
// the given number of seconds.
//
//	motor_phasing <iface> <slave_index> <duration_s>
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/arloliu/go-wheelcal/calibration"
	"github.com/arloliu/go-wheelcal/internal/cli"
	"github.com/arloliu/go-wheelcal/logger"
	"github.com/arloliu/go-wheelcal/master"
)

func main() {
	os.Exit(cli.Main(cli.Command{
		Name:      "motor_phasing",
		ExtraArgs: []string{"duration_s"},
		NewProcedure: func(args []string, l logger.Logger) (master.Procedure, error) {
			secs, err := strconv.ParseFloat(args[0], 64)
			if err != nil || secs <= 0 {
				return nil, fmt.Errorf("invalid duration %q", args[0])
			}

			proc := calibration.NewMotorPhasing(time.Duration(secs * float64(time.Second)))
			proc.Logger = l
			return proc, nil
		},
	}))
}
