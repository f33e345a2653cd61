// Package cli holds the command line plumbing shared by the calibration commands.
//
// The bus driver must be named by the WHEELCAL_DRIVER environment variable, and an optional
// YAML file named by WHEELCAL_CONFIG overrides the slave directory, the session timing and enables
// status export. ENV=development switches the log output to the console handler.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/arloliu/go-wheelcal/calibration"
	"github.com/arloliu/go-wheelcal/config"
	"github.com/arloliu/go-wheelcal/fieldbus"
	"github.com/arloliu/go-wheelcal/logger"
	"github.com/arloliu/go-wheelcal/master"
	"github.com/arloliu/go-wheelcal/status"

	// registers the simulated driver
	_ "github.com/arloliu/go-wheelcal/internal/simbus"
)

const (
	envDriver = "WHEELCAL_DRIVER"
	envConfig = "WHEELCAL_CONFIG"
	envLevel  = "WHEELCAL_LOG_LEVEL"
)

// ProcedureFactory builds the calibration procedure from the arguments following <iface> <slave_index>.
type ProcedureFactory func(args []string, l logger.Logger) (master.Procedure, error)

// Command describes one calibration command.
type Command struct {
	Name string
	// ExtraArgs names the arguments following <iface> <slave_index>.
	ExtraArgs    []string
	NewProcedure ProcedureFactory
}

func (c Command) usage() string {
	u := "usage: " + c.Name + " <iface> <slave_index>"
	for _, a := range c.ExtraArgs {
		u += " <" + a + ">"
	}
	return u
}

// Main runs the command with the process arguments and returns the exit code.
func Main(cmd Command) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, cmd, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.Name, err)
		return 1
	}

	return 0
}

// Run parses args, brings the bus up and runs the calibration. Usage errors are written to stderr.
func Run(ctx context.Context, cmd Command, args []string, stderr io.Writer) error {
	if len(args) != 2+len(cmd.ExtraArgs) {
		fmt.Fprintln(stderr, cmd.usage())
		return errors.New("invalid arguments")
	}

	iface := args[0]
	target, err := strconv.Atoi(args[1])
	if err != nil || target < 0 {
		fmt.Fprintln(stderr, cmd.usage())
		return fmt.Errorf("invalid slave index %q", args[1])
	}

	driver := os.Getenv(envDriver)
	if driver == "" {
		return fmt.Errorf("%w: %s is not set, available drivers: %s",
			fieldbus.ErrDriverNotFound, envDriver, strings.Join(fieldbus.Drivers(), ", "))
	}

	l := logger.NewSlog(logLevel(), false)
	logger.SetDefault(l)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir, err := cfg.Directory(calibration.Hooks())
	if err != nil {
		return err
	}

	proc, err := cmd.NewProcedure(args[2:], l)
	if err != nil {
		fmt.Fprintln(stderr, cmd.usage())
		return err
	}

	if err := calibration.CheckTarget(dir, target); err != nil {
		return err
	}

	drv, err := fieldbus.NewDriver(driver)
	if err != nil {
		return err
	}

	opts := append(cfg.SessionOptions(), master.WithLogger(l), master.WithMinTargetOutput(calibration.MinOutputSize))
	if sc, ok := cfg.StatusWriterConfig(); ok {
		w, err := status.Dial(sc)
		if err != nil {
			l.Warn("status export disabled", "endpoint", sc.Endpoint, "error", err)
		} else {
			defer w.Close()
			opts = append(opts, master.WithStatusExporter(w, cfg.StatusInterval()))
		}
	}

	session, err := master.NewSession(ctx, drv, dir, target, opts...)
	if err != nil {
		return err
	}

	l.Info("calibration session", "command", cmd.Name, "driver", driver, "interface", iface, "target", target)

	return session.Run(ctx, iface, proc)
}

func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}

	if path := os.Getenv(envConfig); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		if err := config.Validate(loaded); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		cfg = loaded
	}
	config.Normalize(cfg)

	return cfg, nil
}

func logLevel() logger.Level {
	switch os.Getenv(envLevel) {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
