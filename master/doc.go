// Package master implements the fieldbus master session that drives a calibration.
//
// A Session owns the bus driver, the process image and two background loops:
//   - Cyclic exchange: every cycle it transmits the process image, receives the returning frame within
//     a bounded wait and compares the working counter against the expected one.
//   - Fault monitor: when the working counter drops or a check was requested, it re-reads every slave
//     state and applies per-slave recovery (acknowledge, escalate, reconfigure, mark lost, recover).
//
// Session Lifecycle:
//   - Create a Session with `NewSession`, passing the driver, the slave directory and the calibration target.
//   - Call `Open` to bind the driver to a network interface.
//   - Call `BringUp` to discover and validate the slaves, map the process image, walk the bus to SAFEOP
//     and OP, start the loops and wait for every slave to report OPERATIONAL.
//   - Call `RunCalibration` to run one calibration procedure against the target.
//   - Call `Shutdown` on every exit path. It stops the loops, requests INIT and closes the driver.
//
// `Run` performs the whole sequence and always shuts down.
//
// Usage Example:
//
//	drv, _ := fieldbus.NewDriver("sim")
//	session, err := master.NewSession(ctx, drv, calibration.DefaultDirectory(), 2,
//	    master.WithOperationalRetries(40, 50*time.Millisecond),
//	)
//	// ... handle error ...
//
//	err = session.Run(ctx, "eth0", calibration.NewEncoderCalibration())
//	// ... handle error ...
package master
