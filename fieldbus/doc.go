// Package fieldbus defines the building blocks shared by the master session and the calibration procedures
// of a cyclic master/slave fieldbus.
//
// The package offers the bus state machine values, the slave table types, the immutable slave directory,
// the lock-free process image and the Transport contract implemented by bus drivers. It also provides a
// generic TaskManager for running the background loops of a master session.
//
// Bus States:
// Slaves move through ascending readiness states, each of which can carry the ERROR/ACK modifier:
//   - StateInit:   Mailbox and process data disabled.
//   - StatePreOp:  Parameter channel available, process data disabled.
//   - StateSafeOp: Inputs exchanged, outputs held in a safe state.
//   - StateOp:     Full cyclic exchange.
//
// Transport:
// Drivers implement the Transport interface and register themselves with RegisterDriver, so that
// applications can select a driver by name with NewDriver. Frame transmission, slave enumeration and
// memory mapping belong to the driver; sequencing and recovery belong to the master session.
//
// Process Image:
// ProcessImage holds one output and one input buffer per slave. Buffers are replaced as a whole through
// atomic pointer swaps: a writer installs a fresh copy and the cyclic loop always transmits a complete
// buffer, never a partially written one.
package fieldbus
