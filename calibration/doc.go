// Package calibration implements the wheel module calibration procedures and the wheel bus layout.
//
// Two procedures run against the calibration target of a master session:
//   - EncoderCalibration arms the encoder zero-offset state machines of motor 1, motor 2 and the pivot,
//     polls their status registers until each reports success or failure, disarms them and commits
//     the result to the device storage when all three succeeded.
//   - MotorPhasing drives each motor winding with a fixed waveform for a configured duration by patching
//     the target's output buffer, restores the buffer, disarms the channel and commits.
//
// Both procedures treat cancellation as a regular outcome: the active calibration channels are forced
// back to "stop", nothing is committed and ErrCalibrationInterrupted is returned.
//
// Parameter Channel:
//
//	0x8100:8 / 0x8100:9  motor 1 calibration mode / status
//	0x8101:8 / 0x8101:9  motor 2 calibration mode / status
//	0x8102:8 / 0x8102:9  pivot calibration mode / status
//	0x8fff:1             commit to storage (write 1)
package calibration
