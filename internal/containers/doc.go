// Package containers defines the driver contract that every instance backend
// implements, together with the shared pieces all drivers rely on: the error
// taxonomy, the Status value returned by steady-state transitions, the
// capability metadata returned from Init, and decorators that add logging,
// auditing and log archival around any driver.
//
// Lifecycle, per instance:
//
//	absent --Create--> running --Stop--> stopped --Start--> running --Remove--> absent
//
// StateError is entered when a backend reports a fault and is left only by
// Remove followed by Create.
//
// Structural failures (duplicate id on Create, unknown id on Remove) are Go
// errors of type *Error. Faults during Start, Stop and Restart are reported
// in the returned Status instead; callers must check Status.OK even when the
// call itself completed.
package containers
