/*
Package lifecycle drives a workload's container through the engine API.

Controller.CreateAndStart runs a linear state machine with one retry edge:

	CREATE --409 Conflict--> destroy by name --> CREATE
	CREATE --201 Created---> record id (cid file, ledger) --> START
	START  --204-----------> done

Every other status is fatal. A name conflict means a stale container from a
previous bridge still holds the workload's name; it is stopped and deleted
before the create is retried, at most Config.MaxConflictRetries times with a
linearly growing pause.

Destroyer.Destroy is the teardown sequencer: stop with a three second grace
period (204 or 304 accepted), then delete (204 only). Guard wraps the handle
of a created container so the teardown runs once, on whichever exit path
reaches it first.
*/
package lifecycle
