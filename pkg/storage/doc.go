/*
Package storage provides the BoltDB-backed container ledger.

The ledger maps a workload name to the container a bridge created for it,
together with the bridge's session id, pid and last lifecycle state. A
bridge writes the record right after create, updates it after start and
removes it after a successful teardown. A record that outlives its bridge
points at a container that still needs cleaning, which is what
"vassal-bridge ls" and "vassal-bridge destroy" are for.

All bridge processes of one supervisor share <state-dir>/vassal-bridge.db.
BoltDB holds an exclusive file lock while a database is open, so BoltStore
opens the file per operation and waits at most two seconds for the lock.
*/
package storage
