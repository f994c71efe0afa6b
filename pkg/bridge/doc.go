/*
Package bridge runs one vassal inside a container, from attribute lookup
to teardown.

A Runner resolves the workload, binds its sockets before anything exists
in the engine, creates and starts the container, then attaches to it until
the stream ends or the context is cancelled. Once a container exists it is
destroyed on every path out of Run.
*/
package bridge
