/*
Package attach connects to a running container's tty stream.

The engine's attach endpoint upgrades the connection to a raw stream, so
the request is written by hand on a dedicated connection instead of going
through the engine client. Output is copied to the log sink in chunks of
at most ChunkSize bytes, unframed and unmodified, until the engine closes
the stream (the container exited) or the bridge is told to stop.
*/
package attach
