// Package proxy binds the sockets a vassal needs and hands the
// supervisor's control descriptors to the process inside the container.
package proxy
