/*
Package engine is a minimal client for the container engine's REST API,
served on a local unix socket.

Client.Call sends one JSON request on a fresh connection and returns the
status code with the buffered body; deciding which statuses are acceptable
is left to the caller. Transport failures come back as *TransportError,
unexpected statuses are reported by callers as *StatusError.

	client := engine.NewClient(cfg)
	resp, err := client.Call(ctx, http.MethodPost, "/containers/"+id+"/start", body)

Client.Find resolves a container name to its id through the full container
listing, so stopped containers are found as well.

The enginetest subpackage serves a scripted engine on a temporary socket.
*/
package engine
