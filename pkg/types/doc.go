// Package types holds the data model shared by the bridge components: the
// resolved workload description, its proxy endpoint, and the handle of the
// container created for it.
package types
