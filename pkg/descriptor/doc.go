// Package descriptor turns a vassal's attributes into a types.Workload.
//
// Only docker-image is required. Every other attribute is optional;
// malformed sizes and port specs are rejected here, before anything is
// bound or created.
package descriptor
