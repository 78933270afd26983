// Package config holds the options that shape how the bridge plans buffers,
// maps types and moves values.
//
// Options are plain yaml-tagged structs. NewOptions returns the defaults, Load
// overlays a YAML file (with ${VAR_NAME} environment substitution) and
// Validate catches out-of-range values before a reader or writer is built:
//
//	opts := config.NewOptions()
//	if err := config.Load("arrowodbc.yaml", opts); err != nil {
//		return err
//	}
//	if err := opts.Validate(); err != nil {
//		return err
//	}
//
// A reader or writer copies the options at construction, so mutating an
// Options value afterwards has no effect on it.
package config
