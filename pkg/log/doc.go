// Package log is the cardex logging layer: a thin wrapper around the
// standard library logger that hands out named loggers.
//
//	l := log.ForService("search")
//	l.Infof("query %q returned %d rows", q, n)
//	l.Debugf("plan: %+v", plan) // only with --debug or EnableDebugFor("search")
//
// Debug output can be switched on globally (SetGlobalDebug, the --debug flag)
// or per logger name (EnableDebugFor, EnableDebugList). Tests redirect output
// with SetOutput.
//
// The package name collides with the standard library "log"; alias one of
// them when both are needed.
package log
