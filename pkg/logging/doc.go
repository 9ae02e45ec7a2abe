// Package logging provides the structured logging used across the
// aggregator: subsystem-tagged Debug/Info/Warn/Error calls on top of
// log/slog, plus an audit-event helper for security-sensitive operations
// (the connection manager audits its upstream OAuth steps).
//
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//	logging.Info("connmgr", "connected to upstream %s", name)
//	logging.Error("connmgr", err, "upstream %s failed to connect", name)
//	logging.Audit(logging.AuditEvent{Action: "oauth_reconnect", Outcome: "success", Target: name})
package logging
