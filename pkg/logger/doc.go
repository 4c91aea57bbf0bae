// Package logger builds *slog.Logger values for session nodes and supplies
// attribute helpers so every package names fields the same way.
//
// New returns a JSON logger at info level writing to stdout. Options change
// that:
//
//   - WithEnvironment picks level and format from a deployment name
//     ("production", "staging", anything else means development) and tags
//     records with service and env.
//   - WithLevel and WithLevelName override the level. WithLevelName accepts
//     the names slog.Level understands and ignores the rest, so it can take
//     an environment variable verbatim.
//   - WithAttr attaches static attributes such as NodeID.
//   - WithContextExtractors and WithContextValue pull attributes out of the
//     context passed to the *Context logging methods.
//
// Attributes can also ride on the context itself:
//
//	ctx = logger.ContextWith(ctx, logger.SessionID(sess.ID()))
//	log.InfoContext(ctx, "session renewed")
//
// Helpers such as Error and SessionID return an empty slog.Attr for nil or
// empty input, which slog drops, so callers do not need nil checks:
//
//	log.Error("complete session", logger.SessionID(id), logger.Error(err))
package logger
