// Package logger builds the *slog.Logger used across the service.
//
// New returns a logger whose handler is wrapped by LogHandlerDecorator, so
// request-scoped values (request id, tenant, acting user) registered through
// WithContextExtractors are attached to every record logged with a context:
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, cfg.Name),
//		logger.WithContextExtractors(
//			requestid.LoggerExtractor(),
//			tenant.LoggerExtractor(),
//		),
//	)
//	log.InfoContext(ctx, "student created", logger.Component("school"))
//
// Attribute helpers in attr.go keep key names consistent between packages.
package logger
