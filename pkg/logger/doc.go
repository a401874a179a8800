// Package logger provides a context-aware wrapper around Go's slog package
// adding functional options for configuration, helper attribute constructors,
// and transparent injection of values stored in context.Context.
//
// The package aims to standardise structured logging across services by
// exposing a single factory, New, that creates a *slog.Logger configured by
// a set of Option functions. These options allow you to:
//
//   • Select an output format (text or json)
//   • Set the minimum log level
//   • Supply default slog.Attr values applied to every record
//   • Register ContextExtractor callbacks that inject attributes pulled from a
//     context value (for example a request id) every time Handle is invoked.
//
// # Architecture
//
// Logger builds a decorated slog.Handler. First, New determines the concrete
// slog.Handler implementation (slog.NewTextHandler or slog.NewJSONHandler)
// based on the configured Format. It then wraps the handler with
// ContextHandler, which runs the registered ContextExtractor callbacks on
// every call and skips keys the record already carries.
//
// Helper constructors such as Error, TenantID, NotificationID, Channel and
// Attempts use the Key constants in attr.go, so the queue, the delivery
// worker and the HTTP module log under the same names. Identifier helpers
// render uuid values as strings and drop nil or zero ids.
//
// # Usage
//
//	import "github.com/dmitrymomot/notifyq/pkg/logger"
//
//	func main() {
//	    log := logger.New(
//	        logger.WithDevelopment("notifyq"),
//	        logger.WithContextExtractors(requestid.LoggerExtractor()),
//	    )
//	    logger.SetAsDefault(log)
//
//	    log.InfoContext(ctx, "notification delivered",
//	        logger.NotificationID(rec.ID),
//	        logger.Channel("email"),
//	        logger.Duration(time.Since(start)),
//	    )
//	}
//
// # Configuration
//
// The behaviour of New can be tuned with a variety of Option helpers:
//
//   • NewFromConfig: build from the APP_ENV, LOG_LEVEL and LOG_FORMAT variables.
//   • WithDevelopment / WithStaging / WithProduction: sensible defaults per environment.
//   • WithFormat / WithTextFormatter / WithJSONFormatter: override output format.
//   • WithLevel: set a custom slog.Level.
//   • WithAttr: attach static attributes.
//   • WithContextExtractors: inject attributes from context.
//
// # Error Handling
//
// Helper functions Error and Errors produce attributes only when the supplied
// error value is non-nil allowing calls like:
//
//	log.Info("operation succeeded", logger.Error(err))
//
// without an additional nil check.
package logger
