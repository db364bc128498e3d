// Package logger wraps zap with a global sugared logger and context helpers
// (ToContext/FromContext/WithKV), so the manifest builder can log per-record
// detail through whatever logger its caller scoped onto the context.
package logger
