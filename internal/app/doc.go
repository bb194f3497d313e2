// Package app wires the coefficient web service together and manages its
// lifecycle.
//
// New builds, in order: paths, OpenTelemetry providers, the WebSocket hub,
// the ingestion guard, the calculation service, the session store, the
// health service and finally the chi router. Start binds the listener and
// launches the hub and the session sweeper; Stop shuts the server down
// within the configured timeout and flushes telemetry.
//
// Middleware order on the main route group:
//
//	RequestID → RealIP → OTel → Logger → Recoverer → SecureHeaders → CORS → RateLimit → Compress
//
// The /ws and /metrics routes sit outside the group so the upgrade and the
// scrape see an unwrapped ResponseWriter.
//
// Errors from New are returned, never fatal; main decides how to exit.
package app
