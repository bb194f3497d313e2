// Package http implements the HTTP surface of the coefficient web service.
//
// Handlers stay thin: they parse the request, call the calculation service
// or session store, and render the outcome. Errors go through the shared
// ErrorHandler, which writes RFC 7807 problem documents for the JSON API.
//
// Routes:
//
//	GET    /                                 upload form
//	POST   /calculations                     form upload, redirects to the result page
//	GET    /calculations/{id}                result page with a row preview
//	POST   /api/calculations                 multipart upload, JSON preview
//	GET    /api/calculations                 stored calculation IDs
//	GET    /api/calculations/{id}            preview window (offset, limit, sort)
//	GET    /api/calculations/{id}/report     workbook or CSV download
//	DELETE /api/calculations/{id}            drop a stored result
//	GET    /ws?calculation_id=               progress events for one calculation
//	GET    /api/health[/ready|/live|/detailed]
//	GET    /api/version, /api/stats, /metrics
//	POST   /api/logs                         browser-side log events
package http
