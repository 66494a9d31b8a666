// Package http implements the HTTP handlers of the dashboard API.
// Handlers are a thin layer over the services: they parse and validate the
// query string, call the service and format the response.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Dataset cache
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Query Parameters
//
// Every dashboard endpoint accepts the same filter:
//
//	year      repeatable or comma separated, e.g. ?year=2022&year=2023
//	region    repeatable health region name
//	category  repeatable condition category; none selects all twelve
//	horizon   forecast months, 1 to the configured maximum
//
// # Responses
//
// Successful JSON responses are wrapped as {"status": "success", "data": ...}.
// Charts are served as image/png and exports as file attachments.
//
// # Error Handling
//
// Errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/data/no-data",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "No data after filtering",
//	    "instance": "/api/dashboard/temporal/total",
//	    "error_code": "NO_DATA"
//	}
//
// Service sentinels are mapped here; typed domain errors are mapped by
// internal/errors.
package http
