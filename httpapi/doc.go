// Package httpapi exposes a vario engine over HTTP using a chi router.
//
// Routes:
//
//	POST /experiments                                            create, 201
//	POST /experiments/{id}/choose                                choose a variant, 200
//	POST /experiments/{id}/variants/{variantID}/impressions      record, 204
//	POST /experiments/{id}/variants/{variantID}/conversions      record, 204
//	GET  /experiments/{id}/stats                                 snapshot, 200
//	GET  /healthz                                                liveness, 200
//
// Errors are JSON objects {"error": "..."}; 503 responses carry Retry-After.
// Bodies of 404 and 5xx responses carry a fixed message, never backend detail.
//
// When an event publisher is configured, impressions and conversions are
// published to JetStream and answered with 202 instead of being recorded
// inline. Malformed ids still get 404. A well-formed id that names no
// experiment or variant is accepted with 202 and dropped by the consumer.
package httpapi
