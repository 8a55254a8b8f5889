// Package httputil holds the small shared HTTP surface: JSON response
// helpers with a uniform error body, request decoding, and the generic
// middleware every route gets (request IDs, access logging, panic
// recovery, body size caps).
//
// Handlers follow the write-or-return pattern:
//
//	var req CreateChannelRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//	if !httputil.RequireNonEmpty(w, req.Name, "name") {
//		return
//	}
//	httputil.WriteCreated(w, channel)
//
// Error responses all share the {"error": "..."} body so clients parse
// one shape regardless of status code.
package httputil
