package providerutil

import "net/http"

// AuthHeaders merges caller-supplied headers over the driver's base set. The
// base entries win on conflict unless allowOverride is set, so a stray
// Authorization header in request options cannot silently replace the
// configured credentials.
func AuthHeaders(base map[string]string, extra map[string]string, allowOverride bool) http.Header {
	headers := make(http.Header, len(base)+len(extra))
	for k, v := range extra {
		headers.Set(k, v)
	}
	for k, v := range base {
		if !allowOverride || headers.Get(k) == "" {
			headers.Set(k, v)
		}
	}
	return headers
}

// ApplyHeaders sets the merged header set on an outgoing request.
func ApplyHeaders(req *http.Request, base, extra map[string]string, allowOverride bool) {
	for k, values := range AuthHeaders(base, extra, allowOverride) {
		for _, v := range values {
			req.Header.Set(k, v)
		}
	}
}
