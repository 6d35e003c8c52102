package testutil

import (
	"context"
	"time"

	"safepilgrim/pkg/requestcontext"
)

// RequestContext returns a context carrying the metadata the HTTP middleware
// would attach: a request ID, a fixed request time and client details.
func RequestContext(requestID string, now time.Time) context.Context {
	ctx := requestcontext.WithRequestID(context.Background(), requestID)
	ctx = requestcontext.WithTime(ctx, now)
	return requestcontext.WithClientMetadata(ctx, "192.0.2.1", "testutil", "test device")
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T { return &v }
