// ABOUTME: Idle tracking for inbound traffic: a gRPC interceptor and an HTTP middleware.
// ABOUTME: Each request holds the idle trigger busy for its whole duration.

package gateway

import (
	"context"
	"net/http"

	"google.golang.org/grpc"

	"github.com/2389/face-gateway/internal/idle"
)

func idleUnaryInterceptor(trigger *idle.Trigger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		err = trigger.Track(func() error {
			resp, err = handler(ctx, req)
			return err
		})
		return resp, err
	}
}

func idleMiddleware(trigger *idle.Trigger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = trigger.Track(func() error {
			next.ServeHTTP(w, r)
			return nil
		})
	})
}
