package auth

import (
	"context"

	"connectrpc.com/connect"
)

// LocalDevInterceptor marks every request as the local user. It is used when
// the server only listens on loopback and no API token is configured.
func LocalDevInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if isPublicEndpoint(req.Spec().Procedure) {
				return next(ctx, req)
			}

			ctx = withUserClaims(ctx, &UserClaims{UID: LocalUserID})
			return next(ctx, req)
		}
	}
}
