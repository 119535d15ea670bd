package middleware

import "context"

type holderKey struct{}

// identityHolder lets an inner middleware report the verified user back to
// Logger, which only sees the request it created.
type identityHolder struct {
	userID string
}

func withIdentityHolder(ctx context.Context, h *identityHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

func identityHolderFrom(ctx context.Context) *identityHolder {
	h, _ := ctx.Value(holderKey{}).(*identityHolder)
	return h
}
