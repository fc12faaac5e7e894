package chat

import (
	"context"
	"fmt"
)

// Turn is one message of a conversation as seen by the model.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewTurn builds a turn, rejecting roles outside the closed set.
func NewTurn(role Role, content string) (Turn, error) {
	if !role.Valid() {
		return Turn{}, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(role))
	}
	return Turn{Role: role, Content: content}, nil
}

// Identity is the verified caller identity for one request.
// The empty identity is anonymous.
type Identity string

// Anonymous is the identity of callers that did not authenticate.
const Anonymous Identity = ""

// IsAnonymous reports whether no identity was supplied.
func (id Identity) IsAnonymous() bool {
	return id == Anonymous
}

type identityKey struct{}

// WithIdentity stores the caller identity in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity, or Anonymous.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}
