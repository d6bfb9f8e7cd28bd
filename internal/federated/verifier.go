// Package federated wraps the external identity-token verification
// collaborator. The storefront never parses or validates third-party
// identity tokens itself; it forwards them to a verification service and
// consumes the asserted identity.
package federated

import "context"

// Identity is the verified assertion exposed by the collaborator after it
// has independently validated signature, issuer and audience of the
// third-party token.
type Identity struct {
	SubjectID   string
	Email       string
	DisplayName string
}

// Verifier validates an opaque third-party identity token. A failed
// verification is an error, never an empty Identity, so an invalid token
// can not be mistaken for a valid token with empty claims.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}
