package flows

import (
	"context"

	"github.com/MrEthical07/goIdentity/jwt"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureInvalid
	ValidateFailureDenylisted
	ValidateFailureDenylistUnavailable
)

// ValidateResult returns either claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.AccessClaims
}

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	ParseAccess  func(string) (*jwt.AccessClaims, error)
	IsDenylisted func(ctx context.Context, jti string) (bool, error)
}

// RunValidate verifies signature and claims, then consults the denylist.
// A denylist outage fails the request.
func RunValidate(ctx context.Context, tokenStr string, deps ValidateDeps) ValidateResult {
	claims, err := deps.ParseAccess(tokenStr)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureInvalid, Err: err}
	}

	denied, err := deps.IsDenylisted(ctx, claims.ID)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureDenylistUnavailable, Err: err, Claims: claims}
	}
	if denied {
		return ValidateResult{Failure: ValidateFailureDenylisted, Claims: claims}
	}

	return ValidateResult{Claims: claims}
}
