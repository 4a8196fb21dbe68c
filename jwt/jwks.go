package jwt

import (
	"context"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"fmt"

	"github.com/MicahParks/jwkset"
)

// JWKS returns the public verification key as a JSON Web Key Set so that
// resource servers can verify access tokens without sharing secrets.
func (j *Manager) JWKS(ctx context.Context) (json.RawMessage, error) {
	pub := j.PublicKey()
	if pub == nil {
		return nil, ErrNoPublicKey
	}

	alg := jwkset.AlgEdDSA
	switch pub.(type) {
	case ed25519.PublicKey:
	case *rsa.PublicKey:
		alg = jwkset.AlgRS256
	default:
		return nil, ErrNoPublicKey
	}

	jwk, err := jwkset.NewJWKFromKey(pub, jwkset.JWKOptions{
		Metadata: jwkset.JWKMetadataOptions{
			ALG: alg,
			KID: j.config.KeyID,
			USE: jwkset.UseSig,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build jwk: %w", err)
	}

	storage := jwkset.NewMemoryStorage()
	if err := storage.KeyWrite(ctx, jwk); err != nil {
		return nil, fmt.Errorf("store jwk: %w", err)
	}
	return storage.JSONPublic(ctx)
}
