package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// RemoteConfig configures a [RemoteVerifier].
type RemoteConfig struct {
	JWKSURL         string
	Issuer          string
	Audience        string
	Leeway          time.Duration
	RefreshInterval time.Duration
	HTTPClient      *http.Client
	// OnRefreshError receives background JWKS refresh failures.
	OnRefreshError func(ctx context.Context, err error)
}

// RemoteVerifier verifies access tokens against a published JWK Set. It is
// meant for resource servers that only hold the issuer's JWKS URL.
type RemoteVerifier struct {
	kf      keyfunc.Keyfunc
	options []jwt.ParserOption
}

// NewRemoteVerifier starts a background JWKS refresher bound to ctx.
func NewRemoteVerifier(ctx context.Context, cfg RemoteConfig) (*RemoteVerifier, error) {
	if cfg.JWKSURL == "" {
		return nil, errors.New("jwks url is required")
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Minute
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    client,
		Ctx:                       ctx,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.RefreshInterval,
		RefreshErrorHandler:       cfg.OnRefreshError,
	})
	if err != nil {
		return nil, fmt.Errorf("create jwks storage: %w", err)
	}

	kf, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("create keyfunc: %w", err)
	}
	return newRemoteVerifier(kf, cfg), nil
}

// NewRemoteVerifierFromJSON builds a verifier over a static JWK Set.
func NewRemoteVerifierFromJSON(raw []byte, cfg RemoteConfig) (*RemoteVerifier, error) {
	kf, err := keyfunc.NewJWKSetJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("create keyfunc: %w", err)
	}
	return newRemoteVerifier(kf, cfg), nil
}

func newRemoteVerifier(kf keyfunc.Keyfunc, cfg RemoteConfig) *RemoteVerifier {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg(), jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	return &RemoteVerifier{kf: kf, options: options}
}

// Verify checks signature and registered claims. Denylist checks remain
// the issuer's responsibility.
func (v *RemoteVerifier) Verify(ctx context.Context, tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.NewParser(v.options...).ParseWithClaims(tokenStr, claims, v.kf.KeyfuncCtx(ctx))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	for _, aud := range claims.Audience {
		if aud == ResetAudience {
			return nil, ErrWrongAudience
		}
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrMissingClaims
	}
	return claims, nil
}
