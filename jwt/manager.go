package jwt

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the access token algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519. This is the default.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodRS256 signs with RSASSA-PKCS1-v1_5 using SHA-256.
	MethodRS256 SigningMethod = "rs256"
	// MethodHS256 is symmetric and intended for tests and local development.
	MethodHS256 SigningMethod = "hs256"
)

// ResetAudience is the audience claim carried by password reset tokens.
const ResetAudience = "password-reset"

var (
	// ErrWrongAudience is returned when a token is presented to the wrong parser.
	ErrWrongAudience = errors.New("token audience not accepted")
	// ErrMissingClaims is returned when sub, jti or exp is absent.
	ErrMissingClaims = errors.New("token missing required claims")
	// ErrNoPublicKey is returned when a symmetric manager is asked for a JWK Set.
	ErrNoPublicKey = errors.New("signing method has no public key")
)

// Config configures a [Manager].
type Config struct {
	AccessTTL     time.Duration
	ResetTTL      time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Manager mints and verifies access and password reset tokens.
//
// Manager instances are intended to be configured during initialization and
// then treated as immutable.
type Manager struct {
	config Config
	method jwt.SigningMethod
	sign   any
	verify any
	extra  map[string]any
}

// AccessClaims is the access token payload: sub, jti, roles, permissions
// in "ACTION:subject" form, iat and exp.
type AccessClaims struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// ResetClaims is the password reset token payload: sub, jti and the fixed
// [ResetAudience].
type ResetClaims struct {
	jwt.RegisteredClaims
}

// NewManager validates cfg and parses its keys once.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.ResetTTL == 0 {
		cfg.ResetTTL = 15 * time.Minute
	}
	if cfg.ResetTTL < 0 {
		return nil, errors.New("invalid reset TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Audience == ResetAudience {
		return nil, errors.New("access audience collides with reset audience")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{config: cfg, extra: make(map[string]any)}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		m.method = jwt.SigningMethodHS256
		m.sign = cfg.PrivateKey
		m.verify = cfg.PrivateKey
	case MethodEd25519, "":
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.sign = priv
			m.verify = priv.Public()
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verify = pub
		}
	case MethodRS256:
		m.method = jwt.SigningMethodRS256
		if len(cfg.PrivateKey) > 0 {
			priv, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKey)
			if err != nil {
				return nil, errors.New("invalid rsa private key")
			}
			m.sign = priv
			m.verify = &priv.PublicKey
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKey)
			if err != nil {
				return nil, errors.New("invalid rsa public key")
			}
			m.verify = pub
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	if m.verify == nil && len(cfg.VerifyKeys) == 0 {
		return nil, fmt.Errorf("%s requires public key or verify key set", cfg.SigningMethod)
	}
	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		parsed, err := m.keyBytesToVerifyKey(key)
		if err != nil {
			return nil, fmt.Errorf("invalid verify key for kid %q: %w", kid, err)
		}
		m.extra[kid] = parsed
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return m, nil
}

// AccessTTL returns the configured access token lifetime.
func (j *Manager) AccessTTL() time.Duration {
	return j.config.AccessTTL
}

// CanSign reports whether a private key was configured.
func (j *Manager) CanSign() bool {
	return j.sign != nil
}

// CreateAccess signs an access token for sub with a fresh jti.
func (j *Manager) CreateAccess(sub string, roles, permissions []string) (string, *AccessClaims, error) {
	if sub == "" {
		return "", nil, ErrMissingClaims
	}
	now := time.Now()
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}

	claims := &AccessClaims{
		Roles:       roles,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.AccessTTL)),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	signed, err := j.signClaims(claims)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseAccess verifies signature, algorithm, expiry, issuer and audience.
// Password reset tokens are rejected.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	options := j.parserOptions()
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	claims := &AccessClaims{}
	if err := j.parse(tokenStr, claims, options); err != nil {
		return nil, err
	}
	for _, aud := range claims.Audience {
		if aud == ResetAudience {
			return nil, ErrWrongAudience
		}
	}
	if claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrMissingClaims
	}
	if err := j.checkFutureIAT(claims.IssuedAt); err != nil {
		return nil, err
	}
	return claims, nil
}

// CreateReset signs a single-use password reset token for sub.
func (j *Manager) CreateReset(sub string) (string, *ResetClaims, error) {
	if sub == "" {
		return "", nil, ErrMissingClaims
	}
	now := time.Now()
	claims := &ResetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ID:        uuid.NewString(),
			Audience:  jwt.ClaimStrings{ResetAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.ResetTTL)),
			Issuer:    j.config.Issuer,
		},
	}
	signed, err := j.signClaims(claims)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseReset verifies a reset token including its audience.
func (j *Manager) ParseReset(tokenStr string) (*ResetClaims, error) {
	options := append(j.parserOptions(), jwt.WithAudience(ResetAudience))

	claims := &ResetClaims{}
	if err := j.parse(tokenStr, claims, options); err != nil {
		if errors.Is(err, jwt.ErrTokenInvalidAudience) {
			return nil, ErrWrongAudience
		}
		return nil, err
	}
	if claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrMissingClaims
	}
	return claims, nil
}

// PublicKey returns the verification key, or nil for symmetric methods.
func (j *Manager) PublicKey() crypto.PublicKey {
	switch k := j.verify.(type) {
	case ed25519.PublicKey:
		return k
	case *rsa.PublicKey:
		return k
	}
	return nil
}

func (j *Manager) signClaims(claims jwt.Claims) (string, error) {
	if j.sign == nil {
		return "", errors.New("manager has no signing key")
	}
	token := jwt.NewWithClaims(j.method, claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}
	return token.SignedString(j.sign)
}

func (j *Manager) parserOptions() []jwt.ParserOption {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	return options
}

func (j *Manager) parse(tokenStr string, claims jwt.Claims, options []jwt.ParserOption) error {
	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, j.keyFunc)
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

func (j *Manager) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != j.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	kid, _ := t.Header["kid"].(string)
	if len(j.extra) > 0 {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if key, ok := j.extra[kid]; ok {
			return key, nil
		}
		if kid != j.config.KeyID || j.verify == nil {
			return nil, errors.New("unknown kid")
		}
		return j.verify, nil
	}

	if j.config.KeyID != "" {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != j.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	return j.verify, nil
}

func (j *Manager) checkFutureIAT(iat *jwt.NumericDate) error {
	if iat == nil || j.config.MaxFutureIAT <= 0 {
		return nil
	}
	if iat.Time.After(time.Now().Add(j.config.MaxFutureIAT)) {
		return errors.New("token iat too far in the future")
	}
	return nil
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (any, error) {
	switch j.method {
	case jwt.SigningMethodHS256:
		return key, nil
	case jwt.SigningMethodRS256:
		return jwt.ParseRSAPublicKeyFromPEM(key)
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
