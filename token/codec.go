package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec failure sentinels. The validator and engine branch on these with
// errors.Is; anything else from Decode is a malformed-token failure.
var (
	ErrMalformed        = errors.New("token malformed")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
	ErrUnknownType      = errors.New("token type unknown")
)

// SigningMethod names the HMAC algorithm used for the whole deployment.
type SigningMethod string

const (
	// MethodHS256 is the default signing method.
	MethodHS256 SigningMethod = "hs256"
	// MethodHS384 is an exported signing method supported by the codec.
	MethodHS384 SigningMethod = "hs384"
	// MethodHS512 is an exported signing method supported by the codec.
	MethodHS512 SigningMethod = "hs512"
)

// Config fixes the codec's secret and verification posture at startup.
type Config struct {
	Secret        []byte
	SigningMethod SigningMethod
	Issuer        string
	// Audience is stamped into new tokens and enforced on decode. Tokens
	// minted before the audience convention was introduced carry no aud
	// claim; Decode falls back to a lenient parse for exactly that case.
	Audience string
	Leeway   time.Duration
}

// Codec encodes and decodes signed claim sets. It is immutable and safe for
// concurrent use.
type Codec struct {
	config Config
	method jwt.SigningMethod
}

// NewCodec validates the configuration and returns a ready codec. A missing
// secret is a construction error, never a per-request one.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token: signing secret required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway configuration")
	}
	var method jwt.SigningMethod
	switch cfg.SigningMethod {
	case "", MethodHS256:
		method = jwt.SigningMethodHS256
	case MethodHS384:
		method = jwt.SigningMethodHS384
	case MethodHS512:
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("token: unsupported signing method %q", cfg.SigningMethod)
	}
	return &Codec{config: cfg, method: method}, nil
}

// Encode signs the claim set into its compact serialized form.
func (c *Codec) Encode(claims *Claims) (string, error) {
	if !claims.Type.Valid() {
		return "", ErrUnknownType
	}
	if c.config.Issuer != "" && claims.Issuer == "" {
		claims.Issuer = c.config.Issuer
	}
	if c.config.Audience != "" && len(claims.Audience) == 0 {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}
	return jwt.NewWithClaims(c.method, claims).SignedString(c.config.Secret)
}

// Decode verifies the signature and registered claims and returns the claim
// set. Verification is attempted strictly (audience enforced) first; when the
// only complaint is the audience, a lenient second attempt accepts tokens
// minted before the audience claim existed.
func (c *Codec) Decode(raw string) (*Claims, error) {
	claims, err := c.parse(raw, true, true)
	if err == nil {
		return claims, nil
	}
	if c.config.Audience != "" && isAudienceFailure(err) {
		return c.finish(c.parse(raw, false, true))
	}
	return c.finish(claims, err)
}

// DecodeExpired verifies the signature but tolerates an expired token. Logout
// uses it to recover the unique id of a borderline access token without
// failing the whole operation.
func (c *Codec) DecodeExpired(raw string) (*Claims, error) {
	claims, err := c.parse(raw, false, false)
	return c.finish(claims, err)
}

func (c *Codec) parse(raw string, enforceAudience, validateClaims bool) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" && validateClaims {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if enforceAudience && c.config.Audience != "" {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}
	if !validateClaims {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if !claims.Type.Valid() {
		return nil, ErrUnknownType
	}
	return claims, nil
}

// finish maps golang-jwt failures onto the codec sentinels.
func (c *Codec) finish(claims *Claims, err error) (*Claims, error) {
	if err == nil {
		return claims, nil
	}
	switch {
	case errors.Is(err, ErrUnknownType):
		return nil, err
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func isAudienceFailure(err error) bool {
	return errors.Is(err, jwt.ErrTokenInvalidAudience) ||
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing)
}
