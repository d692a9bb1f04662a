package authcore

import (
	"context"
	"io"

	"github.com/calyptra/authcore/internal/audit"
	"github.com/calyptra/authcore/internal/flows"
	"github.com/calyptra/authcore/rbac"
	"github.com/calyptra/authcore/token"
)

// UserRecord is the account snapshot the engine reads from the injected
// [UserStore]. The engine never writes user rows except through the narrow
// update methods on the store contract.
type UserRecord struct {
	ID           string
	Email        string
	Phone        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	IsVerified   bool
	IsSuperuser  bool
}

// Profile converts the record into the snapshot embedded in session tokens.
func (u UserRecord) Profile() token.Profile {
	return token.Profile{
		ID:          u.ID,
		Email:       u.Email,
		Phone:       u.Phone,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
		IsSuperuser: u.IsSuperuser,
	}
}

// CreateUserInput is the input for [UserStore.CreateUser].
type CreateUserInput struct {
	Email        string
	Phone        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsActive     bool
	IsVerified   bool
}

// UserStore is the contract onto the external user database. Identifier
// lookup must accept email (matched case-insensitively) and phone
// (digits-normalized, optional leading +) forms.
type UserStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*UserRecord, error)
	FindByID(ctx context.Context, id string) (*UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (string, error)
	UpdateLastSignIn(ctx context.Context, id string) error
	// UpdateVerification marks the user verified through the named channel,
	// "email" or "phone".
	UpdateVerification(ctx context.Context, id, channel string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Principal is the normalized output of Authenticate. The fast path (session
// tokens) fills Profile, Permissions and Groups from embedded claims; access
// tokens yield only the lean identity plus status flags, and callers needing
// more fetch it from the user store themselves.
type Principal struct {
	UserID     string
	SessionID  string
	TokenType  token.Type
	IsActive   bool
	IsVerified bool

	Profile     *token.Profile
	Permissions []string
	Groups      []string
}

// HasEmbeddedPermission checks the permission codenames carried in the token
// claims, without touching any store. Only session tokens embed permissions;
// for access tokens this always reports false and the caller should fall
// back to a store lookup.
func (p *Principal) HasEmbeddedPermission(codename string) bool {
	if p == nil || p.Profile == nil {
		return false
	}
	if p.Profile.IsSuperuser {
		return true
	}
	for _, have := range p.Permissions {
		if have == codename {
			return true
		}
	}
	return false
}

// TokenSet is one issuance's access/refresh/session triple.
type TokenSet = token.Set

// Profile is the user snapshot embedded in session tokens.
type Profile = token.Profile

// TokenType discriminates the three token kinds.
type TokenType = token.Type

// LogoutResult reports which revocation scopes a logout managed to write.
type LogoutResult = flows.LogoutResult

// Group is a permission bundle from the external permission store.
type Group = rbac.Group

// Permission is one grantable capability.
type Permission = rbac.Permission

// AuditEvent is the structured audit record emitted by the engine.
type AuditEvent = audit.Event

// AuditSink receives [AuditEvent] values from the engine's dispatcher.
type AuditSink = audit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = audit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = audit.ChannelSink

// JSONWriterSink is an [AuditSink] writing JSON-encoded events to a writer.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// SecurityReport is a read-only snapshot of the engine's security posture.
type SecurityReport struct {
	ProductionMode       bool
	SigningAlgorithm     string
	AccessTTL            string
	SessionTTL           string
	RefreshTTL           string
	RevocationFailClosed bool
	MasterOTPConfigured  bool
	SuperAdminGroup      string
	RateLimitingActive   bool
	AuditActive          bool
}
