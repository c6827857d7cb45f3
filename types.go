package authcore

import (
	"context"
	"time"

	"github.com/rescuelink/authcore/token"
)

// Kind distinguishes the principal populations that authenticate
// against the platform. Tokens minted for one kind never validate as
// another.
type Kind string

const (
	KindRegisteredUser Kind = "registered_user"
	KindFirmPersonnel  Kind = "firm_personnel"
	KindAdmin          Kind = "admin"
)

// Role values for firm personnel. Registered users and admins carry no
// role.
const (
	RoleFirmAdmin   = "admin"
	RoleTeamLeader  = "team_leader"
	RoleFieldAgent  = "field_agent"
	RoleOfficeStaff = "office_staff"
)

// PrincipalRecord is the engine's view of a stored account. The
// credential store owns the schema; the engine only reads these fields
// and writes back password hashes and verification flags.
type PrincipalRecord struct {
	ID           string
	Kind         Kind
	Email        string
	Phone        string
	PasswordHash string
	FirmID       string // firm personnel only
	Role         string // firm personnel only
	Active       bool
	Verified     bool
	Suspended    bool
}

// CredentialStore is the engine's only window onto durable account
// data. Lookups miss with ErrPrincipalNotFound.
type CredentialStore interface {
	// FindPrincipal resolves an account by its login identifier
	// (email or phone).
	FindPrincipal(ctx context.Context, identifier string) (PrincipalRecord, error)
	// FindPrincipalByID resolves an account by primary key. Used on
	// refresh, where the token carries only the principal ID.
	FindPrincipalByID(ctx context.Context, id string) (PrincipalRecord, error)
	// UpdatePasswordHash replaces the stored hash after a password
	// reset or an on-login hash upgrade.
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// MarkVerified flips the verification flag after a successful
	// verification code confirm.
	MarkVerified(ctx context.Context, id string) error
}

// TokenPair is the access/refresh pair handed out on login and refresh.
type TokenPair = token.Pair

// UserContext is the validated identity extracted from an access
// token, ready for authorization decisions downstream.
type UserContext struct {
	PrincipalID string
	Kind        Kind
	Email       string
	Permissions []string
	FirmID      string
	Role        string
}

// IsFirmPersonnel reports whether the context belongs to firm staff.
func (u UserContext) IsFirmPersonnel() bool { return u.Kind == KindFirmPersonnel }

// IsRegisteredUser reports whether the context belongs to an end user.
func (u UserContext) IsRegisteredUser() bool { return u.Kind == KindRegisteredUser }

// HasPermission reports whether the context carries the named
// permission.
func (u UserContext) HasPermission(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Tokens TokenPair
	User   UserContext
}

// FailedLoginError reports a rejected login together with the
// caller-visible lockout position. It unwraps to ErrAccountLocked when
// the failure tripped or met an existing lock, ErrInvalidCredentials
// otherwise.
type FailedLoginError struct {
	Locked            bool
	RemainingAttempts int
	LockoutExpires    time.Time
}

func (e *FailedLoginError) Error() string {
	if e.Locked {
		return ErrAccountLocked.Error()
	}
	return ErrInvalidCredentials.Error()
}

func (e *FailedLoginError) Unwrap() error {
	if e.Locked {
		return ErrAccountLocked
	}
	return ErrInvalidCredentials
}

// ResetRequestReceipt is the uniform response to a password-reset
// request. Its shape is identical for known and unknown identifiers.
type ResetRequestReceipt struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

// OTPOutcome reports an OTP request or confirmation result.
type OTPOutcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AccountStatus is the introspection view of an identifier's lockout
// position.
type AccountStatus struct {
	IsLocked          bool      `json:"is_locked"`
	FailedAttempts    int       `json:"failed_attempts"`
	MaxAttempts       int       `json:"max_attempts"`
	RemainingAttempts int       `json:"remaining_attempts"`
	LockoutExpires    time.Time `json:"lockout_expires,omitempty"`
}
