// Package directory is the capability-limited client to the managed user directory
// (a Cognito user pool in production).
//
// Every operation is keyed by the deterministic username "{provider}_{externalUserID}".
// Register must be followed by ConfirmRegistration before IssueTokens succeeds.
package directory

import (
	"context"
	"errors"

	"github.com/dropDatabas3/socialgate/internal/domain/types"
)

var (
	// ErrUsernameExists is returned by Register when the username is already taken.
	ErrUsernameExists = errors.New("directory: username already exists")

	// ErrUserNotFound is returned when the account does not exist.
	ErrUserNotFound = errors.New("directory: user not found")

	// ErrUserNotConfirmed is returned by IssueTokens for accounts still pending confirmation.
	ErrUserNotConfirmed = errors.New("directory: user not confirmed")

	// ErrGroupNotFound is returned by AddUserToGroup when the group was never created.
	ErrGroupNotFound = errors.New("directory: group not found")

	// ErrDirectoryUnavailable marks transient transport or service faults. Safe to retry.
	ErrDirectoryUnavailable = errors.New("directory: unavailable")
)

// IsUnavailable reports whether err is a transient directory fault.
func IsUnavailable(err error) bool { return errors.Is(err, ErrDirectoryUnavailable) }

// Subject is the directory view of an account.
type Subject struct {
	ID        string
	Confirmed bool
}

// Profile are the attributes mirrored into the directory.
// Empty values are not written.
type Profile struct {
	Email       string
	DisplayName string
	AvatarURL   string
}

// ProfileOf extracts the directory attributes of a canonical identity.
func ProfileOf(id types.CanonicalIdentity) Profile {
	return Profile{Email: id.Email, DisplayName: id.DisplayName, AvatarURL: id.AvatarURL}
}

// Client is the set of directory operations the provisioning flow needs.
type Client interface {
	// LookupSubject returns found=false when no account has the derived username.
	LookupSubject(ctx context.Context, p types.Provider, externalUserID string) (s Subject, found bool, err error)

	// Register creates the account in pending state and returns its subject id.
	Register(ctx context.Context, p types.Provider, externalUserID string, profile Profile) (subjectID string, err error)

	// ConfirmRegistration activates a registered account.
	ConfirmRegistration(ctx context.Context, p types.Provider, externalUserID string) error

	// EnsureGroup creates the group if missing. Existing groups are not an error.
	EnsureGroup(ctx context.Context, name string) error

	AddUserToGroup(ctx context.Context, p types.Provider, externalUserID, group string) error

	UpdateAttributes(ctx context.Context, p types.Provider, externalUserID string, profile Profile) error

	IssueTokens(ctx context.Context, p types.Provider, externalUserID string) (*types.AuthenticationResult, error)

	DeleteUser(ctx context.Context, p types.Provider, externalUserID string) error
}
