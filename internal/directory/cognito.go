package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/socialgate/internal/domain/types"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
)

// cognitoAPI is the subset of *cognitoidentityprovider.Client used here.
type cognitoAPI interface {
	ListUsers(ctx context.Context, in *cip.ListUsersInput, optFns ...func(*cip.Options)) (*cip.ListUsersOutput, error)
	SignUp(ctx context.Context, in *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	AdminConfirmSignUp(ctx context.Context, in *cip.AdminConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.AdminConfirmSignUpOutput, error)
	CreateGroup(ctx context.Context, in *cip.CreateGroupInput, optFns ...func(*cip.Options)) (*cip.CreateGroupOutput, error)
	AdminAddUserToGroup(ctx context.Context, in *cip.AdminAddUserToGroupInput, optFns ...func(*cip.Options)) (*cip.AdminAddUserToGroupOutput, error)
	AdminUpdateUserAttributes(ctx context.Context, in *cip.AdminUpdateUserAttributesInput, optFns ...func(*cip.Options)) (*cip.AdminUpdateUserAttributesOutput, error)
	AdminInitiateAuth(ctx context.Context, in *cip.AdminInitiateAuthInput, optFns ...func(*cip.Options)) (*cip.AdminInitiateAuthOutput, error)
	AdminDeleteUser(ctx context.Context, in *cip.AdminDeleteUserInput, optFns ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error)
}

// CognitoConfig configures the user pool client.
type CognitoConfig struct {
	Region          string
	UserPoolID      string
	AppClientID     string
	AppClientSecret string
	// PasswordSecret keys the derived account passwords. Empty keeps the legacy scheme.
	PasswordSecret string

	// Optional: static credentials or shared profile. Default credential chain otherwise.
	AccessKeyID     string
	SecretAccessKey string
	SharedProfile   string
	// Endpoint overrides the service endpoint (local emulators).
	Endpoint string
}

// Cognito implements Client on a Cognito user pool.
type Cognito struct {
	api            cognitoAPI
	userPoolID     string
	clientID       string
	clientSecret   string
	passwordSecret string

	groups *gocache.Cache
	sf     singleflight.Group
}

// NewCognito loads the AWS configuration and builds the client.
func NewCognito(ctx context.Context, cfg CognitoConfig) (*Cognito, error) {
	if cfg.UserPoolID == "" || cfg.AppClientID == "" {
		return nil, fmt.Errorf("cognito: user_pool_id and app_client_id required")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	case cfg.SharedProfile != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.SharedProfile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cognito: load aws config: %w", err)
	}

	client := cip.NewFromConfig(awsCfg, func(o *cip.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newCognito(client, cfg), nil
}

func newCognito(api cognitoAPI, cfg CognitoConfig) *Cognito {
	return &Cognito{
		api:            api,
		userPoolID:     cfg.UserPoolID,
		clientID:       cfg.AppClientID,
		clientSecret:   cfg.AppClientSecret,
		passwordSecret: cfg.PasswordSecret,
		groups:         gocache.New(time.Hour, 10*time.Minute),
	}
}

func (c *Cognito) secretHash(username string) *string {
	if c.clientSecret == "" {
		return nil
	}
	return aws.String(secretHash(c.clientSecret, c.clientID, username))
}

func (c *Cognito) LookupSubject(ctx context.Context, p types.Provider, externalUserID string) (Subject, bool, error) {
	username := types.DirectoryUsername(p, externalUserID)
	out, err := c.api.ListUsers(ctx, &cip.ListUsersInput{
		UserPoolId: aws.String(c.userPoolID),
		Filter:     aws.String(fmt.Sprintf("username = %q", username)),
		Limit:      aws.Int32(1),
	})
	if err != nil {
		return Subject{}, false, classify("ListUsers", err)
	}
	if len(out.Users) == 0 {
		return Subject{}, false, nil
	}

	u := out.Users[0]
	sub := attributeValue(u.Attributes, "sub")
	if sub == "" {
		return Subject{}, false, fmt.Errorf("cognito: user %s has no sub attribute", username)
	}
	return Subject{ID: sub, Confirmed: u.UserStatus != ciptypes.UserStatusTypeUnconfirmed}, true, nil
}

func (c *Cognito) Register(ctx context.Context, p types.Provider, externalUserID string, profile Profile) (string, error) {
	username := types.DirectoryUsername(p, externalUserID)
	out, err := c.api.SignUp(ctx, &cip.SignUpInput{
		ClientId:       aws.String(c.clientID),
		SecretHash:     c.secretHash(username),
		Username:       aws.String(username),
		Password:       aws.String(passwordFor(c.passwordSecret, username)),
		UserAttributes: profileAttributes(profile),
	})
	if err != nil {
		return "", classify("SignUp", err)
	}
	return aws.ToString(out.UserSub), nil
}

func (c *Cognito) ConfirmRegistration(ctx context.Context, p types.Provider, externalUserID string) error {
	_, err := c.api.AdminConfirmSignUp(ctx, &cip.AdminConfirmSignUpInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(types.DirectoryUsername(p, externalUserID)),
	})
	var notAuthorized *ciptypes.NotAuthorizedException
	if errors.As(err, &notAuthorized) {
		// Cognito rejects confirming an account that is already CONFIRMED.
		if s, found, lerr := c.LookupSubject(ctx, p, externalUserID); lerr == nil && found && s.Confirmed {
			return nil
		}
	}
	return classify("AdminConfirmSignUp", err)
}

// EnsureGroup creates the group once per process. Concurrent first logins of the
// same provider share a single CreateGroup call.
func (c *Cognito) EnsureGroup(ctx context.Context, name string) error {
	if _, ok := c.groups.Get(name); ok {
		return nil
	}
	_, err, _ := c.sf.Do(name, func() (any, error) {
		_, err := c.api.CreateGroup(ctx, &cip.CreateGroupInput{
			GroupName:  aws.String(name),
			UserPoolId: aws.String(c.userPoolID),
		})
		var exists *ciptypes.GroupExistsException
		if err != nil && !errors.As(err, &exists) {
			return nil, classify("CreateGroup", err)
		}
		if err == nil {
			logger.From(ctx).Info("directory group created", logger.Component("directory.cognito"), logger.String("group", name))
		}
		c.groups.SetDefault(name, struct{}{})
		return nil, nil
	})
	return err
}

func (c *Cognito) AddUserToGroup(ctx context.Context, p types.Provider, externalUserID, group string) error {
	_, err := c.api.AdminAddUserToGroup(ctx, &cip.AdminAddUserToGroupInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(types.DirectoryUsername(p, externalUserID)),
		GroupName:  aws.String(group),
	})
	return classify("AdminAddUserToGroup", err)
}

func (c *Cognito) UpdateAttributes(ctx context.Context, p types.Provider, externalUserID string, profile Profile) error {
	attrs := profileAttributes(profile)
	if len(attrs) == 0 {
		return nil
	}
	_, err := c.api.AdminUpdateUserAttributes(ctx, &cip.AdminUpdateUserAttributesInput{
		UserPoolId:     aws.String(c.userPoolID),
		Username:       aws.String(types.DirectoryUsername(p, externalUserID)),
		UserAttributes: attrs,
	})
	return classify("AdminUpdateUserAttributes", err)
}

func (c *Cognito) IssueTokens(ctx context.Context, p types.Provider, externalUserID string) (*types.AuthenticationResult, error) {
	username := types.DirectoryUsername(p, externalUserID)
	params := map[string]string{
		"USERNAME": username,
		"PASSWORD": passwordFor(c.passwordSecret, username),
	}
	if h := c.secretHash(username); h != nil {
		params["SECRET_HASH"] = *h
	}

	out, err := c.api.AdminInitiateAuth(ctx, &cip.AdminInitiateAuthInput{
		UserPoolId:     aws.String(c.userPoolID),
		ClientId:       aws.String(c.clientID),
		AuthFlow:       ciptypes.AuthFlowTypeAdminUserPasswordAuth,
		AuthParameters: params,
	})
	if err != nil {
		return nil, classify("AdminInitiateAuth", err)
	}
	r := out.AuthenticationResult
	if r == nil {
		// a challenge was requested instead of tokens
		return nil, fmt.Errorf("cognito: AdminInitiateAuth returned challenge %q", out.ChallengeName)
	}
	return &types.AuthenticationResult{
		AccessToken:  aws.ToString(r.AccessToken),
		IDToken:      aws.ToString(r.IdToken),
		RefreshToken: aws.ToString(r.RefreshToken),
		TokenType:    aws.ToString(r.TokenType),
		ExpiresIn:    r.ExpiresIn,
	}, nil
}

func (c *Cognito) DeleteUser(ctx context.Context, p types.Provider, externalUserID string) error {
	_, err := c.api.AdminDeleteUser(ctx, &cip.AdminDeleteUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(types.DirectoryUsername(p, externalUserID)),
	})
	return classify("AdminDeleteUser", err)
}

// profileAttributes skips empty values; the pool drops them anyway.
func profileAttributes(p Profile) []ciptypes.AttributeType {
	var attrs []ciptypes.AttributeType
	add := func(name, value string) {
		if strings.TrimSpace(value) != "" {
			attrs = append(attrs, ciptypes.AttributeType{Name: aws.String(name), Value: aws.String(value)})
		}
	}
	add("email", p.Email)
	add("name", p.DisplayName)
	add("picture", p.AvatarURL)
	return attrs
}

func attributeValue(attrs []ciptypes.AttributeType, name string) string {
	for _, a := range attrs {
		if aws.ToString(a.Name) == name {
			return aws.ToString(a.Value)
		}
	}
	return ""
}

// classify maps SDK errors onto the package sentinels.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var (
		exists       *ciptypes.UsernameExistsException
		notFound     *ciptypes.UserNotFoundException
		notConfirmed *ciptypes.UserNotConfirmedException
		throttled    *ciptypes.TooManyRequestsException
		internal     *ciptypes.InternalErrorException
		noResource   *ciptypes.ResourceNotFoundException
	)
	switch {
	case op == "AdminAddUserToGroup" && errors.As(err, &noResource):
		return fmt.Errorf("%w: %s: %w", ErrGroupNotFound, op, err)
	case errors.As(err, &exists):
		return fmt.Errorf("%w: %s: %w", ErrUsernameExists, op, err)
	case errors.As(err, &notFound):
		return fmt.Errorf("%w: %s: %w", ErrUserNotFound, op, err)
	case errors.As(err, &notConfirmed):
		return fmt.Errorf("%w: %s: %w", ErrUserNotConfirmed, op, err)
	case errors.As(err, &throttled), errors.As(err, &internal):
		return fmt.Errorf("%w: %s: %w", ErrDirectoryUnavailable, op, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorFault() == smithy.FaultServer {
			return fmt.Errorf("%w: %s: %w", ErrDirectoryUnavailable, op, err)
		}
		return fmt.Errorf("cognito: %s: %w", op, err)
	}
	// no API error at all: transport failure, DNS, timeout
	return fmt.Errorf("%w: %s: %w", ErrDirectoryUnavailable, op, err)
}
