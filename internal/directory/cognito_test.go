package directory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/socialgate/internal/domain/types"
)

type fakeCognito struct {
	listUsers   func(*cip.ListUsersInput) (*cip.ListUsersOutput, error)
	signUp      func(*cip.SignUpInput) (*cip.SignUpOutput, error)
	createGroup func(*cip.CreateGroupInput) (*cip.CreateGroupOutput, error)
	initiate    func(*cip.AdminInitiateAuthInput) (*cip.AdminInitiateAuthOutput, error)
	update      func(*cip.AdminUpdateUserAttributesInput) (*cip.AdminUpdateUserAttributesOutput, error)
	confirm     func(*cip.AdminConfirmSignUpInput) (*cip.AdminConfirmSignUpOutput, error)

	createGroupCalls atomic.Int32
}

func (f *fakeCognito) ListUsers(_ context.Context, in *cip.ListUsersInput, _ ...func(*cip.Options)) (*cip.ListUsersOutput, error) {
	return f.listUsers(in)
}

func (f *fakeCognito) SignUp(_ context.Context, in *cip.SignUpInput, _ ...func(*cip.Options)) (*cip.SignUpOutput, error) {
	return f.signUp(in)
}

func (f *fakeCognito) AdminConfirmSignUp(_ context.Context, in *cip.AdminConfirmSignUpInput, _ ...func(*cip.Options)) (*cip.AdminConfirmSignUpOutput, error) {
	if f.confirm != nil {
		return f.confirm(in)
	}
	return &cip.AdminConfirmSignUpOutput{}, nil
}

func (f *fakeCognito) CreateGroup(_ context.Context, in *cip.CreateGroupInput, _ ...func(*cip.Options)) (*cip.CreateGroupOutput, error) {
	f.createGroupCalls.Add(1)
	if f.createGroup != nil {
		return f.createGroup(in)
	}
	return &cip.CreateGroupOutput{}, nil
}

func (f *fakeCognito) AdminAddUserToGroup(context.Context, *cip.AdminAddUserToGroupInput, ...func(*cip.Options)) (*cip.AdminAddUserToGroupOutput, error) {
	return &cip.AdminAddUserToGroupOutput{}, nil
}

func (f *fakeCognito) AdminUpdateUserAttributes(_ context.Context, in *cip.AdminUpdateUserAttributesInput, _ ...func(*cip.Options)) (*cip.AdminUpdateUserAttributesOutput, error) {
	return f.update(in)
}

func (f *fakeCognito) AdminInitiateAuth(_ context.Context, in *cip.AdminInitiateAuthInput, _ ...func(*cip.Options)) (*cip.AdminInitiateAuthOutput, error) {
	return f.initiate(in)
}

func (f *fakeCognito) AdminDeleteUser(context.Context, *cip.AdminDeleteUserInput, ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error) {
	return &cip.AdminDeleteUserOutput{}, nil
}

func testCognito(api cognitoAPI) *Cognito {
	return newCognito(api, CognitoConfig{UserPoolID: "pool", AppClientID: "client", AppClientSecret: "secret"})
}

func TestCognito_LookupSubject(t *testing.T) {
	api := &fakeCognito{listUsers: func(in *cip.ListUsersInput) (*cip.ListUsersOutput, error) {
		assert.Equal(t, `username = "Twitter_342144389"`, aws.ToString(in.Filter))
		assert.Equal(t, int32(1), aws.ToInt32(in.Limit))
		return &cip.ListUsersOutput{Users: []ciptypes.UserType{{
			Username: aws.String("Twitter_342144389"),
			Attributes: []ciptypes.AttributeType{
				{Name: aws.String("website"), Value: aws.String("x")},
				{Name: aws.String("sub"), Value: aws.String("597f1fae")},
			},
			UserStatus: ciptypes.UserStatusTypeConfirmed,
		}}}, nil
	}}

	s, found, err := testCognito(api).LookupSubject(context.Background(), types.ProviderTwitter, "342144389")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Subject{ID: "597f1fae", Confirmed: true}, s)
}

func TestCognito_LookupSubject_Absent(t *testing.T) {
	api := &fakeCognito{listUsers: func(*cip.ListUsersInput) (*cip.ListUsersOutput, error) {
		return &cip.ListUsersOutput{}, nil
	}}
	_, found, err := testCognito(api).LookupSubject(context.Background(), types.ProviderKakao, "1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCognito_Register(t *testing.T) {
	api := &fakeCognito{signUp: func(in *cip.SignUpInput) (*cip.SignUpOutput, error) {
		assert.Equal(t, "Kakao_123", aws.ToString(in.Username))
		assert.Equal(t, "mr3Vk7Amrtr97ZwmSwv/thm/CkwgaDjaEaZQQzN9sE8=", aws.ToString(in.SecretHash))
		assert.Equal(t, "Kakao_123123!", aws.ToString(in.Password))
		// empty avatar is not sent
		require.Len(t, in.UserAttributes, 2)
		assert.Equal(t, "email", aws.ToString(in.UserAttributes[0].Name))
		assert.Equal(t, "name", aws.ToString(in.UserAttributes[1].Name))
		return &cip.SignUpOutput{UserSub: aws.String("sub-1")}, nil
	}}
	sub, err := testCognito(api).Register(context.Background(), types.ProviderKakao, "123",
		Profile{Email: "k@example.com", DisplayName: "Kim"})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub)
}

func TestCognito_Register_Duplicate(t *testing.T) {
	api := &fakeCognito{signUp: func(*cip.SignUpInput) (*cip.SignUpOutput, error) {
		return nil, &ciptypes.UsernameExistsException{Message: aws.String("User already exists")}
	}}
	_, err := testCognito(api).Register(context.Background(), types.ProviderKakao, "123", Profile{})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func listedUser(status ciptypes.UserStatusType) func(*cip.ListUsersInput) (*cip.ListUsersOutput, error) {
	return func(*cip.ListUsersInput) (*cip.ListUsersOutput, error) {
		return &cip.ListUsersOutput{Users: []ciptypes.UserType{{
			Username:   aws.String("Kakao_123"),
			Attributes: []ciptypes.AttributeType{{Name: aws.String("sub"), Value: aws.String("sub-1")}},
			UserStatus: status,
		}}}, nil
	}
}

func alreadyConfirmed(in *cip.AdminConfirmSignUpInput) (*cip.AdminConfirmSignUpOutput, error) {
	return nil, &ciptypes.NotAuthorizedException{Message: aws.String("User cannot be confirmed. Current status is CONFIRMED")}
}

func TestCognito_ConfirmRegistration_AlreadyConfirmed(t *testing.T) {
	api := &fakeCognito{
		confirm:   alreadyConfirmed,
		listUsers: listedUser(ciptypes.UserStatusTypeConfirmed),
	}
	require.NoError(t, testCognito(api).ConfirmRegistration(context.Background(), types.ProviderKakao, "123"))
}

func TestCognito_ConfirmRegistration_NotAuthorizedWhileUnconfirmed(t *testing.T) {
	api := &fakeCognito{
		confirm:   alreadyConfirmed,
		listUsers: listedUser(ciptypes.UserStatusTypeUnconfirmed),
	}
	err := testCognito(api).ConfirmRegistration(context.Background(), types.ProviderKakao, "123")
	require.Error(t, err)
	var notAuthorized *ciptypes.NotAuthorizedException
	assert.ErrorAs(t, err, &notAuthorized)
	assert.NotErrorIs(t, err, ErrDirectoryUnavailable)
}

func TestCognito_EnsureGroup_Idempotent(t *testing.T) {
	api := &fakeCognito{createGroup: func(*cip.CreateGroupInput) (*cip.CreateGroupOutput, error) {
		return nil, &ciptypes.GroupExistsException{Message: aws.String("exists")}
	}}
	c := testCognito(api)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.EnsureGroup(context.Background(), "Kakao"))
		}()
	}
	wg.Wait()
	require.NoError(t, c.EnsureGroup(context.Background(), "Kakao"))

	// memoised after the first success; concurrent callers may share one call
	assert.LessOrEqual(t, api.createGroupCalls.Load(), int32(8))
	before := api.createGroupCalls.Load()
	require.NoError(t, c.EnsureGroup(context.Background(), "Kakao"))
	assert.Equal(t, before, api.createGroupCalls.Load())
}

func TestCognito_IssueTokens(t *testing.T) {
	api := &fakeCognito{initiate: func(in *cip.AdminInitiateAuthInput) (*cip.AdminInitiateAuthOutput, error) {
		assert.Equal(t, ciptypes.AuthFlowTypeAdminUserPasswordAuth, in.AuthFlow)
		assert.Equal(t, "Kakao_123", in.AuthParameters["USERNAME"])
		assert.NotEmpty(t, in.AuthParameters["SECRET_HASH"])
		return &cip.AdminInitiateAuthOutput{AuthenticationResult: &ciptypes.AuthenticationResultType{
			AccessToken: aws.String("at"),
			IdToken:     aws.String("it"),
			TokenType:   aws.String("Bearer"),
			ExpiresIn:   3600,
		}}, nil
	}}
	res, err := testCognito(api).IssueTokens(context.Background(), types.ProviderKakao, "123")
	require.NoError(t, err)
	assert.Equal(t, &types.AuthenticationResult{AccessToken: "at", IDToken: "it", TokenType: "Bearer", ExpiresIn: 3600}, res)
}

func TestCognito_UpdateAttributes_SkipsEmptyProfile(t *testing.T) {
	api := &fakeCognito{update: func(*cip.AdminUpdateUserAttributesInput) (*cip.AdminUpdateUserAttributesOutput, error) {
		t.Fatal("no call expected")
		return nil, nil
	}}
	require.NoError(t, testCognito(api).UpdateAttributes(context.Background(), types.ProviderTwitter, "1", Profile{}))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("op", nil))
	assert.ErrorIs(t, classify("op", errors.New("dial tcp: connection refused")), ErrDirectoryUnavailable)
	assert.ErrorIs(t, classify("op", &ciptypes.TooManyRequestsException{}), ErrDirectoryUnavailable)
	assert.ErrorIs(t, classify("op", &smithy.GenericAPIError{Code: "ServiceUnavailable", Fault: smithy.FaultServer}), ErrDirectoryUnavailable)
	assert.ErrorIs(t, classify("op", &ciptypes.UserNotFoundException{}), ErrUserNotFound)
	assert.ErrorIs(t, classify("AdminAddUserToGroup", &ciptypes.ResourceNotFoundException{}), ErrGroupNotFound)

	clientErr := classify("op", &ciptypes.InvalidParameterException{})
	assert.NotErrorIs(t, clientErr, ErrDirectoryUnavailable)
	assert.ErrorIs(t, classify("op", context.Canceled), context.Canceled)
}
