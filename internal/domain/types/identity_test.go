package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	for in, want := range map[string]Provider{
		"Kakao":     ProviderKakao,
		"kakao":     ProviderKakao,
		" TWITTER ": ProviderTwitter,
	} {
		got, ok := ParseProvider(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}

	_, ok := ParseProvider("google")
	assert.False(t, ok)
	assert.False(t, Provider("google").IsValid())
}

func TestDirectoryUsername(t *testing.T) {
	assert.Equal(t, "Kakao_123", DirectoryUsername(ProviderKakao, "123"))
	id := CanonicalIdentity{Provider: ProviderTwitter, ExternalUserID: "342144389"}
	assert.Equal(t, "Twitter_342144389", id.DirectoryUsername())
}

func TestFederatedUser_Refresh(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	u := NewFederatedUser("sub-1", CanonicalIdentity{
		Provider: ProviderKakao, ExternalUserID: "123", DisplayName: "Kim", Email: "k@example.com",
	}, created)
	require.Equal(t, "Kakao_123", u.DirectoryUsername)

	later := created.Add(time.Hour)
	u.Refresh(CanonicalIdentity{Provider: ProviderKakao, ExternalUserID: "123", DisplayName: "Lee", AvatarURL: "http://x/z.jpg"}, later)

	assert.Equal(t, "Lee", u.DisplayName)
	assert.Equal(t, "", u.Email)
	assert.Equal(t, "http://x/z.jpg", u.AvatarURL)
	assert.Equal(t, created, u.CreatedAt)
	assert.Equal(t, later, u.UpdatedAt)
	assert.Equal(t, "sub-1", u.SubjectID)
}
