package harvest

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

type sha256Hasher struct{}

func (sha256Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func TestCanonicalLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "HTTPS://Example.COM/blog/post/", "https://example.com/blog/post/"},
		{"drops default https port", "https://example.com:443/a", "https://example.com/a"},
		{"drops default http port", "http://example.com:80/a", "http://example.com/a"},
		{"keeps custom port", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"strips fragment", "https://example.com/a#comments", "https://example.com/a"},
		{"sorts query", "https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2"},
		{"adds root path", "https://example.com", "https://example.com/"},
		{"trims whitespace", "  https://example.com/a ", "https://example.com/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CanonicalLink(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalLinkRejectsRelative(t *testing.T) {
	t.Parallel()

	_, err := CanonicalLink("/blog/post")
	require.Error(t, err)
}

func TestResolveLink(t *testing.T) {
	t.Parallel()

	got, err := ResolveLink("https://example.com/blog/page/2/", "../3/")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/blog/page/3/", got)

	got, err = ResolveLink("https://example.com/blog/", "https://other.org/x")
	require.NoError(t, err)
	require.Equal(t, "https://other.org/x", got)

	got, err = ResolveLink("https://example.com/blog/", "   ")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDeriveIdentityDeterministic(t *testing.T) {
	t.Parallel()

	first, canonical, err := DeriveIdentity(sha256Hasher{}, "https://Example.com/post-1/#top")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/post-1/", canonical)
	require.Len(t, first, IdentityLength)

	sum := sha256.Sum256([]byte("https://example.com/post-1/"))
	require.Equal(t, hex.EncodeToString(sum[:])[:IdentityLength], first)

	for i := 0; i < 5; i++ {
		again, _, err := DeriveIdentity(sha256Hasher{}, "https://example.com/post-1/")
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	other, _, err := DeriveIdentity(sha256Hasher{}, "https://example.com/post-2/")
	require.NoError(t, err)
	require.NotEqual(t, first, other)
}

func TestTagsRoundTrip(t *testing.T) {
	t.Parallel()

	tags := []string{"News", "Events", "News"}
	require.Equal(t, "News, Events, News", JoinTags(tags))
	require.Equal(t, tags, SplitTags(JoinTags(tags)))
	require.Nil(t, SplitTags(""))
}
