package harvest

import (
	"fmt"
	"net/url"
	"strings"
)

// CanonicalLink standardizes a post link so the same post always hashes the same.
// It lowercases the scheme and host, removes default ports, sorts query parameters
// and drops the fragment.
func CanonicalLink(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// ResolveLink resolves href against base. Empty hrefs resolve to "".
func ResolveLink(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	if ref.IsAbs() || base == "" {
		return ref.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base: %w", err)
	}
	return b.ResolveReference(ref).String(), nil
}

// DeriveIdentity hashes the canonical form of link and keeps a fixed-length prefix.
// It returns the identity together with the canonical link it was computed from.
func DeriveIdentity(h Hasher, link string) (identity, canonical string, err error) {
	canonical, err = CanonicalLink(link)
	if err != nil {
		return "", "", err
	}
	sum, err := h.Hash([]byte(canonical))
	if err != nil {
		return "", "", fmt.Errorf("hash link: %w", err)
	}
	if len(sum) < IdentityLength {
		return "", "", fmt.Errorf("digest %q shorter than %d characters", sum, IdentityLength)
	}
	return sum[:IdentityLength], canonical, nil
}

// JoinTags serializes tags the way they are stored.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// SplitTags is the inverse of JoinTags.
func SplitTags(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	parts := strings.Split(joined, ", ")
	return parts
}
