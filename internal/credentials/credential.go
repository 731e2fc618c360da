package credentials

import "context"

// Credential is the set of values that identify the logged-in operator. All fields
// are empty when nobody is logged in.
type Credential struct {
	AccessToken  string `yaml:"accessToken,omitempty"`
	RefreshToken string `yaml:"refreshToken,omitempty"`
	DisplayName  string `yaml:"fullname,omitempty"`
}

// IsAuthenticated reports whether an access token is present, which is what puts the
// application in its authenticated state
func (c Credential) IsAuthenticated() bool {
	return c.AccessToken != ""
}

// IsEmpty reports whether no credential value is stored at all
func (c Credential) IsEmpty() bool {
	return c.AccessToken == "" && c.RefreshToken == "" && c.DisplayName == ""
}

// Merge returns a copy of c updated with the non-empty values from next. This is how
// a token refresh is applied: the access token is always replaced, but a refresh
// response that omits the refresh token or display name leaves the stored values
// intact.
func (c Credential) Merge(next Credential) Credential {
	merged := c
	if next.AccessToken != "" {
		merged.AccessToken = next.AccessToken
	}
	if next.RefreshToken != "" {
		merged.RefreshToken = next.RefreshToken
	}
	if next.DisplayName != "" {
		merged.DisplayName = next.DisplayName
	}
	return merged
}

// Store is a durable holder for the operator's credential. Tokens are opaque strings:
// a Store never validates them.
type Store interface {
	Get(ctx context.Context) (Credential, error)
	Set(ctx context.Context, c Credential) error
	Clear(ctx context.Context) error
}
