package tabularium

// LoginRequest is the JSON body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the JSON body of POST /auth/register
type RegisterRequest struct {
	Username string `json:"username"`
	Fullname string `json:"fullname"`
	Password string `json:"password"`
}

// RefreshRequest is the JSON body of POST /auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by the login, register and refresh endpoints. Only
// AccessToken is guaranteed to be present in a refresh response: an absent
// RefreshToken or Fullname means the client should keep the values it already has.
type AuthResponse struct {
	Username     string `json:"username,omitempty"`
	Fullname     string `json:"fullname,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Identity is returned by GET /auth/me for a valid access token
type Identity struct {
	Username string `json:"username"`
	Fullname string `json:"fullname"`
}
