// Package identity resolves who is calling: a signed-in visitor carried in
// the session cookie, or an API client presenting a bearer token. It also
// implements the OAuth sign-in flow that fills the session.
package identity

// Identity is what the site knows about a signed-in caller. Any field may be
// empty depending on what the OAuth provider reported.
type Identity struct {
	Name  string `json:"name,omitempty"`
	Login string `json:"login,omitempty"`
	Email string `json:"email,omitempty"`
}

// IsZero reports whether the identity carries nothing to identify the caller.
func (id Identity) IsZero() bool {
	return id.Name == "" && id.Login == "" && id.Email == ""
}

// Handle returns the string recorded as the author of guest entries:
// the display name, else the login, else the email.
func (id Identity) Handle() string {
	switch {
	case id.Name != "":
		return id.Name
	case id.Login != "":
		return id.Login
	default:
		return id.Email
	}
}

// IsAdmin reports whether the identity's email exactly matches adminEmail.
// An empty adminEmail never matches.
func (id Identity) IsAdmin(adminEmail string) bool {
	return adminEmail != "" && id.Email == adminEmail
}
