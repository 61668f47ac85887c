package auth

// Role names with special meaning.
const RoleAdmin = "Admin"

// Credential is the decoded, verified content of an access token.
// It is constructed per request by the Validator and never persisted.
type Credential struct {
	SubjectID   string   `json:"user_id"`
	TokenType   string   `json:"type"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
}

// HasCapability reports whether the credential authorizes the named
// capability tag. The Admin role holds every capability; any other role
// holds exactly the tags listed in the permissions claim. A credential
// with a missing or malformed permissions claim holds no capabilities.
func (c *Credential) HasCapability(tag string) bool {
	if c == nil {
		return false
	}
	if c.Role == RoleAdmin {
		return true
	}
	for _, p := range c.Permissions {
		if p == tag {
			return true
		}
	}
	return false
}
