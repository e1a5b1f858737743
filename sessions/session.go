package sessions

// UserInfo holds the identity claims asserted by the provider about the
// authenticated subject. Sub is the stable subject identifier and is always
// present; the remaining fields are optional pass-through claims and are
// empty when the provider did not return them.
type UserInfo struct {
	Sub               string `json:"sub"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// Session is the complete authenticated state for one browser. The encrypted
// session cookie is its only storage - the server keeps no copy - so a
// Session must be fully re-derivable from the cookie value alone.
type Session struct {
	AccessToken string   `json:"access_token"`
	IDToken     string   `json:"id_token"`
	UserInfo    UserInfo `json:"user_info"`
}
