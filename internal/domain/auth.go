package domain

// ============================================================
// Auth
// ============================================================

// Credential is a flatmate's login secret, stored separately from the
// flatmate record.
type Credential struct {
	FlatmateID   string `json:"flatmate_id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}

// LoginRequest carries email+password credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued access token and the authenticated
// flatmate.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	Flatmate    *Flatmate `json:"flatmate"`
}
