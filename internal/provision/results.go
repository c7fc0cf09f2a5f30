package provision

// InviteResult is the outcome of InviteUser. Success is true as soon
// as the identity, the link, and the profile exist; EmailSent only
// affects the message.
type InviteResult struct {
	Success    bool   `json:"success"`
	EmailSent  bool   `json:"email_sent"`
	EmailError string `json:"email_error,omitempty"`
	InviteLink string `json:"invite_link"`
	Message    string `json:"message"`
}

type CreateResult struct {
	Success bool   `json:"success"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// DeleteResult reports the two-step delete. IdentityErr is set when
// the profile row is gone but the provider-side deletion failed; the
// identity is orphaned, not rolled back.
type DeleteResult struct {
	Success     bool   `json:"success"`
	Warning     string `json:"warning,omitempty"`
	IdentityErr error  `json:"-"`
}
