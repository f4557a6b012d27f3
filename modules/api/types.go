package api

// ErrorResponse is the JSON envelope for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CredentialsRequest is the body of the register and login endpoints.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
