package session

// User is the profile the backend reports for the signed-in account
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	copied := *u
	return &copied
}

// Credentials is the login request body
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the signup request body
type SignupRequest struct {
	Email                string `json:"email"`
	FirstName            string `json:"firstName"`
	LastName             string `json:"lastName"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
}

// authResponse is what login and signup return. The token fields mirror
// the backend contract but are never read: the session credential rides in
// response cookies the transport's jar captures, opaque to this layer.
type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	User         *User  `json:"user"`
}

// State is a snapshot of the process-wide session belief
type State struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
	IsInitialized   bool
	Err             string
}
