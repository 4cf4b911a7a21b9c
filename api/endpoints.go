package api

import (
	"context"
	"net/url"
)

// User is the identity object returned by auth endpoints.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// AuthPayload is the data of a successful login, register or verify call.
type AuthPayload struct {
	User  *User  `json:"user"`
	Token string `json:"token,omitempty"`
}

// RefreshPayload is the data of a successful refresh call.
type RefreshPayload struct {
	Token string `json:"token"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone,omitempty"`
}

// AuthAPI groups the /auth endpoints.
type AuthAPI struct {
	c *Client
}

// Login sends the credentials. The password is the one field this call lets
// through body stripping.
func (a *AuthAPI) Login(ctx context.Context, email, password string) (*Envelope, error) {
	return a.c.Post(ctx, "/auth/login", LoginRequest{Email: email, Password: password}, AllowFields("password"))
}

func (a *AuthAPI) Register(ctx context.Context, req RegisterRequest) (*Envelope, error) {
	return a.c.Post(ctx, "/auth/register", req, AllowFields("password"))
}

func (a *AuthAPI) Logout(ctx context.Context) (*Envelope, error) {
	return a.c.Post(ctx, "/auth/logout", nil)
}

func (a *AuthAPI) Refresh(ctx context.Context) (*Envelope, error) {
	return a.c.Post(ctx, "/auth/refresh", nil)
}

func (a *AuthAPI) Verify(ctx context.Context) (*Envelope, error) {
	return a.c.Get(ctx, "/auth/verify")
}

// UsersAPI groups the /user endpoints.
type UsersAPI struct {
	c *Client
}

func (u *UsersAPI) Profile(ctx context.Context) (*Envelope, error) {
	return u.c.Get(ctx, "/user/profile")
}

func (u *UsersAPI) UpdateProfile(ctx context.Context, profile any) (*Envelope, error) {
	return u.c.Put(ctx, "/user/profile", profile)
}

func (u *UsersAPI) ChangePassword(ctx context.Context, currentPassword, newPassword string) (*Envelope, error) {
	return u.c.Post(ctx, "/user/change-password", map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	})
}

func (u *UsersAPI) DeleteAccount(ctx context.Context) (*Envelope, error) {
	return u.c.Delete(ctx, "/user/account")
}

// ConferencesAPI groups the /conferences endpoints.
type ConferencesAPI struct {
	c *Client
}

func (cf *ConferencesAPI) List(ctx context.Context) (*Envelope, error) {
	return cf.c.Get(ctx, "/conferences")
}

func (cf *ConferencesAPI) Get(ctx context.Context, id string) (*Envelope, error) {
	return cf.c.Get(ctx, "/conferences/"+url.PathEscape(id))
}

func (cf *ConferencesAPI) Register(ctx context.Context, conferenceID string, registration any) (*Envelope, error) {
	return cf.c.Post(ctx, "/conferences/"+url.PathEscape(conferenceID)+"/register", registration)
}

func (cf *ConferencesAPI) UploadPresentation(ctx context.Context, conferenceID string, file Upload) (*Envelope, error) {
	return cf.c.UploadFile(ctx, "/conferences/"+url.PathEscape(conferenceID)+"/presentations", file, nil)
}
