// ABOUTME: Package invitation drives the admin invitation lifecycle
// ABOUTME: Issue, verify, accept, resend, and cancel invitations through the admin directory

// Package invitation manages admin invitations from issue to acceptance.
//
// An invited account starts pending and has no password. It leaves that
// state successfully only when the invitee redeems the single-use token
// and sets a password, which yields an authenticated session. While
// pending, a manager may resend the invitation (new token, same account)
// or cancel it (the account is deleted). Expiry is decided by the admin
// service and observed here, never computed.
//
// Issue, Resend and Cancel require the admins:write capability and are
// refused before any request is made when the actor lacks it. Input that
// can be checked locally (username, email, role, password length, empty
// token) is also checked before any request. Service responses are mapped
// onto the apperr kinds so callers can tell an invalid link apart from an
// unavailable service.
package invitation
