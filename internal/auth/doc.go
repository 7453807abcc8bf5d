// Package auth authenticates requests to the dev server's admin API.
//
// # JWT Tokens
//
// Sessions are HS256-signed JWTs. The "sub" claim carries the account ID;
// "role" and "username" are informational copies so clients can display
// them without a round trip. The server never trusts those copies: the
// middleware reloads the account on every request, so a role change or a
// deleted account takes effect immediately.
//
// # HTTP Middleware
//
//	HTTPAuthMiddleware(accounts, verifier)  // 401 unless a valid token names an active account
//	RequirePermissionHTTP(rbac.PermAdminsWrite) // 403 unless the actor holds the permission
//
// The authenticated actor is stored with rbac.WithActor and read back with
// rbac.FromContext. Error bodies use the admin API envelope:
//
//	{"success": false, "error": "..."}
package auth
