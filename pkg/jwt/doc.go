// Package jwt issues and verifies the HS256 access tokens used by the admin
// API.
//
// Tokens carry the user id as subject plus the user's tenant and role:
//
//	{"sub": "<userId>", "tenantId": "<tenantId>", "role": "tenant_admin",
//	 "jti": "<uuid>", "iat": 1700000000, "exp": 1700086400}
//
// Signing and verification use github.com/golang-jwt/jwt/v5; only HS256 is
// accepted. Logout revokes a token by its jti until the token would have
// expired anyway. Revocations live in a Denylist backed by Redis when it is
// configured, or by an in-process LRU otherwise.
//
// Middleware extracts the bearer token, verifies it and stores the claims in
// the request context. Loading the user the token refers to is left to the
// caller.
//
// # Usage
//
//	svc, err := jwt.New(cfg, jwt.WithDenylist(jwt.NewRedisDenylist(rdb, "")))
//	token, claims, err := svc.Issue(userID, tenantID, "teacher")
//
//	r.Use(jwt.Middleware(svc, jwt.WithErrorHandler(errs.Write)))
//	claims, ok := jwt.ClaimsFromContext(r.Context())
//
// Errors are sentinel values comparable with errors.Is.
package jwt
