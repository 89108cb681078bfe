// Package auth issues the bearer credentials used by outbound connectors: a
// cached Google service-account OAuth token and short-lived LiveKit access
// tokens. Both are signed with golang-jwt.
package auth
