package auth

// UserClaims represents the authenticated user information
type UserClaims struct {
	UID         string
	Email       string
	DisplayName string
	Picture     string
	Verified    bool
	// Scheduler marks service identities allowed to run notification
	// passes for any user.
	Scheduler bool
}

// schedulerClaim is the Firebase custom claim granting Scheduler.
const schedulerClaim = "insights_scheduler"

// ClaimsFromToken builds UserClaims from a verified token's UID and raw
// claims map.
func ClaimsFromToken(uid string, raw map[string]interface{}) *UserClaims {
	claims := &UserClaims{UID: uid}
	if verified, ok := raw["email_verified"].(bool); ok {
		claims.Verified = verified
	}
	if email, ok := raw["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := raw["name"].(string); ok {
		claims.DisplayName = name
	}
	if picture, ok := raw["picture"].(string); ok {
		claims.Picture = picture
	}
	if scheduler, ok := raw[schedulerClaim].(bool); ok {
		claims.Scheduler = scheduler
	}
	return claims
}
