package utils

import (
	"net/http"

	"laborease/auth"
	"laborease/globals"
)

func GetUserIDFromRequest(r *http.Request) string {
	ctx := r.Context()
	requestingUserID, ok := ctx.Value(globals.UserIDKey).(string)
	if !ok || requestingUserID == "" {
		return ""
	}
	return requestingUserID
}

func GetRoleFromRequest(r *http.Request) string {
	role, ok := r.Context().Value(globals.RoleKey).(string)
	if !ok {
		return ""
	}
	return role
}

// ActorFromRequest builds the principal for lifecycle calls from the
// authenticated request context.
func ActorFromRequest(r *http.Request) auth.Context {
	return auth.Context{
		UserID: GetUserIDFromRequest(r),
		Role:   GetRoleFromRequest(r),
	}
}
