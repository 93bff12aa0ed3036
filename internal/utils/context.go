package utils

import "context"

type contextKey string

const (
	StaffIDKey   contextKey = "staff_id"
	StaffRoleKey contextKey = "staff_role"
)

// SetStaffContext sets the authenticated operator into context (called by middleware)
func SetStaffContext(ctx context.Context, staffID, role string) context.Context {
	ctx = context.WithValue(ctx, StaffIDKey, staffID)
	ctx = context.WithValue(ctx, StaffRoleKey, role)
	return ctx
}

func GetStaffIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(StaffIDKey).(string)
	return id, ok && id != ""
}

func GetStaffRoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(StaffRoleKey).(string)
	return role
}
