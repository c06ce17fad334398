// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Any valid access token
	SecurityAdmin                       // Access token carrying the admin role
)

const adminService = "/gearbox.admin.v1.AdminService/"

// EndpointSecurityConfig maps methods to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Health and reflection - Public
	"/grpc.health.v1.Health/Check":                                   SecurityPublic,
	"/grpc.health.v1.Health/Watch":                                   SecurityPublic,
	"/grpc.reflection.v1.ServerReflection/ServerReflectionInfo":      SecurityPublic,
	"/grpc.reflection.v1alpha.ServerReflection/ServerReflectionInfo": SecurityPublic,

	// AdminService - read models, any back-office token
	adminService + "GetBooking":        SecurityAccess,
	adminService + "InventorySnapshot": SecurityAccess,
	adminService + "ListCalendar":      SecurityAccess,
	adminService + "ListPastBookings":  SecurityAccess,
	adminService + "ListMaintenance":   SecurityAccess,

	// AdminService - state changes, admin role
	adminService + "ConfirmBooking":    SecurityAdmin,
	adminService + "ActivateBooking":   SecurityAdmin,
	adminService + "CompleteBooking":   SecurityAdmin,
	adminService + "RejectBooking":     SecurityAdmin,
	adminService + "DeleteBooking":     SecurityAdmin,
	adminService + "SubmitInspection":  SecurityAdmin,
	adminService + "RefundDeposit":     SecurityAdmin,
	adminService + "AssessLateFee":     SecurityAdmin,
	adminService + "RecordMaintenance": SecurityAdmin,
}

// GetSecurityLevel returns the security level for a given method
func GetSecurityLevel(method string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[method]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAdmin
}
