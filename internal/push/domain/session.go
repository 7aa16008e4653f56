package domain

// RegistrationStatus is the state of the push registration handshake
type RegistrationStatus string

const (
	StatusIdle               RegistrationStatus = "idle"
	StatusAwaitingPermission RegistrationStatus = "awaiting_permission"
	StatusRegistering        RegistrationStatus = "registering"
	StatusRegistered         RegistrationStatus = "registered"
	StatusFailed             RegistrationStatus = "failed"
)

// PermissionStatus is the answer of the platform permission prompt
type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	// PermissionPrompt means the prompt was shown but not answered yet.
	PermissionPrompt PermissionStatus = "prompt"
	PermissionDenied PermissionStatus = "denied"
)

// ParsePermission maps a configured permission answer, defaulting to prompt
func ParsePermission(s string) PermissionStatus {
	switch PermissionStatus(s) {
	case PermissionGranted, PermissionDenied:
		return PermissionStatus(s)
	}
	return PermissionPrompt
}
