package domain

// Profile is the application role of a user
type Profile string

const (
	ProfileAdmin    Profile = "ADMIN"
	ProfileOperator Profile = "OPERATOR"
)

// User is an application account that can receive notifications.
type User struct {
	ID      int
	Login   string
	Name    string
	Email   string
	Profile Profile
	// Locale is the user's preferred notification language, empty when unset
	Locale string
	Active bool
}
