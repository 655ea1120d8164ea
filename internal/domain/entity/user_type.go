package entity

// UserType categorizes an account on the ordering platform.
type UserType string

const (
	UserTypeCustomer   UserType = "CUSTOMER"
	UserTypeRestaurant UserType = "RESTAURANT"
	UserTypeCourier    UserType = "COURIER"
	UserTypeAdmin      UserType = "ADMIN"
)

// Valid reports whether t is one of the known user types.
// The empty value is allowed; the type is optional at creation.
func (t UserType) Valid() bool {
	switch t {
	case "", UserTypeCustomer, UserTypeRestaurant, UserTypeCourier, UserTypeAdmin:
		return true
	}
	return false
}

func (t UserType) String() string { return string(t) }
