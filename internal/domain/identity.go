package domain

// Identity is the signed-in user as reported by the external auth service.
type Identity struct {
	UID   string `json:"uid"`
	Phone string `json:"phonenumber,omitempty"`
	Token string `json:"-"`
	Scope string `json:"scope,omitempty"`
	Role  string `json:"role,omitempty"`
}

// OwnerID is the stable identifier carts are keyed by. Accounts created by phone
// sign-up may lack a uid, in which case the phone number is used.
func (i Identity) OwnerID() string {
	if i.UID != "" {
		return i.UID
	}
	return i.Phone
}
