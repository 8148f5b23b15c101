package checkout

import "strings"

// Address is stored as a JSON document on the order and the customer.
type Address struct {
	FullName   string `json:"full_name" binding:"required,max=120"`
	Address1   string `json:"address1" binding:"required,max=200"`
	Address2   string `json:"address2" binding:"max=200"`
	City       string `json:"city" binding:"required,max=100"`
	PostalCode string `json:"postal_code" binding:"required,max=20"`
	Country    string `json:"country" binding:"required,len=2"`
	Phone      string `json:"phone" binding:"max=30"`
}

func (a Address) Normalize() Address {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Address1 = strings.TrimSpace(a.Address1)
	a.Address2 = strings.TrimSpace(a.Address2)
	a.City = strings.TrimSpace(a.City)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	a.Phone = strings.TrimSpace(a.Phone)
	return a
}

// SplitName returns first and last name on the last space.
func (a Address) SplitName() (string, string) {
	name := strings.TrimSpace(a.FullName)
	i := strings.LastIndex(name, " ")
	if i < 0 {
		return name, ""
	}
	return strings.TrimSpace(name[:i]), strings.TrimSpace(name[i+1:])
}
