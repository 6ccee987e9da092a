package domain

// DefaultRoster is the fixed set of operators that can open a till session.
func DefaultRoster() []User {
	return []User{
		{ID: 1, Name: "Ahmet Uzun", Role: RoleManager, Branches: []string{"Merkez", "Şube 2"}},
		{ID: 2, Name: "Ayşe Yılmaz", Role: RoleCashier, Branches: []string{"Merkez"}},
		{ID: 3, Name: "Mehmet Demir", Role: RoleCashier, Branches: []string{"Şube 2"}},
	}
}
