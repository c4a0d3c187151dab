package validate

// UserID reports whether id identifies a real user.
func UserID(id int64) bool {
	return id > 0
}

// Amount reports whether v is a valid money amount in minor units.
func Amount(v int64) bool {
	return v >= 0
}
