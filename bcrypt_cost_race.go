//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// race builds hash at the library default; DefaultHashCost is too slow there
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
