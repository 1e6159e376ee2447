package utils

import "golang.org/x/crypto/bcrypt"

// bcryptCost matches the 12 salt rounds the web client's previous backend
// used, so existing hashes keep verifying.
const bcryptCost = 12

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
