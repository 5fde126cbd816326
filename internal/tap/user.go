package tap

import "os"

// User is the identity tap commits are authored with.
type User struct {
	Name      string
	Email     string
	IsDefault bool
}

// DetectUser detects the commit author from environment variables:
//  1. KEG_GIT_NAME / KEG_GIT_EMAIL
//  2. GIT_AUTHOR_NAME / GIT_AUTHOR_EMAIL
//  3. a placeholder identity
//
// Global git config is never read.
func DetectUser() User {
	if name := os.Getenv("KEG_GIT_NAME"); name != "" {
		email := os.Getenv("KEG_GIT_EMAIL")
		if email == "" {
			email = "keg@localhost"
		}
		return User{Name: name, Email: email}
	}

	if name := os.Getenv("GIT_AUTHOR_NAME"); name != "" {
		email := os.Getenv("GIT_AUTHOR_EMAIL")
		if email == "" {
			email = "git@localhost"
		}
		return User{Name: name, Email: email}
	}

	return User{Name: "keg", Email: "keg@localhost", IsDefault: true}
}
