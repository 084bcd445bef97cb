// Package wordlist provides the embedded dictionaries used by the
// dictionary payload generator. Lists are fixed at compile time so scans
// replay identically across runs and machines.
package wordlist

import "github.com/injectest/injectest/pkg/payload"

// weakPasswords is the built-in weak-credential dictionary, ordered by
// prevalence in public breach corpora. The order is part of the contract:
// sequential scans replay it verbatim.
var weakPasswords = []string{
	"password",
	"123456",
	"123456789",
	"qwerty",
	"12345678",
	"111111",
	"1234567890",
	"admin",
	"letmein",
	"welcome",
	"monkey",
	"dragon",
	"abc123",
	"iloveyou",
	"trustno1",
	"sunshine",
	"master",
	"123123",
	"football",
	"shadow",
	"passw0rd",
	"password1",
	"qwerty123",
	"1q2w3e4r",
	"admin123",
	"root",
	"toor",
	"changeme",
	"secret",
	"default",
}

// weakUsernames is the companion account-name dictionary.
var weakUsernames = []string{
	"admin",
	"administrator",
	"root",
	"user",
	"test",
	"guest",
	"operator",
	"support",
	"service",
	"manager",
	"webmaster",
	"postmaster",
	"info",
	"demo",
	"backup",
}

// Passwords returns a copy of the weak-credential dictionary.
func Passwords() []string {
	return append([]string(nil), weakPasswords...)
}

// Usernames returns a copy of the weak account-name dictionary.
func Usernames() []string {
	return append([]string(nil), weakUsernames...)
}

// Contains reports whether word is in the weak-credential dictionary.
func Contains(word string) bool {
	for _, w := range weakPasswords {
		if w == word {
			return true
		}
	}
	return false
}

// PasswordGenerator returns a Generator over the weak-credential
// dictionary in its canonical order.
func PasswordGenerator() payload.Generator {
	return payload.Slice("weak-passwords", weakPasswords...)
}

// UsernameGenerator returns a Generator over the weak account names.
func UsernameGenerator() payload.Generator {
	return payload.Slice("weak-usernames", weakUsernames...)
}
