package auth

import (
	"errors"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("User already exists")
	ErrInvalidCredentials = errors.New("Invalid username or password")
)

// User is an operator account
type User struct {
	Username     string
	Fullname     string
	PasswordHash []byte
}

// Users is an in-memory account registry. Passwords are stored as bcrypt hashes.
type Users struct {
	cost int

	mu         sync.RWMutex
	byUsername map[string]*User
}

// NewUsers initializes an empty registry; cost is the bcrypt cost factor, where 0
// selects bcrypt.DefaultCost
func NewUsers(cost int) *Users {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Users{
		cost:       cost,
		byUsername: make(map[string]*User),
	}
}

// ValidateRegistration checks the rules that an account must satisfy before it's
// created
func ValidateRegistration(username, fullname, password string) error {
	if n := utf8.RuneCountInString(username); n < 2 || n > 15 {
		return errors.New("Username should be from 2 to 15 symbols")
	}
	if n := utf8.RuneCountInString(fullname); n == 0 || n > 100 {
		return errors.New("Full name should be from 1 to 100 symbols")
	}
	if utf8.RuneCountInString(password) < 8 {
		return errors.New("Password should be at least 8 symbols")
	}
	hasLetter := false
	for _, r := range password {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return errors.New("Password should contain at least one letter")
	}
	return nil
}

// Register creates an account, failing with ErrUserExists if the username is taken
func (u *Users) Register(username, fullname, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.byUsername[username]; ok {
		return nil, ErrUserExists
	}
	user := &User{
		Username:     username,
		Fullname:     fullname,
		PasswordHash: hash,
	}
	u.byUsername[username] = user
	return user, nil
}

// Authenticate returns the user with the given username if the password matches.
// An unknown username and a wrong password are indistinguishable to the caller.
func (u *Users) Authenticate(username, password string) (*User, error) {
	user, ok := u.Get(username)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (u *Users) Get(username string) (*User, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.byUsername[username]
	return user, ok
}
