package auth

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleClient  = "client"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidUsername    = errors.New("username is required")
	ErrInvalidRole        = errors.New("role must be admin, manager or client")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleClient:
		return true
	}
	return false
}

type User struct {
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserRegistry keeps accounts in memory.
type UserRegistry struct {
	mu    sync.RWMutex
	users map[string]User
	cost  int
}

// NewUserRegistry creates a registry hashing with the given bcrypt cost.
// A cost of 0 uses the package default.
func NewUserRegistry(cost int) *UserRegistry {
	if cost == 0 {
		cost = bcryptCost
	}
	return &UserRegistry{
		users: make(map[string]User),
		cost:  cost,
	}
}

func (r *UserRegistry) Register(username, password, role string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, ErrInvalidUsername
	}
	if !ValidRole(role) {
		return User{}, ErrInvalidRole
	}
	hash, err := hashPasswordWithCost(password, r.cost)
	if err != nil {
		return User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[username]; exists {
		return User{}, ErrUserExists
	}
	user := User{
		Username:     username,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	r.users[username] = user
	return user, nil
}

func (r *UserRegistry) Authenticate(username, password string) (User, error) {
	r.mu.RLock()
	user, ok := r.users[strings.TrimSpace(username)]
	r.mu.RUnlock()

	if !ok || !CheckPassword(password, user.PasswordHash) {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (r *UserRegistry) Get(username string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[username]
	return user, ok
}

// List returns all users ordered by username.
func (r *UserRegistry) List() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b User) int { return strings.Compare(a.Username, b.Username) })
	return users
}
