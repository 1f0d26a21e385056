package auth

import "golang.org/x/crypto/bcrypt"

// Passwords hashes and verifies portal account credentials at a fixed
// bcrypt cost.
type Passwords struct {
	cost int
}

// NewPasswords builds the helper; out-of-range costs fall back to the
// bcrypt default.
func NewPasswords(cost int) *Passwords {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Passwords{cost: cost}
}

// Hash returns the bcrypt hash of a plaintext password.
func (p *Passwords) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), p.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare verifies a password against its stored hash.
func (p *Passwords) Compare(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
