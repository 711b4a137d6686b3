package auth

import (
	jujuerrors "github.com/juju/errors"
	"golang.org/x/crypto/bcrypt"

	"landr/internal/platform/config"
)

// Operators checks dashboard logins against the configured bcrypt hashes.
type Operators struct {
	hashes map[string][]byte
}

func NewOperators(cfg []config.OperatorConfig) *Operators {
	o := &Operators{hashes: make(map[string][]byte, len(cfg))}
	for _, op := range cfg {
		o.hashes[op.Username] = []byte(op.PasswordHash)
	}
	return o
}

// dummyHash keeps the unknown-user path as slow as a real comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("landr-dummy"), bcrypt.MinCost)

func (o *Operators) Authenticate(username, password string) error {
	hash, ok := o.hashes[username]
	if !ok {
		hash = dummyHash
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !ok {
		return jujuerrors.Unauthorizedf("invalid username or password")
	}
	return nil
}

// HashPassword is used by landrctl to produce config entries.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
