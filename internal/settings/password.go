package settings

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"moneymanager/internal/storage"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 4

var (
	ErrPasswordTooShort = errors.New("password must be at least 4 characters")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrWrongPassword    = errors.New("wrong password")
)

// PasswordGate is a UI lock. It is not an access-control boundary: nothing
// else in the service checks it.
type PasswordGate struct {
	kv storage.KV
}

func NewPasswordGate(kv storage.KV) *PasswordGate {
	return &PasswordGate{kv: kv}
}

// Enabled reports whether a password has been set.
func (g *PasswordGate) Enabled(ctx context.Context) (bool, error) {
	_, err := g.kv.Get(ctx, storage.KeyPassword)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load password: %w", err)
	}
	return true, nil
}

// Set stores a bcrypt hash of password after checking the confirmation.
func (g *PasswordGate) Set(ctx context.Context, password, confirm string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := g.kv.Set(ctx, storage.KeyPassword, hash); err != nil {
		return fmt.Errorf("save password: %w", err)
	}
	return nil
}

// Clear removes the password.
func (g *PasswordGate) Clear(ctx context.Context) error {
	if err := g.kv.Delete(ctx, storage.KeyPassword); err != nil {
		return fmt.Errorf("clear password: %w", err)
	}
	return nil
}

// Unlock checks password. With no password set every attempt succeeds.
func (g *PasswordGate) Unlock(ctx context.Context, password string) error {
	hash, err := g.kv.Get(ctx, storage.KeyPassword)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load password: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}
