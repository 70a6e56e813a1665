package devapi

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"os"
)

// BootstrapOperator creates the first operator account when no account exists.
// It is idempotent: once any account exists, it does nothing.
func BootstrapOperator(ctx context.Context, auth AuthService, users UserRepository, cfg Config) error {
	if !cfg.BootstrapOperatorEnabled {
		return nil
	}

	has, err := users.HasAny(ctx)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	password, err := generatePassword(24)
	if err != nil {
		return err
	}

	u, err := auth.Register(ctx, RegisterInput{
		Name:     "Operador",
		Lastname: "Kakariko",
		Email:    cfg.BootstrapOperatorEmail,
		Password: password,
	})
	if err != nil {
		return err
	}

	if cfg.InitialOperatorPasswordPath != "" {
		if err := os.WriteFile(cfg.InitialOperatorPasswordPath, []byte(password+"\n"), 0o600); err != nil {
			return err
		}
		log.Printf("initial operator created email=%s; password written to %s", u.Email, cfg.InitialOperatorPasswordPath)
	} else {
		log.Printf("initial operator created email=%s password=%s", u.Email, password)
	}

	return nil
}

func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("password length must be positive")
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
