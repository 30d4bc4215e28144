package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lifelane/lifelane/internal/auth"
	"github.com/lifelane/lifelane/internal/model"
)

// userRecord is the on-disk shape of an account. model.User hides the
// password hash from JSON, so the file backend maps it explicitly.
type userRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Admin        bool      `json:"admin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Users is a JSON-file-backed auth.Registry.
type Users struct {
	mu   sync.Mutex
	path string
}

// NewUsers ensures the users file exists and returns the registry.
func NewUsers(path string) (*Users, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeFile(path, []byte("[]")); err != nil {
			return nil, fmt.Errorf("init users file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat users file: %w", err)
	}
	return &Users{path: path}, nil
}

// CreateUser appends a new account, rejecting duplicate emails.
func (u *Users) CreateUser(ctx context.Context, user *model.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	records, err := u.load()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.Email == user.Email {
			return auth.ErrEmailTaken
		}
	}
	records = append(records, userRecord{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Admin:        user.Admin,
		CreatedAt:    user.CreatedAt,
	})
	return u.save(records)
}

// UserByEmail looks up an account by email.
func (u *Users) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	records, err := u.load()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Email == email {
			return &model.User{
				ID:           rec.ID,
				Name:         rec.Name,
				Email:        rec.Email,
				PasswordHash: rec.PasswordHash,
				Admin:        rec.Admin,
				CreatedAt:    rec.CreatedAt,
			}, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

// SetAdmin flips the admin flag on an existing account.
func (u *Users) SetAdmin(ctx context.Context, email string, admin bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	records, err := u.load()
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].Email == email {
			records[i].Admin = admin
			return u.save(records)
		}
	}
	return auth.ErrUserNotFound
}

func (u *Users) load() ([]userRecord, error) {
	data, err := os.ReadFile(u.path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	var records []userRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode users file: %w", err)
	}
	return records, nil
}

func (u *Users) save(records []userRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	if err := writeFile(u.path, data); err != nil {
		return fmt.Errorf("write users file: %w", err)
	}
	return nil
}
