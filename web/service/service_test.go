package service

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/medreport/medreport/config"
	"github.com/medreport/medreport/database"
	"github.com/medreport/medreport/database/model"
	"github.com/medreport/medreport/util/crypto"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Type:   config.DatabaseTypeSQLite,
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	}
	require.NoError(t, database.InitDB(cfg))
	t.Cleanup(func() { _ = database.CloseDB() })
	return database.GetDB()
}

func testConfig() *config.Config {
	return &config.Config{
		AppBaseURL: "http://localhost:3000",
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret",
			AccessTokenTTL: time.Hour,
			ResetTokenTTL:  time.Hour,
		},
	}
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []sentMail
	err    error
	onSend func()
}

func (m *fakeMailer) Send(to, subject, htmlBody string) error {
	if m.onSend != nil {
		m.onSend()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

var errMailDown = errors.New("smtp: connection refused")

func createUser(t *testing.T, db *gorm.DB, name string, role model.Role) *model.User {
	t.Helper()
	hash, err := crypto.HashPasswordAsBcrypt("password")
	require.NoError(t, err)
	u := &model.User{
		Name:        name,
		Email:       name + "@example.com",
		PhoneNumber: "0123456789",
		Password:    hash,
		Role:        role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}
