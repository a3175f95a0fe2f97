// Copyright 2026 The Ghostgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ghostgate/ghostgate/internal/audit"
)

// Service provides real-identity authentication. It is the only component
// that ever sees who the user is; everything downstream operates on tokens
// that carry no identity.
type Service struct {
	repo        Repository
	hasher      *PasswordHasher
	signer      *CredentialSigner
	keyVerifier KeyVerifier
	auditLogger audit.Logger
}

// NewService creates a new identity service. keyVerifier may be nil when
// hardware-key authentication is not configured.
func NewService(repo Repository, hasher *PasswordHasher, signer *CredentialSigner, keyVerifier KeyVerifier, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		hasher:      hasher,
		signer:      signer,
		keyVerifier: keyVerifier,
		auditLogger: auditLogger,
	}
}

// Register creates a new user with a password credential
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email address")
	}
	if len(password) < 12 {
		return nil, ErrWeakPassword
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrUserAlreadyExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}

	now := time.Now()
	user := &User{
		ID:           id.String(),
		Email:        email,
		PasswordHash: hash,
		Tier:         TierStandard,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Actor:    user.ID,
		Action:   audit.ActionRegister,
		Category: audit.CategoryAuth,
		Success:  true,
	})

	return user, nil
}

// Authenticate verifies an email/password pair and mints a bearer
// credential for the authority's own endpoints.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, string, time.Time, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		s.logAuthFailure(ctx, "", "user_not_found")
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		s.logAuthFailure(ctx, user.ID, "bad_password")
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	return s.finishLogin(ctx, user)
}

// AuthenticateWithKey verifies a hardware-key assertion through the
// configured verification library.
func (s *Service) AuthenticateWithKey(ctx context.Context, userID string, assertion []byte) (*User, string, time.Time, error) {
	if s.keyVerifier == nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		s.logAuthFailure(ctx, "", "user_not_found")
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	if err := s.keyVerifier.VerifyAssertion(ctx, user.ID, assertion); err != nil {
		s.logAuthFailure(ctx, user.ID, "key_assertion_failed")
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	return s.finishLogin(ctx, user)
}

func (s *Service) finishLogin(ctx context.Context, user *User) (*User, string, time.Time, error) {
	if user.Suspended {
		s.logAuthFailure(ctx, user.ID, "suspended")
		return nil, "", time.Time{}, ErrAccountSuspended
	}

	credential, expiresAt, err := s.signer.Mint(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Actor:    user.ID,
		Action:   audit.ActionLogin,
		Category: audit.CategoryAuth,
		Success:  true,
	})

	return user, credential, expiresAt, nil
}

// ResolveCredential validates a bearer credential and loads the caller.
// A suspended account fails resolution even with a still-valid credential.
func (s *Service) ResolveCredential(ctx context.Context, credential string) (*User, error) {
	userID, err := s.signer.Verify(credential)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrCredentialInvalid
	}
	if user.Suspended {
		return nil, ErrAccountSuspended
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) logAuthFailure(ctx context.Context, actor, reason string) {
	s.auditLogger.Log(ctx, audit.Event{
		Actor:    actor,
		Action:   audit.ActionLogin,
		Category: audit.CategoryAuth,
		Success:  false,
		Metadata: map[string]any{"reason": reason},
	})
}
