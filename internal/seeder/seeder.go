// Package seeder populates the directory with its bootstrap entries: the
// anonymous principal, the admin account, and the built-in admin group.
package seeder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"castellan/internal/proto"
	"castellan/pkg/secrets"
)

// EntryStore is the directory surface the seeder writes through.
type EntryStore interface {
	Create(ctx context.Context, entries []proto.Entry) error
	FindByAttrValue(ctx context.Context, attr, value string) ([]proto.Entry, error)
}

// Seeder creates the bootstrap entries when they are absent.
type Seeder struct {
	entries EntryStore
	logger  *slog.Logger
}

// New creates a seeder.
func New(entries EntryStore, logger *slog.Logger) *Seeder {
	return &Seeder{entries: entries, logger: logger}
}

// SeedAll ensures all bootstrap entries exist. adminPassword may be empty,
// in which case a random one is generated and logged once.
func (s *Seeder) SeedAll(ctx context.Context, adminPassword string) error {
	if err := s.seedAnonymous(ctx); err != nil {
		return fmt.Errorf("seed anonymous: %w", err)
	}
	if err := s.seedAdmin(ctx, adminPassword); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := s.seedAdminGroup(ctx); err != nil {
		return fmt.Errorf("seed admin group: %w", err)
	}
	return nil
}

func (s *Seeder) exists(ctx context.Context, name string) (bool, error) {
	found, err := s.entries.FindByAttrValue(ctx, proto.AttrName, name)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

func (s *Seeder) seedAnonymous(ctx context.Context) error {
	ok, err := s.exists(ctx, "anonymous")
	if err != nil || ok {
		return err
	}
	entry := proto.NewEntry(map[string][]string{
		proto.AttrName:        {"anonymous"},
		proto.AttrDisplayName: {"Anonymous"},
		proto.AttrUUID:        {uuid.NewString()},
		proto.AttrClass:       {proto.ClassAnonymous, proto.ClassSystem},
	})
	if err := s.entries.Create(ctx, []proto.Entry{entry}); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "seeded anonymous principal")
	return nil
}

func (s *Seeder) seedAdmin(ctx context.Context, password string) error {
	ok, err := s.exists(ctx, "admin")
	if err != nil || ok {
		return err
	}
	if password == "" {
		password, err = secrets.Generate()
		if err != nil {
			return err
		}
		s.logger.WarnContext(ctx, "no admin password configured, generated one",
			"password", password,
		)
	}
	hash, err := secrets.Hash(password)
	if err != nil {
		return err
	}
	entry := proto.NewEntry(map[string][]string{
		proto.AttrName:         {"admin"},
		proto.AttrDisplayName:  {"Administrator"},
		proto.AttrUUID:         {uuid.NewString()},
		proto.AttrClass:        {proto.ClassAccount, proto.ClassSystem},
		proto.AttrPasswordHash: {hash},
	})
	if err := s.entries.Create(ctx, []proto.Entry{entry}); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "seeded admin account")
	return nil
}

func (s *Seeder) seedAdminGroup(ctx context.Context) error {
	ok, err := s.exists(ctx, "idm_admins")
	if err != nil || ok {
		return err
	}
	entry := proto.NewEntry(map[string][]string{
		proto.AttrName:   {"idm_admins"},
		proto.AttrUUID:   {uuid.NewString()},
		proto.AttrClass:  {proto.ClassGroup, proto.ClassSystem},
		proto.AttrMember: {"admin"},
	})
	if err := s.entries.Create(ctx, []proto.Entry{entry}); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "seeded admin group")
	return nil
}
