// Package verifier checks supplied credentials against directory entries.
package verifier

import (
	"context"
	"fmt"

	"castellan/internal/proto"
	"castellan/pkg/secrets"
)

// EntryReader is the directory lookup surface the verifier needs.
type EntryReader interface {
	FindByAttrValue(ctx context.Context, attr, value string) ([]proto.Entry, error)
}

// Directory resolves principals and verifies credentials against the entry
// store. It also builds the token issued at Success, since both draw from
// the same entry attributes.
type Directory struct {
	entries EntryReader
}

// New creates a directory-backed verifier.
func New(entries EntryReader) *Directory {
	return &Directory{entries: entries}
}

// lookup resolves a principal name to its account entry.
func (d *Directory) lookup(ctx context.Context, principal string) (proto.Entry, error) {
	found, err := d.entries.FindByAttrValue(ctx, proto.AttrName, principal)
	if err != nil {
		return proto.Entry{}, err
	}
	for _, e := range found {
		if e.Contains(proto.AttrClass, proto.ClassAccount) || e.Contains(proto.AttrClass, proto.ClassAnonymous) {
			return e, nil
		}
	}
	return proto.Entry{}, fmt.Errorf("verifier: unknown principal %q", principal)
}

// RequiredMechanisms names the mechanisms acceptable for the principal.
// Unknown and locked principals return an error; the caller maps every
// error to the same generic denial.
func (d *Directory) RequiredMechanisms(ctx context.Context, principal string) ([]proto.AuthAllowed, error) {
	entry, err := d.lookup(ctx, principal)
	if err != nil {
		return nil, err
	}
	if entry.Contains(proto.AttrLocked, "true") {
		return nil, fmt.Errorf("verifier: principal %q is locked", principal)
	}
	if entry.Contains(proto.AttrClass, proto.ClassAnonymous) {
		return []proto.AuthAllowed{proto.AllowedAnonymous}, nil
	}
	if entry.Has(proto.AttrPasswordHash) {
		return []proto.AuthAllowed{proto.AllowedPassword}, nil
	}
	return nil, fmt.Errorf("verifier: principal %q has no usable credentials", principal)
}

// Verify checks one supplied credential. It reports only pass or fail.
func (d *Directory) Verify(ctx context.Context, principal string, cred proto.AuthCredential) bool {
	entry, err := d.lookup(ctx, principal)
	if err != nil {
		return false
	}
	switch cred.Kind {
	case proto.CredentialAnonymous:
		return entry.Contains(proto.AttrClass, proto.ClassAnonymous)
	case proto.CredentialPassword:
		hash, ok := entry.First(proto.AttrPasswordHash)
		if !ok {
			return false
		}
		return secrets.Verify(cred.Secret, hash) == nil
	default:
		return false
	}
}

// BuildToken assembles the identity assertion for a successfully
// authenticated principal from their entry and group memberships.
func (d *Directory) BuildToken(ctx context.Context, principal string, appID *string, claims []proto.Claim) (*proto.UserAuthToken, error) {
	entry, err := d.lookup(ctx, principal)
	if err != nil {
		return nil, err
	}
	entryUUID, ok := entry.First(proto.AttrUUID)
	if !ok {
		return nil, fmt.Errorf("verifier: entry for %q has no uuid", principal)
	}
	display, ok := entry.First(proto.AttrDisplayName)
	if !ok {
		display = principal
	}

	groups, err := d.memberships(ctx, principal)
	if err != nil {
		return nil, err
	}

	token := &proto.UserAuthToken{
		Name:        principal,
		DisplayName: display,
		UUID:        entryUUID,
		Groups:      groups,
		Claims:      claims,
	}
	if appID != nil {
		app, err := d.application(ctx, *appID)
		if err != nil {
			return nil, err
		}
		token.Application = app
	}
	return token, nil
}

// memberships collects the groups that name the principal as a member.
func (d *Directory) memberships(ctx context.Context, principal string) ([]proto.Group, error) {
	found, err := d.entries.FindByAttrValue(ctx, proto.AttrMember, principal)
	if err != nil {
		return nil, err
	}
	var groups []proto.Group
	for _, e := range found {
		if !e.Contains(proto.AttrClass, proto.ClassGroup) {
			continue
		}
		name, ok := e.First(proto.AttrName)
		if !ok {
			continue
		}
		groupUUID, _ := e.First(proto.AttrUUID)
		groups = append(groups, proto.Group{Name: name, UUID: groupUUID})
	}
	return groups, nil
}

// application resolves an application context by name.
func (d *Directory) application(ctx context.Context, name string) (*proto.Application, error) {
	found, err := d.entries.FindByAttrValue(ctx, proto.AttrName, name)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("verifier: unknown application %q", name)
	}
	appUUID, _ := found[0].First(proto.AttrUUID)
	return &proto.Application{Name: name, UUID: appUUID}, nil
}
