// Package memory implementa core.Repository en mapas con mutex. Se usa en
// tests y en modo dev sin base de datos; replica la semántica atómica de
// las operaciones compuestas del store real.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MiserableTaco/academic-backend/internal/store/core"
)

type Store struct {
	mu           sync.RWMutex
	institutions map[string]*core.Institution
	keys         map[string][]*core.KeyVersion // institutionID → entradas ordenadas por versión
	users        map[string]*core.User
	documents    map[string]*core.Document
	revocations  map[string]*core.RevocationRecord // documentID → registro
}

func New() *Store {
	return &Store{
		institutions: map[string]*core.Institution{},
		keys:         map[string][]*core.KeyVersion{},
		users:        map[string]*core.User{},
		documents:    map[string]*core.Document{},
		revocations:  map[string]*core.RevocationRecord{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// ───────────────────────── Institutions ─────────────────────────

func (s *Store) CreateInstitution(_ context.Context, inst *core.Institution, first *core.KeyVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.institutions[inst.ID]; ok {
		return core.ErrConflict
	}
	cp := *inst
	cp.CurrentKeyVersion = first.Version
	cp.PublicKeyPEM = first.PublicKeyPEM
	s.institutions[inst.ID] = &cp
	kv := *first
	s.keys[inst.ID] = append(s.keys[inst.ID], &kv)
	return nil
}

func (s *Store) GetInstitution(_ context.Context, id string) (*core.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.institutions[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

func (s *Store) SetInstitutionStatus(_ context.Context, id string, status core.InstitutionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.institutions[id]
	if !ok {
		return core.ErrNotFound
	}
	inst.Status = status
	return nil
}

// ───────────────────────── Key history ─────────────────────────

func (s *Store) AppendKeyVersion(_ context.Context, kv *core.KeyVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.institutions[kv.InstitutionID]
	if !ok {
		return core.ErrNotFound
	}
	for _, e := range s.keys[kv.InstitutionID] {
		if e.Version == kv.Version {
			return core.ErrConflict
		}
	}
	cp := *kv
	s.keys[kv.InstitutionID] = append(s.keys[kv.InstitutionID], &cp)
	// misma "tx": bump de current + copia de la pública vigente
	inst.CurrentKeyVersion = kv.Version
	inst.PublicKeyPEM = kv.PublicKeyPEM
	return nil
}

func (s *Store) GetKeyVersion(_ context.Context, institutionID string, version int) (*core.KeyVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.keys[institutionID] {
		if e.Version == version {
			cp := *e
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) ListKeyVersions(_ context.Context, institutionID string) ([]core.KeyVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.KeyVersion, 0, len(s.keys[institutionID]))
	for _, e := range s.keys[institutionID] {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *Store) MarkKeyVersionRevoked(_ context.Context, institutionID string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.keys[institutionID] {
		if e.Version == version {
			now := time.Now().UTC()
			e.RevokedAt = &now
			return nil
		}
	}
	return core.ErrNotFound
}

// ───────────────────────── Users ─────────────────────────

func (s *Store) CreateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return core.ErrConflict
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// ───────────────────────── Documents ─────────────────────────

func (s *Store) CreateDocument(_ context.Context, d *core.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[d.ID]; ok {
		return core.ErrConflict
	}
	cp := *d
	s.documents[d.ID] = &cp
	return nil
}

// CreateDocumentSuperseding replica la tx del store real: todas las
// precondiciones se chequean antes de mutar nada.
func (s *Store) CreateDocumentSuperseding(_ context.Context, d *core.Document, prevID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[d.ID]; ok {
		return core.ErrConflict
	}
	prev, ok := s.documents[prevID]
	if !ok || prev.Status != core.DocumentActive {
		return core.ErrNotFound
	}
	cp := *d
	s.documents[d.ID] = &cp
	prev.Status = core.DocumentSuperseded
	return nil
}

func (s *Store) GetDocument(_ context.Context, id string) (*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *Store) SetDocumentStatus(_ context.Context, id string, status core.DocumentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return core.ErrNotFound
	}
	d.Status = status
	return nil
}

func (s *Store) FindActiveDocument(_ context.Context, institutionID, recipientID, docType string) (*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.documents {
		if d.InstitutionID == institutionID && d.RecipientID == recipientID &&
			d.Type == docType && d.Status == core.DocumentActive {
			cp := *d
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

// DeleteDocument borra el documento pero NO su registro de revocación
// (el ledger sobrevive al borrado físico). Solo uso administrativo/tests.
func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.documents, id)
	return nil
}

// ───────────────────────── Revocations ─────────────────────────

func (s *Store) RevokeDocument(_ context.Context, rec *core.RevocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.revocations[rec.DocumentID]; ok {
		return core.ErrConflict
	}
	d, ok := s.documents[rec.DocumentID]
	if !ok {
		return core.ErrNotFound
	}
	cp := *rec
	s.revocations[rec.DocumentID] = &cp
	d.Status = core.DocumentRevoked
	return nil
}

func (s *Store) GetRevocation(_ context.Context, documentID string) (*core.RevocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.revocations[documentID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}
