// Package keyring resuelve claves públicas por versión contra el historial
// append-only de cada institución, y ejecuta la rotación de claves.
//
// El historial es lo que mantiene verificables los documentos firmados bajo
// claves retiradas: rotar NUNCA invalida entradas previas, solo cambia qué
// versión se usa para firmas nuevas.
package keyring

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/MiserableTaco/academic-backend/internal/keyvault"
	"github.com/MiserableTaco/academic-backend/internal/observability/logger"
	"github.com/MiserableTaco/academic-backend/internal/store/core"
)

var (
	// ErrKeyVersionNotFound: la versión referida por un documento no existe
	// en el historial. Fail closed: jamás se trata como "válido".
	ErrKeyVersionNotFound = errors.New("key_version_not_found")
	// ErrKeyRevoked: la entrada existe pero fue marcada comprometida y el
	// documento se firmó después de esa marca.
	ErrKeyRevoked = errors.New("key_version_revoked")
)

type repo interface {
	CreateInstitution(ctx context.Context, inst *core.Institution, first *core.KeyVersion) error
	GetInstitution(ctx context.Context, id string) (*core.Institution, error)
	GetKeyVersion(ctx context.Context, institutionID string, version int) (*core.KeyVersion, error)
	AppendKeyVersion(ctx context.Context, kv *core.KeyVersion) error
	MarkKeyVersionRevoked(ctx context.Context, institutionID string, version int) error
}

// Keyring cachea claves públicas resueltas (go-cache con TTL corto: una
// entrada histórica es inmutable, pero revoked_at puede aparecer después).
type Keyring struct {
	store repo
	vault *keyvault.Vault
	cache *gocache.Cache
}

func New(store repo, vault *keyvault.Vault) *Keyring {
	return &Keyring{
		store: store,
		vault: vault,
		cache: gocache.New(2*time.Minute, 10*time.Minute),
	}
}

// ResolvePublicKey devuelve la clave pública para (institución, versión).
// issuedAt permite el chequeo contra revoked_at: un documento firmado
// DESPUÉS del compromiso de la clave falla cerrado; uno firmado antes sigue
// siendo verificable.
func (k *Keyring) ResolvePublicKey(ctx context.Context, inst *core.Institution, version int, issuedAt time.Time) (*rsa.PublicKey, error) {
	kv, err := k.lookup(ctx, inst, version)
	if err != nil {
		return nil, err
	}
	if kv.RevokedAt != nil && !issuedAt.Before(*kv.RevokedAt) {
		return nil, ErrKeyRevoked
	}
	return keyvault.ParsePublicKey(kv.PublicKeyPEM)
}

func (k *Keyring) lookup(ctx context.Context, inst *core.Institution, version int) (*core.KeyVersion, error) {
	cacheKey := fmt.Sprintf("%s:%d", inst.ID, version)
	if v, ok := k.cache.Get(cacheKey); ok {
		return v.(*core.KeyVersion), nil
	}

	kv, err := k.store.GetKeyVersion(ctx, inst.ID, version)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			if version == inst.CurrentKeyVersion {
				// La versión vigente DEBE existir como fila del historial.
				logger.From(ctx).Error("current key version ausente del historial",
					logger.InstitutionID(inst.ID), logger.KeyVersion(version))
				return nil, fmt.Errorf("%w: current v%d sin entrada", core.ErrInvariant, version)
			}
			return nil, ErrKeyVersionNotFound
		}
		return nil, err
	}

	k.cache.Set(cacheKey, kv, gocache.DefaultExpiration)
	return kv, nil
}

// CurrentSigningKey devuelve la entrada vigente (privada cifrada incluida)
// para firmar. No toca el cache: el firmado siempre lee el historial real.
func (k *Keyring) CurrentSigningKey(ctx context.Context, inst *core.Institution) (*core.KeyVersion, error) {
	kv, err := k.store.GetKeyVersion(ctx, inst.ID, inst.CurrentKeyVersion)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("%w: current v%d sin entrada", core.ErrInvariant, inst.CurrentKeyVersion)
		}
		return nil, err
	}
	return kv, nil
}

// Rotate genera un par nuevo, cifra la privada y agrega la entrada
// version+1 al historial (el store bumpea current_key_version en la misma
// tx). La entrada anterior queda intacta: sigue sirviendo para verificar.
func (k *Keyring) Rotate(ctx context.Context, institutionID string) (newVersion int, err error) {
	inst, err := k.store.GetInstitution(ctx, institutionID)
	if err != nil {
		return 0, err
	}

	pubPEM, privPEM, err := keyvault.GenerateRootKeyPair()
	if err != nil {
		return 0, err
	}
	envelope, err := k.vault.EncryptPrivateKey(privPEM)
	if err != nil {
		return 0, err
	}

	next := inst.CurrentKeyVersion + 1
	kv := &core.KeyVersion{
		InstitutionID:       institutionID,
		Version:             next,
		PublicKeyPEM:        pubPEM,
		EncryptedPrivateKey: envelope,
		CreatedAt:           time.Now().UTC(),
	}
	if err := k.store.AppendKeyVersion(ctx, kv); err != nil {
		return 0, err
	}

	logger.From(ctx).Info("institution key rotated",
		logger.InstitutionID(institutionID), logger.KeyVersion(next))
	return next, nil
}

// OnboardInstitution crea la institución con su primer par de claves
// (versión 1). El store garantiza que institución y entrada de historial
// nacen juntas.
func (k *Keyring) OnboardInstitution(ctx context.Context, id, name, emailDomain string) (*core.Institution, error) {
	pubPEM, privPEM, err := keyvault.GenerateRootKeyPair()
	if err != nil {
		return nil, err
	}
	envelope, err := k.vault.EncryptPrivateKey(privPEM)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	inst := &core.Institution{
		ID:          id,
		Name:        name,
		EmailDomain: emailDomain,
		Status:      core.InstitutionActive,
		CreatedAt:   now,
	}
	first := &core.KeyVersion{
		InstitutionID:       id,
		Version:             1,
		PublicKeyPEM:        pubPEM,
		EncryptedPrivateKey: envelope,
		CreatedAt:           now,
	}
	if err := k.store.CreateInstitution(ctx, inst, first); err != nil {
		return nil, err
	}
	inst.CurrentKeyVersion = 1
	inst.PublicKeyPEM = pubPEM

	logger.From(ctx).Info("institution onboarded",
		logger.InstitutionID(id), logger.KeyVersion(1))
	return inst, nil
}

// RevokeKeyVersion marca una entrada histórica como comprometida. Documentos
// firmados después del timestamp de revocación dejan de verificar.
func (k *Keyring) RevokeKeyVersion(ctx context.Context, institutionID string, version int) error {
	if err := k.store.MarkKeyVersionRevoked(ctx, institutionID, version); err != nil {
		return err
	}
	k.cache.Delete(fmt.Sprintf("%s:%d", institutionID, version))
	return nil
}
