package companies

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
	"github.com/angelmondragon/closetrack-backend/pkg/security"
)

// Service resolves tenants from inbound identifiers and guards their sealed
// third-party credentials.
type Service struct {
	repo   *Repository
	sealer *security.CredentialSealer
	logg   *logger.Logger
}

func NewService(repo *Repository, sealer *security.CredentialSealer, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "company repo required")
	}
	if sealer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "credential sealer required")
	}
	return &Service{repo: repo, sealer: sealer, logg: logg}, nil
}

// Get loads a tenant by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	company, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "company not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load company")
	}
	return company, nil
}

// ResolveByLocation maps an external CRM location id onto the owning tenant.
func (s *Service) ResolveByLocation(ctx context.Context, externalLocationID string) (*models.Company, error) {
	trimmed := strings.TrimSpace(externalLocationID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeTenantUnresolved, "no location id in payload")
	}
	company, err := s.repo.FindByExternalLocationID(ctx, trimmed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeTenantUnresolved, "no company for location id").WithDetails(map[string]any{"location_id": trimmed})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve company by location")
	}
	return company, nil
}

// ResolveBySurveySecret authenticates the company+secret query pair used by
// the survey channel, which cannot set signature headers.
func (s *Service) ResolveBySurveySecret(ctx context.Context, companyID uuid.UUID, secret string) (*models.Company, error) {
	company, err := s.Get(ctx, companyID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeTenantUnresolved, "no company for survey submission")
		}
		return nil, err
	}
	if company.SurveySecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "survey secret not configured")
	}
	if subtle.ConstantTimeCompare([]byte(company.SurveySecret), []byte(secret)) != 1 {
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "survey secret mismatch")
	}
	return company, nil
}

// StoreCredentials seals and persists third-party credentials for a tenant.
func (s *Service) StoreCredentials(ctx context.Context, companyID uuid.UUID, credentials map[string]string) error {
	company, err := s.Get(ctx, companyID)
	if err != nil {
		return err
	}
	plaintext, err := json.Marshal(credentials)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode credentials")
	}
	sealed, err := s.sealer.Seal(plaintext)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal credentials")
	}
	company.EncryptedCredentials = sealed
	if err := s.repo.Update(ctx, company); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store credentials")
	}
	return nil
}

// Credentials opens a tenant's sealed credential blob.
func (s *Service) Credentials(ctx context.Context, companyID uuid.UUID) (map[string]string, error) {
	company, err := s.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if len(company.EncryptedCredentials) == 0 {
		return map[string]string{}, nil
	}
	plaintext, err := s.sealer.Open(company.EncryptedCredentials)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open credentials")
	}
	var credentials map[string]string
	if err := json.Unmarshal(plaintext, &credentials); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode credentials")
	}
	return credentials, nil
}

// AutoSubmitAllowed reports whether the tenant lets the given source finalize
// a PCN without human review.
func (s *Service) AutoSubmitAllowed(company *models.Company, source string) bool {
	if company == nil {
		return false
	}
	for _, allowed := range company.PCNAutoSubmitSources {
		if strings.EqualFold(allowed, source) {
			return true
		}
	}
	return false
}
