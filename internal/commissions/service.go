package commissions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox/payloads"
)

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindCommissionRole(ctx context.Context, id uuid.UUID) (*models.CommissionRole, error)
}

type companyLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Company, error)
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the calculator's collaborators.
type ServiceParams struct {
	Repo              *Repository
	Users             userLoader
	Companies         companyLoader
	Events            outboxEmitter
	TransactionRunner txRunner
	FallbackRate      decimal.Decimal
	Logger            *logger.Logger
}

// Service creates commissions for matched sales and walks them through the
// partial-release lifecycle.
type Service struct {
	repo         *Repository
	users        userLoader
	companies    companyLoader
	events       outboxEmitter
	txRunner     txRunner
	fallbackRate decimal.Decimal
	logg         *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user loader required")
	}
	if params.Companies == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "company loader required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		repo:         params.Repo,
		users:        params.Users,
		companies:    params.Companies,
		events:       params.Events,
		txRunner:     params.TransactionRunner,
		fallbackRate: params.FallbackRate,
		logg:         params.Logger,
	}, nil
}

// CreateForSale computes and persists the commission for a matched sale.
// Replays are absorbed by the sale-id uniqueness guard.
func (s *Service) CreateForSale(ctx context.Context, tx *gorm.DB, sale *models.Sale, closerID uuid.UUID) (*models.Commission, error) {
	if sale == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale required")
	}
	if closerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "closer required for commission")
	}

	user, err := s.users.FindByID(ctx, closerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "closer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load closer")
	}

	var role *models.CommissionRole
	if user.CommissionRoleID != nil {
		role, err = s.users.FindCommissionRole(ctx, *user.CommissionRoleID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load commission role")
		}
	}

	company, err := s.companies.Get(ctx, sale.CompanyID)
	if err != nil {
		return nil, err
	}

	rate := ResolveRate(user, role, company, s.fallbackRate)
	total := ComputeTotal(sale.Amount, rate)
	released, status := InitialRelease(total, sale.PaymentContext)

	commission := &models.Commission{
		CompanyID:      sale.CompanyID,
		SaleID:         sale.ID,
		UserID:         user.ID,
		Rate:           rate,
		TotalAmount:    total,
		ReleasedAmount: released,
		ReleaseStatus:  status,
	}

	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	stored, created, err := repo.CreateIfAbsent(ctx, commission)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create commission")
	}
	if created && s.events != nil && tx != nil {
		if err := s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCommissionCreated,
			AggregateType: enums.AggregateCommission,
			AggregateID:   stored.ID,
			Version:       1,
			Data: payloads.CommissionCreatedEvent{
				CommissionID: stored.ID,
				SaleID:       stored.SaleID,
				CompanyID:    stored.CompanyID,
				UserID:       stored.UserID,
				Rate:         stored.Rate,
				TotalAmount:  stored.TotalAmount,
			},
		}); err != nil {
			return nil, err
		}
	}
	return stored, nil
}

// Release makes an additional portion of the commission payable. The
// released amount is clamped so it never decreases and never exceeds total.
func (s *Service) Release(ctx context.Context, companyID, commissionID uuid.UUID, additional decimal.Decimal) (*models.Commission, error) {
	var stored *models.Commission
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		commission, err := repo.FindByID(ctx, commissionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "commission not found")
			}
			return err
		}
		if commission.CompanyID != companyID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "commission not found")
		}
		if commission.ReleaseStatus == enums.ReleaseStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "commission already paid")
		}

		nextAmount, nextStatus := AdvanceRelease(commission.TotalAmount, commission.ReleasedAmount, additional)
		if nextStatus.Rank() < commission.ReleaseStatus.Rank() {
			// Release status only advances.
			nextStatus = commission.ReleaseStatus
		}
		commission.ReleasedAmount = nextAmount
		commission.ReleaseStatus = nextStatus
		if err := repo.UpdateRelease(ctx, commission.ID, *commission); err != nil {
			return err
		}
		if s.events != nil {
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCommissionReleased,
				AggregateType: enums.AggregateCommission,
				AggregateID:   commission.ID,
				Version:       1,
				Data: payloads.CommissionReleasedEvent{
					CommissionID:   commission.ID,
					CompanyID:      commission.CompanyID,
					UserID:         commission.UserID,
					ReleasedAmount: commission.ReleasedAmount,
					ReleaseStatus:  commission.ReleaseStatus,
				},
			}); err != nil {
				return err
			}
		}
		stored = commission
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release commission")
	}
	return stored, nil
}
