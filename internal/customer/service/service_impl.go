package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/customer/domain"
	pkgdb "github.com/smallbiznis/tillpoint/pkg/db"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	firstName := strings.TrimSpace(req.FirstName)
	if firstName == "" {
		return domain.Customer{}, domain.ErrInvalidFirstName
	}
	lastName := strings.TrimSpace(req.LastName)
	if lastName == "" {
		return domain.Customer{}, domain.ErrInvalidLastName
	}

	email := strings.TrimSpace(req.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return domain.Customer{}, domain.ErrInvalidEmail
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return domain.Customer{}, domain.ErrInvalidPhone
	}

	birthDate, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.BirthDate), time.UTC)
	if err != nil || birthDate.After(s.clock.Now()) {
		return domain.Customer{}, domain.ErrInvalidBirthDate
	}
	if req.CreditLimit.IsNegative() {
		return domain.Customer{}, domain.ErrInvalidCreditLimit
	}

	if exists, err := s.repo.ExistsByEmail(ctx, s.db, email); err != nil {
		return domain.Customer{}, err
	} else if exists {
		return domain.Customer{}, domain.ErrDuplicateEmail
	}
	if exists, err := s.repo.ExistsByPhone(ctx, s.db, phone); err != nil {
		return domain.Customer{}, err
	} else if exists {
		return domain.Customer{}, domain.ErrDuplicatePhone
	}

	now := s.clock.Now()
	customer := domain.Customer{
		ID:          s.genID.Generate(),
		FirstName:   firstName,
		LastName:    lastName,
		Email:       email,
		Phone:       phone,
		BirthDate:   birthDate,
		CreditLimit: req.CreditLimit.Round(2),
		CreditUsed:  decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.Customer{}, domain.ErrDuplicateEmail
		}
		return domain.Customer{}, err
	}

	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, s.db, domain.ListCustomerFilter{
		Email:    strings.TrimSpace(req.Email),
		Frequent: req.Frequent,
	}, page)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, page.Limit(), func(c *domain.Customer) pagination.Cursor {
		return pagination.Cursor{ID: c.ID.String(), CreatedAt: c.CreatedAt.Format(time.RFC3339Nano)}
	})

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}
	return domain.ListCustomerResponse{PageInfo: pageInfo, Customers: customers}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	customerID, err := s.parseID(id)
	if err != nil {
		return domain.Customer{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
