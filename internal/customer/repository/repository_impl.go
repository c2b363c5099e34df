package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillpoint/internal/customer/domain"
	pkgdb "github.com/smallbiznis/tillpoint/pkg/db"
	"github.com/smallbiznis/tillpoint/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customers (id, first_name, last_name, email, phone, birth_date, current_points,
		                        is_frequent, frequent_checked_month, credit_limit, credit_used,
		                        last_birthday_discount_year, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		customer.ID,
		customer.FirstName,
		customer.LastName,
		customer.Email,
		customer.Phone,
		customer.BirthDate,
		customer.CurrentPoints,
		customer.IsFrequent,
		customer.FrequentCheckedMonth,
		customer.CreditLimit,
		customer.CreditUsed,
		customer.LastBirthdayDiscountYear,
		customer.CreatedAt,
		customer.UpdatedAt,
	).Error
}

func (r *repo) UpdateBalances(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	if customer == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE customers
		 SET current_points = ?, is_frequent = ?, frequent_checked_month = ?, credit_used = ?,
		     last_birthday_discount_year = ?, updated_at = ?
		 WHERE id = ?`,
		customer.CurrentPoints,
		customer.IsFrequent,
		customer.FrequentCheckedMonth,
		customer.CreditUsed,
		customer.LastBirthdayDiscountYear,
		customer.UpdatedAt,
		customer.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, first_name, last_name, email, phone, birth_date, current_points, is_frequent,
		        frequent_checked_month, credit_limit, credit_used, last_birthday_discount_year,
		        created_at, updated_at
		 FROM customers WHERE id = ?`,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := pkgdb.ForUpdate(db.WithContext(ctx)).Where("id = ?", id).Take(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repo) ExistsByEmail(ctx context.Context, db *gorm.DB, email string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Customer{}).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) ExistsByPhone(ctx context.Context, db *gorm.DB, phone string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Customer{}).
		Where("phone = ?", phone).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListCustomerFilter, page pagination.Pagination) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	stmt := db.WithContext(ctx).Model(&domain.Customer{})
	if filter.Email != "" {
		stmt = stmt.Where("LOWER(email) = ?", strings.ToLower(filter.Email))
	}
	if filter.Frequent != nil {
		stmt = stmt.Where("is_frequent = ?", *filter.Frequent)
	}
	stmt, err := page.Apply(stmt)
	if err != nil {
		return nil, err
	}
	if err := stmt.Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) ListIDsAfter(ctx context.Context, db *gorm.DB, after snowflake.ID, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM customers WHERE id > ? ORDER BY id ASC LIMIT ?`,
		after, limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
