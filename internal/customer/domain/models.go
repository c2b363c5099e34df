package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const MonthLayout = "2006-01"

type Customer struct {
	ID                       snowflake.ID    `gorm:"primaryKey" json:"id"`
	FirstName                string          `gorm:"type:varchar(60);not null" json:"first_name"`
	LastName                 string          `gorm:"type:varchar(60);not null" json:"last_name"`
	Email                    string          `gorm:"type:varchar(255);not null;uniqueIndex:ux_customers_email" json:"email"`
	Phone                    string          `gorm:"type:varchar(20);not null;uniqueIndex:ux_customers_phone" json:"phone_number"`
	BirthDate                time.Time       `gorm:"type:date;not null" json:"birth_date"`
	CurrentPoints            int64           `gorm:"not null;default:0" json:"current_points"`
	IsFrequent               bool            `gorm:"not null;default:false" json:"is_frequent"`
	FrequentCheckedMonth     string          `gorm:"type:varchar(7);not null;default:''" json:"frequent_checked_month,omitempty"`
	CreditLimit              decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"credit_limit"`
	CreditUsed               decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"credit_used"`
	LastBirthdayDiscountYear int             `gorm:"not null;default:0" json:"last_birthday_discount_year,omitempty"`
	CreatedAt                time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt                time.Time       `gorm:"not null" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// AvailableCredit is the unused part of the credit line.
func (c *Customer) AvailableCredit() decimal.Decimal {
	available := c.CreditLimit.Sub(c.CreditUsed)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}

// FrequentStatus is the cached frequent flag together with the month it was
// computed in.
type FrequentStatus struct {
	CheckedMonth string
	Frequent     bool
}

func (c *Customer) FrequentStatus() FrequentStatus {
	return FrequentStatus{CheckedMonth: c.FrequentCheckedMonth, Frequent: c.IsFrequent}
}

func (c *Customer) SetFrequentStatus(status FrequentStatus) {
	c.FrequentCheckedMonth = status.CheckedMonth
	c.IsFrequent = status.Frequent
}

// StaleAt reports whether the status was computed in a month other than now's.
func (s FrequentStatus) StaleAt(now time.Time) bool {
	return s.CheckedMonth != now.UTC().Format(MonthLayout)
}

// BirthdayDiscountDue reports whether today is the customer's birthday and
// the yearly discount has not been used yet.
func (c *Customer) BirthdayDiscountDue(today time.Time) bool {
	if c.BirthDate.IsZero() || c.LastBirthdayDiscountYear == today.Year() {
		return false
	}
	month, day := c.BirthDate.Month(), c.BirthDate.Day()
	if month == time.February && day == 29 && !isLeap(today.Year()) {
		day = 28
	}
	return month == today.Month() && day == today.Day()
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
