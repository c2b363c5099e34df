package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	customerdomain "github.com/smallbiznis/tillpoint/internal/customer/domain"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
)

const dateLayout = "2006-01-02 15:04"

// Data is the printable view of a ticket. Amounts are pre-formatted.
type Data struct {
	StoreName       string
	Folio           string
	Status          string
	IssuedAt        string
	PaidAt          string
	CustomerName    string
	Items           []Line
	Subtotal        string
	Tax             string
	Saved           string
	Total           string
	BirthdayApplied bool
	PaymentMethod   string
	AmountReceived  string
	ChangeDue       string
	PointsUsed      int64
	PointsEarned    int64
	CreditUsed      string
}

type Line struct {
	Description string
	Qty         int64
	UnitPrice   string
	Discount    string
	Amount      string
}

// Build flattens an order with its items into Data. customer may be nil.
func Build(storeName string, order *orderdomain.Order, customer *customerdomain.Customer) Data {
	data := Data{
		StoreName:       storeName,
		Folio:           order.Folio,
		Status:          string(order.Status),
		IssuedAt:        order.CreatedAt.UTC().Format(dateLayout),
		Subtotal:        order.Subtotal.StringFixed(2),
		Tax:             order.TotalTax.StringFixed(2),
		Saved:           order.MoneySavedTotal.StringFixed(2),
		Total:           order.FinalAmount.StringFixed(2),
		BirthdayApplied: order.IsBirthdayDiscountApplied,
		ChangeDue:       order.ChangeDue.StringFixed(2),
		PointsUsed:      order.PointsUsed,
		PointsEarned:    order.PointsEarned,
		CreditUsed:      order.StoreCreditUsed.StringFixed(2),
	}
	if order.PaidAt != nil {
		data.PaidAt = order.PaidAt.UTC().Format(dateLayout)
	}
	if order.PaymentMethod != nil {
		data.PaymentMethod = string(*order.PaymentMethod)
	}
	if order.AmountReceived.Valid {
		data.AmountReceived = order.AmountReceived.Decimal.StringFixed(2)
	}
	if customer != nil {
		data.CustomerName = customer.FullName()
	}
	for _, item := range order.Items {
		desc := item.ProductName
		if item.PromotionName != nil && *item.PromotionName != "" {
			desc += " (" + *item.PromotionName + ")"
		}
		data.Items = append(data.Items, Line{
			Description: desc,
			Qty:         item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Discount:    item.DiscountAmount.StringFixed(2),
			Amount:      item.Amount.StringFixed(2),
		})
	}
	return data
}

// Render lays the ticket out as a single PDF document.
func Render(data Data) ([]byte, error) {
	if strings.TrimSpace(data.Folio) == "" {
		return nil, errors.New("ticket folio is required")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, data.StoreName, props.Text{Size: 18, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, "Ticket "+data.Folio, props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Right}),
	)

	meta := col.New(6).Add(
		text.New("Issued: "+data.IssuedAt, props.Text{Top: 0, Size: 9}),
		text.New("Status: "+data.Status, props.Text{Top: 4, Size: 9}),
	)
	if data.PaidAt != "" {
		meta.Add(text.New("Paid: "+data.PaidAt, props.Text{Top: 8, Size: 9}))
	}
	buyer := col.New(6)
	if data.CustomerName != "" {
		buyer.Add(
			text.New("Customer", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
			text.New(data.CustomerName, props.Text{Top: 4, Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(16, meta, buyer)

	m.AddRow(10,
		text.NewCol(5, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Discount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, item := range data.Items {
		m.AddRow(8,
			text.NewCol(5, item.Description, props.Text{Size: 9}),
			text.NewCol(1, fmt.Sprintf("%d", item.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Discount, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	total := func(label, value string, style fontstyle.Type) {
		m.AddRow(7,
			col.New(8),
			text.NewCol(2, label, props.Text{Size: 9, Style: style}),
			text.NewCol(2, value, props.Text{Size: 9, Style: style, Align: align.Right}),
		)
	}
	total("Subtotal", data.Subtotal, fontstyle.Normal)
	total("Tax", data.Tax, fontstyle.Normal)
	total("You saved", data.Saved, fontstyle.Normal)
	if data.BirthdayApplied {
		total("Birthday", "applied", fontstyle.Italic)
	}
	total("Total", data.Total, fontstyle.Bold)

	if data.PaymentMethod != "" {
		total("Paid with", data.PaymentMethod, fontstyle.Normal)
		if data.AmountReceived != "" {
			total("Received", data.AmountReceived, fontstyle.Normal)
			total("Change", data.ChangeDue, fontstyle.Normal)
		}
		if data.PointsUsed > 0 {
			total("Points used", fmt.Sprintf("%d", data.PointsUsed), fontstyle.Normal)
		}
		if data.PaymentMethod == string(orderdomain.PaymentStoreCredit) {
			total("Credit used", data.CreditUsed, fontstyle.Normal)
		}
		if data.PointsEarned > 0 {
			total("Points earned", fmt.Sprintf("%d", data.PointsEarned), fontstyle.Normal)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

// Filename is the download name for an order's ticket.
func Filename(folio string, at time.Time) string {
	return fmt.Sprintf("ticket-%s-%s.pdf", folio, at.UTC().Format("20060102"))
}

// Service renders the ticket of a stored order.
type Service interface {
	Ticket(ctx context.Context, orderID string) (pdf []byte, filename string, err error)
}
