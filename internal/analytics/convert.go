package analytics

import (
	"github.com/noah-isme/backend-jewellery/internal/repo"
	"github.com/noah-isme/backend-jewellery/internal/reports"
)

func toInvoices(rows []repo.Invoice) []reports.Invoice {
	out := make([]reports.Invoice, 0, len(rows))
	for _, r := range rows {
		out = append(out, reports.Invoice{
			ID:            r.ID,
			InvoiceNumber: r.InvoiceNumber,
			CustomerID:    r.CustomerID,
			CreatedAt:     r.CreatedAt,
			GoldValue:     r.GoldValue,
			MakingCharges: r.MakingCharges,
			GSTAmount:     r.GSTAmount,
			TotalAmount:   r.TotalAmount,
		})
	}
	return out
}

func toSales(rows []repo.SaleLine) []reports.LineSale {
	out := make([]reports.LineSale, 0, len(rows))
	for _, r := range rows {
		s := reports.LineSale{
			InvoiceID:  r.InvoiceID,
			ItemID:     r.ItemID,
			CustomerID: r.CustomerID,
			Quantity:   r.Quantity,
			Price:      r.Price,
			SoldAt:     r.SoldAt,
		}
		// a nil name means the item was deleted after the sale
		if r.ItemName != nil {
			s.Item = &reports.ItemRef{Name: *r.ItemName, SKU: deref(r.SKU), MetalType: deref(r.MetalType)}
		}
		out = append(out, s)
	}
	return out
}

func toCustomers(rows []repo.Customer) []reports.Customer {
	out := make([]reports.Customer, 0, len(rows))
	for _, r := range rows {
		out = append(out, reports.Customer{ID: r.ID, Name: r.Name, Phone: r.Phone, CreatedAt: r.CreatedAt})
	}
	return out
}

func toItems(rows []repo.Item) []reports.Item {
	out := make([]reports.Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, reports.Item{
			ID:           r.ID,
			Name:         r.Name,
			SKU:          r.SKU,
			MetalType:    r.MetalType,
			NetWeight:    r.NetWeight,
			MakingCharge: r.MakingCharge,
			Quantity:     r.Quantity,
		})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
