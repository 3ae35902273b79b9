package invoice

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

//Invoice one invoice record read from the input file, FinalAmount stays invalid until the discount is applied
type Invoice struct {
	ID          uint                `gorm:"primaryKey" json:"id" field:"-"`
	Name        string              `gorm:"size:255;not null" json:"name" field:"name,required"`
	Number      string              `gorm:"size:100;index" json:"number" field:"number,required"`
	Amount      decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"amount" field:"amount,required"`
	Discount    decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"discount" field:"discount,required"`
	FinalAmount decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"final_amount" field:"-"`
	Location    string              `gorm:"size:255" json:"location" field:"location"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at" field:"-"`
}

func (inv *Invoice) String() string {
	finalAmount := "null"
	if inv.FinalAmount.Valid {
		finalAmount = inv.FinalAmount.Decimal.String()
	}
	return fmt.Sprintf("Invoice{name=%s, number=%s, amount=%s, discount=%s, finalAmount=%s, location=%s}",
		inv.Name, inv.Number, inv.Amount.String(), inv.Discount.String(), finalAmount, inv.Location)
}
