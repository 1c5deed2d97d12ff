package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is a confirmed plot purchase. Sales are immutable once recorded.
type Sale struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	GUID       string          `gorm:"uniqueIndex;size:36;not null" json:"guid"`
	BuyerID    uint            `gorm:"not null;index" json:"buyer_id"`
	SellerID   uint            `gorm:"not null;index:idx_sales_seller_leg" json:"seller_id"`
	PlotID     string          `gorm:"size:64;not null" json:"plot_id"`
	SaleAmount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"sale_amount"`
	SaleDate   time.Time       `gorm:"not null;index" json:"sale_date"`
	LegType    Leg             `gorm:"size:10;not null;index:idx_sales_seller_leg" json:"leg_type"`
	RecordedBy *uint           `json:"recorded_by"`
	CreatedAt  time.Time       `gorm:"index" json:"created_at"`

	// Associations
	Buyer  User `gorm:"foreignKey:BuyerID" json:"-"`
	Seller User `gorm:"foreignKey:SellerID" json:"-"`
}

// TableName specifies the table name for Sale
func (Sale) TableName() string {
	return "sales"
}

// IsPersonal returns true for self purchases
func (s *Sale) IsPersonal() bool {
	return s.LegType == LegPersonal
}

// SaleResponse is the JSON response format for sales
type SaleResponse struct {
	ID         uint      `json:"saleId"`
	GUID       string    `json:"guid"`
	BuyerID    uint      `json:"buyerId"`
	BuyerName  string    `json:"buyerName,omitempty"`
	SellerID   uint      `json:"sellerId"`
	SellerName string    `json:"sellerName,omitempty"`
	PlotID     string    `json:"plotId"`
	SaleAmount string    `json:"saleAmount"`
	SaleDate   time.Time `json:"saleDate"`
	LegType    Leg       `json:"legType"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ToResponse converts Sale to SaleResponse
func (s *Sale) ToResponse() SaleResponse {
	resp := SaleResponse{
		ID:         s.ID,
		GUID:       s.GUID,
		BuyerID:    s.BuyerID,
		SellerID:   s.SellerID,
		PlotID:     s.PlotID,
		SaleAmount: s.SaleAmount.StringFixed(2),
		SaleDate:   s.SaleDate,
		LegType:    s.LegType,
		CreatedAt:  s.CreatedAt,
	}
	if s.Buyer.ID != 0 {
		resp.BuyerName = s.Buyer.FullName
	}
	if s.Seller.ID != 0 {
		resp.SellerName = s.Seller.FullName
	}
	return resp
}
