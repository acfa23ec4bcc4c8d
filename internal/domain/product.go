// Catalog and order persistence models.
//
// Product mirrors the fields the storefront exports: code, name, category,
// free-form properties, price, brand, warranty text, stock, a spec blob,
// image URLs and the product page link, plus an optional image embedding
// used for photo lookups. Orders and their items are written once when a
// purchase is finalized.
package domain

import (
	"strconv"
	"time"

	"gorm.io/gorm"
)

// Product is one catalog record.
//
// A LifecarePrice of 0 means "price on request". Properties uses "0" or ""
// as a no-value sentinel (inherited from the storefront export).
type Product struct {
	ProductCode    string    `json:"product_code"    gorm:"type:varchar(64);primaryKey"`
	ProductName    string    `json:"product_name"    gorm:"type:varchar(255);not null;index"`
	Category       string    `json:"category"        gorm:"type:varchar(255);index"`
	Properties     string    `json:"properties"      gorm:"type:varchar(255)"`
	LifecarePrice  float64   `json:"lifecare_price"`
	Trademark      string    `json:"trademark"       gorm:"type:varchar(128)"`
	Guarantee      string    `json:"guarantee"       gorm:"type:varchar(128)"`
	Inventory      int       `json:"inventory"       gorm:"not null;default:0;check:inventory >= 0"`
	Specifications string    `json:"specifications"  gorm:"type:text"`
	AvatarImages   []string  `json:"avatar_images"   gorm:"serializer:json"`
	LinkProduct    string    `json:"link_product"    gorm:"type:varchar(512)"`
	ImageEmbedding []float32 `json:"-"               gorm:"serializer:json"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// Key returns the identity used to dedup products shown to a customer
// within one topic (name plus properties, matching OrderLine.Key).
func (p Product) Key() string { return p.ProductName + "::" + p.Properties }

// FullName renders the display name, appending properties when present.
func (p Product) FullName() string {
	if p.Properties != "" && p.Properties != "0" {
		return p.ProductName + " (" + p.Properties + ")"
	}
	return p.ProductName
}

// PrimaryImage returns the first non-empty image URL, or "".
func (p Product) PrimaryImage() string {
	for _, u := range p.AvatarImages {
		if u != "" {
			return u
		}
	}
	return ""
}

// Order is a finalized purchase written when the contact record completes.
type Order struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	SessionID     string         `json:"session_id"     gorm:"type:varchar(128);not null;index"`
	CustomerName  string         `json:"customer_name"  gorm:"type:varchar(255);not null"`
	CustomerPhone string         `json:"customer_phone" gorm:"type:varchar(32);not null"`
	Address       string         `json:"address"        gorm:"type:varchar(512);not null"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"              gorm:"index"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// OrderItem is one line of a finalized order.
type OrderItem struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	OrderID     string    `json:"order_id"     gorm:"type:char(36);not null;index"`
	ProductCode string    `json:"product_code" gorm:"type:varchar(64)"`
	ProductName string    `json:"product_name" gorm:"type:varchar(255);not null"`
	Properties  string    `json:"properties"   gorm:"type:varchar(255)"`
	Quantity    int       `json:"quantity"     gorm:"not null;check:quantity >= 1"`
	UnitPrice   float64   `json:"unit_price"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for OrderItem.
func (OrderItem) TableName() string { return "order_items" }

// FormatPrice renders a VND amount with dot thousand separators and the
// đ suffix, e.g. 1250000 -> "1.250.000đ".
func FormatPrice(v float64) string {
	s := strconv.FormatInt(int64(v), 10)
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, s[i])
	}
	return string(out) + "đ"
}

// ImageInfo is the image side-payload attached to a reply.
type ImageInfo struct {
	ProductName string `json:"product_name"`
	ImageURL    string `json:"image_url"`
	ProductLink string `json:"product_link"`
}
