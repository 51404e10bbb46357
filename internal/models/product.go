package models

// Product represents a product in the catalogue.
type Product struct {
	ID    int64   `json:"id,omitempty" gorm:"primaryKey;autoIncrement"`
	Name  string  `json:"name" gorm:"type:varchar(255);not null" validate:"required,notblank,max=255"`
	Price float64 `json:"price" gorm:"not null" validate:"gt=0"`
}

// ProductRequest is the body accepted by create, full update and bulk create.
// Pointer fields keep "absent" apart from zero values so updates can merge.
type ProductRequest struct {
	ID    *int64   `json:"id,omitempty"`
	Name  *string  `json:"name" validate:"required,notblank,max=255"`
	Price *float64 `json:"price" validate:"required,gt=0"`
}

// ToProduct converts the request into an unsaved Product. The id is never copied.
func (r ProductRequest) ToProduct() Product {
	var p Product
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Price != nil {
		p.Price = *r.Price
	}
	return p
}
