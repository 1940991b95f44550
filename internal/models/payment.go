package models

import "time"

// PackageSelection is one student's package choice inside a family payment
// flow. CustomPrice overrides the catalog price when UseCustomPrice is set.
type PackageSelection struct {
	StudentID      int64 `json:"student_id"`
	PackageID      int64 `json:"package_id"`
	CustomPrice    int64 `json:"custom_price,omitempty"`
	UseCustomPrice bool  `json:"use_custom_price"`
}

// FamilyPaymentFlow is the multi-step payment state for one family group.
// Currency is locked on first selection; every selection in the flow shares it.
type FamilyPaymentFlow struct {
	FamilyID   string                     `json:"family_id"`
	Currency   string                     `json:"currency"`
	Selections map[int64]PackageSelection `json:"selections"`
	UpdatedAt  time.Time                  `json:"updated_at"`
}

// Selection returns the stored selection for a student, if any.
func (f *FamilyPaymentFlow) Selection(studentID int64) (PackageSelection, bool) {
	if f == nil || f.Selections == nil {
		return PackageSelection{}, false
	}
	sel, ok := f.Selections[studentID]
	return sel, ok
}

// FamilyValidation is the completeness check result for a family flow.
type FamilyValidation struct {
	IsComplete        bool    `json:"is_complete"`
	MissingCount      int     `json:"missing_count"`
	MissingStudentIDs []int64 `json:"missing_student_ids,omitempty"`
}

// PaymentRequest is what the external payment provider needs to mint a
// checkout link. The engine computes amount and currency, nothing more.
type PaymentRequest struct {
	Amount   int64             `json:"amount"` // minor units
	Currency string            `json:"currency"`
	FamilyID string            `json:"family_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PaymentLink is the provider's checkout reference.
type PaymentLink struct {
	Reference string `json:"reference"`
	URL       string `json:"url,omitempty"`
}
