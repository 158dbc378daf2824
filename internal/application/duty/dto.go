package duty

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/duty"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/production"
)

// ABVRequest carries a pair of gravity readings
type ABVRequest struct {
	OG *decimal.Decimal `json:"og"`
	FG *decimal.Decimal `json:"fg"`
}

// ABVResponse is the computed ABV; ABV is nil when undetermined
type ABVResponse struct {
	ABV        *decimal.Decimal `json:"abv"`
	Determined bool             `json:"determined"`
}

// CreateBrewRequest represents a new brew
type CreateBrewRequest struct {
	GyleNumber   string           `json:"gyle_number" binding:"required,max=50"`
	RecipeID     *string          `json:"recipe_id"`
	BrewDate     time.Time        `json:"brew_date" binding:"required"`
	VolumeLitres decimal.Decimal  `json:"volume_litres"`
	OG           *decimal.Decimal `json:"og"`
	FG           *decimal.Decimal `json:"fg"`
}

// BrewResponse represents a brew in API responses
type BrewResponse struct {
	ID           string           `json:"id"`
	GyleNumber   string           `json:"gyle_number"`
	RecipeID     *string          `json:"recipe_id,omitempty"`
	BrewDate     time.Time        `json:"brew_date"`
	VolumeLitres decimal.Decimal  `json:"volume_litres"`
	OG           *decimal.Decimal `json:"og,omitempty"`
	FG           *decimal.Decimal `json:"fg,omitempty"`
	ABV          *decimal.Decimal `json:"abv,omitempty"`
}

// PackagingRequest records one packaging run. ABV defaults to the brew's
// computed ABV when omitted.
type PackagingRequest struct {
	BrewID          *string          `json:"brew_id"`
	Gyle            string           `json:"gyle"`
	PackagedAt      time.Time        `json:"packaged_at" binding:"required"`
	ContainerLitres decimal.Decimal  `json:"container_litres"`
	Containers      int64            `json:"containers" binding:"required,min=1"`
	ABV             *decimal.Decimal `json:"abv"`
}

// SpoilageRequest records duty-paid beer lost before sale
type SpoilageRequest struct {
	Period string          `json:"period" binding:"required"`
	Gyle   string          `json:"gyle" binding:"required"`
	Litres decimal.Decimal `json:"litres"`
	Reason string          `json:"reason" binding:"required"`
}

// LineResponse represents a duty line in API responses
type LineResponse struct {
	ID              string          `json:"id"`
	Period          string          `json:"period"`
	BrewID          *string         `json:"brew_id,omitempty"`
	Gyle            string          `json:"gyle"`
	PackagedAt      time.Time       `json:"packaged_at"`
	ContainerLitres decimal.Decimal `json:"container_litres"`
	Containers      int64           `json:"containers"`
	Litres          decimal.Decimal `json:"litres"`
	ABV             decimal.Decimal `json:"abv"`
	LPA             decimal.Decimal `json:"lpa"`
	Category        string          `json:"category"`
	Rate            decimal.Decimal `json:"rate"`
	Duty            decimal.Decimal `json:"duty"`
}

// ReclaimResponse represents a spoilage reclaim in API responses
type ReclaimResponse struct {
	ID       string          `json:"id"`
	Period   string          `json:"period"`
	Gyle     string          `json:"gyle"`
	Litres   decimal.Decimal `json:"litres"`
	LPA      decimal.Decimal `json:"lpa"`
	Category string          `json:"category"`
	Duty     decimal.Decimal `json:"duty"`
	Reason   string          `json:"reason"`
}

// BucketResponse totals one duty category
type BucketResponse struct {
	Category string          `json:"category"`
	Litres   decimal.Decimal `json:"litres"`
	LPA      decimal.Decimal `json:"lpa"`
	Duty     decimal.Decimal `json:"duty"`
}

// ReturnResponse represents a monthly return in API responses
type ReturnResponse struct {
	Period      string           `json:"period"`
	Status      string           `json:"status"`
	Buckets     []BucketResponse `json:"buckets"`
	GrossDuty   decimal.Decimal  `json:"gross_duty"`
	ReclaimDuty decimal.Decimal  `json:"reclaim_duty"`
	NetDuty     decimal.Decimal  `json:"net_duty"`
	Anomaly     bool             `json:"anomaly"`
	FinalizedAt *time.Time       `json:"finalized_at,omitempty"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
}

// ToBrewResponse converts a domain Brew to a response
func ToBrewResponse(b production.Brew) BrewResponse {
	return BrewResponse{
		ID:           b.ID,
		GyleNumber:   b.GyleNumber,
		RecipeID:     b.RecipeID.Ptr(),
		BrewDate:     b.BrewDate,
		VolumeLitres: b.VolumeLitres,
		OG:           b.OG.Ptr(),
		FG:           b.FG.Ptr(),
		ABV:          b.ABV.Ptr(),
	}
}

// ToLineResponse converts a domain Line to a response
func ToLineResponse(l duty.Line) LineResponse {
	return LineResponse{
		ID:              l.ID,
		Period:          l.Period,
		BrewID:          l.BrewID.Ptr(),
		Gyle:            l.Gyle,
		PackagedAt:      l.PackagedAt,
		ContainerLitres: l.ContainerLitres,
		Containers:      l.Containers,
		Litres:          l.Litres,
		ABV:             l.ABV,
		LPA:             l.LPA,
		Category:        string(l.Category),
		Rate:            l.Rate,
		Duty:            l.Duty,
	}
}

// ToReclaimResponse converts a domain Reclaim to a response
func ToReclaimResponse(r duty.Reclaim) ReclaimResponse {
	return ReclaimResponse{
		ID:       r.ID,
		Period:   r.Period,
		Gyle:     r.Gyle,
		Litres:   r.Litres,
		LPA:      r.LPA,
		Category: string(r.Category),
		Duty:     r.Duty,
		Reason:   r.Reason,
	}
}

// ToReturnResponse converts a domain Return to a response
func ToReturnResponse(r duty.Return) ReturnResponse {
	resp := ReturnResponse{
		Period:      r.Period,
		Status:      string(r.Status),
		Buckets:     make([]BucketResponse, 0, len(duty.Categories)),
		GrossDuty:   r.GrossDuty,
		ReclaimDuty: r.ReclaimDuty,
		NetDuty:     r.NetDuty,
		Anomaly:     r.Anomaly,
		FinalizedAt: r.FinalizedAt.Ptr(),
		SubmittedAt: r.SubmittedAt.Ptr(),
	}
	for _, c := range duty.Categories {
		b := r.Buckets[c]
		resp.Buckets = append(resp.Buckets, BucketResponse{
			Category: string(c),
			Litres:   b.Litres,
			LPA:      b.LPA,
			Duty:     b.Duty,
		})
	}
	return resp
}
