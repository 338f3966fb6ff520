package partners

type CreateRequest struct {
	Name           string  `json:"name" validate:"required,min=2,max=100"`
	Email          string  `json:"email" validate:"required,email"`
	CommissionRate float64 `json:"commission_rate" validate:"gte=0,lte=100"`
	Role           string  `json:"role" validate:"max=100"`
}

type RateUpdateRequest struct {
	CommissionRate *float64 `json:"commission_rate" validate:"required,gte=0,lte=100"`
}
