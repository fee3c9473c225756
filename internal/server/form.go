package server

import (
	"fmt"
	"strconv"
)

// Form is the booking form posted to "/". Pointers let "required" accept
// zero values.
type Form struct {
	LeadTime           *int   `form:"lead_time" binding:"required,min=0"`
	NoOfSpecialRequest *int   `form:"no_of_special_request" binding:"required,min=0,max=10"`
	AvgPricePerRoom    string `form:"avg_price_per_room" binding:"required,numeric"`
	ArrivalMonth       *int   `form:"arrival_month" binding:"required,min=1,max=12"`
	ArrivalDate        *int   `form:"arrival_date" binding:"required,min=1,max=31"`
}

// fields maps form keys to the feature names the model was trained on.
var fields = map[string]string{
	"lead_time":             "lead_time",
	"no_of_special_request": "no_of_special_requests",
	"avg_price_per_room":    "avg_price_per_room",
	"arrival_month":         "arrival_month",
	"arrival_date":          "arrival_date",
}

// Features returns the feature names the form carries.
func Features() []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f)
	}
	return out
}

// Values converts a bound form into raw feature values.
func (f *Form) Values() (map[string]float64, error) {
	price, err := strconv.ParseFloat(f.AvgPricePerRoom, 64)
	if err != nil {
		return nil, fmt.Errorf("avg_price_per_room: %w", err)
	}
	if price < 0 {
		return nil, fmt.Errorf("avg_price_per_room must be >= 0, got %g", price)
	}
	return map[string]float64{
		fields["lead_time"]:             float64(*f.LeadTime),
		fields["no_of_special_request"]: float64(*f.NoOfSpecialRequest),
		fields["avg_price_per_room"]:    price,
		fields["arrival_month"]:         float64(*f.ArrivalMonth),
		fields["arrival_date"]:          float64(*f.ArrivalDate),
	}, nil
}
