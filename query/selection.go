package query

import (
	"context"
	"errors"
	"strconv"
)

// ErrNoSelection is returned by StaticSelection when it is marked as
// requiring a selection and none is configured.
var ErrNoSelection = errors.New("no networks or merchants selected")

// StaticSelection is a SelectionSource for fixed network and merchant IDs.
type StaticSelection struct {
	NetworkIDs  []int
	MerchantIDs []int
	// Required makes an empty selection a compile error.
	Required bool
}

func (s StaticSelection) SelectedFilters(ctx context.Context) ([]Filter, error) {
	if len(s.NetworkIDs) == 0 && len(s.MerchantIDs) == 0 {
		if s.Required {
			return nil, ErrNoSelection
		}
		return nil, nil
	}

	var filters []Filter
	if len(s.NetworkIDs) > 0 {
		filters = append(filters, In("source_id", itoa(s.NetworkIDs)...))
	}
	if len(s.MerchantIDs) > 0 {
		filters = append(filters, In("merchant_id", itoa(s.MerchantIDs)...))
	}
	return filters, nil
}

func itoa(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.Itoa(id)
	}
	return out
}
