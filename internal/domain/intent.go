package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Metadata keys written to the payment provider.
const (
	MetaOrderType    = "order_type"
	MetaMode         = "mode"
	MetaChannel      = "channel"
	MetaItemCount    = "item_count"
	MetaItemPrefix   = "item_"
	MetaPrintOptions = "print_options"
	MetaLicense      = "license"
)

// MaxOrderItems keeps flattened metadata under the provider's 50 key limit.
const MaxOrderItems = 20

// Flatten encodes the intent as a string map for the provider's metadata bag.
func (oi OrderIntent) Flatten() (map[string]string, error) {
	if len(oi.Items) > MaxOrderItems {
		return nil, Validation("too_many_items", fmt.Sprintf("at most %d items per order", MaxOrderItems))
	}
	m := map[string]string{
		MetaOrderType: string(oi.Type),
		MetaMode:      string(oi.Mode),
		MetaItemCount: strconv.Itoa(len(oi.Items)),
	}
	if oi.Channel != "" {
		m[MetaChannel] = oi.Channel
	}
	for i, it := range oi.Items {
		b, err := json.Marshal(it)
		if err != nil {
			return nil, fmt.Errorf("encode item %d: %w", i, err)
		}
		m[MetaItemPrefix+strconv.Itoa(i)] = string(b)
	}
	if oi.Print != nil {
		b, err := json.Marshal(oi.Print)
		if err != nil {
			return nil, fmt.Errorf("encode print options: %w", err)
		}
		m[MetaPrintOptions] = string(b)
	}
	if oi.License != nil {
		b, err := json.Marshal(oi.License)
		if err != nil {
			return nil, fmt.Errorf("encode license: %w", err)
		}
		m[MetaLicense] = string(b)
	}
	return m, nil
}

// UnflattenIntent is the inverse of Flatten.
func UnflattenIntent(m map[string]string) (OrderIntent, error) {
	var oi OrderIntent
	n, err := strconv.Atoi(m[MetaItemCount])
	if err != nil || n <= 0 || n > MaxOrderItems {
		return oi, Validation("invalid_metadata", "missing or invalid item_count")
	}
	oi.Mode = PaymentMode(m[MetaMode])
	oi.Channel = m[MetaChannel]
	oi.Items = make([]OrderItem, 0, n)
	for i := 0; i < n; i++ {
		raw, ok := m[MetaItemPrefix+strconv.Itoa(i)]
		if !ok {
			return oi, Validation("invalid_metadata", fmt.Sprintf("missing item %d", i))
		}
		var it OrderItem
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return oi, Validation("invalid_metadata", fmt.Sprintf("item %d: %v", i, err))
		}
		oi.Items = append(oi.Items, it)
	}
	if raw := m[MetaPrintOptions]; raw != "" {
		oi.Print = &PrintOptions{}
		if err := json.Unmarshal([]byte(raw), oi.Print); err != nil {
			return oi, Validation("invalid_metadata", "print options: "+err.Error())
		}
	}
	if raw := m[MetaLicense]; raw != "" {
		oi.License = &LicenseOptions{}
		if err := json.Unmarshal([]byte(raw), oi.License); err != nil {
			return oi, Validation("invalid_metadata", "license: "+err.Error())
		}
	}
	// the stored type is advisory; the items are authoritative
	oi.Type = DeriveOrderType(oi.Items)
	return oi, nil
}
