package order

import "strings"

// Source is the channel an order originated from.
type Source string

const (
	SourceKiosk        Source = "Kiosk"
	SourceDoorDash     Source = "DoorDash"
	SourceUberEats     Source = "Uber Eats"
	SourceGrubhub      Source = "Grubhub"
	SourceSquareOnline Source = "Square Online"
	SourceUnknown      Source = "Unknown"
)

func (s Source) String() string {
	return string(s)
}

// sourceRules is evaluated top to bottom, first match wins.
var sourceRules = []struct {
	source   Source
	keywords []string
}{
	{SourceDoorDash, []string{"doordash"}},
	{SourceUberEats, []string{"uber"}},
	{SourceGrubhub, []string{"grubhub"}},
	{SourceSquareOnline, []string{"square online", "online store"}},
	{SourceKiosk, []string{"kiosk", "point of sale", "pos"}},
}

// ClassifySource maps a raw origin label onto the closed Source set.
func ClassifySource(raw string) Source {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return SourceUnknown
	}
	for _, rule := range sourceRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				return rule.source
			}
		}
	}

	return SourceUnknown
}
