package model

import "strings"

type PropertyType string

const (
	Apartment  PropertyType = "apartment"
	House      PropertyType = "house"
	Commercial PropertyType = "commercial"
)

type TransactionType string

const (
	Rent      TransactionType = "rent"
	DailyRent TransactionType = "daily_rent"
	Sale      TransactionType = "sale"
)

type Currency string

const (
	AMD Currency = "AMD"
	USD Currency = "USD"
	RUB Currency = "RUB"
)

// Policy is the pets/children flag of a listing.
type Policy string

const (
	PolicyYes        Policy = "yes"
	PolicyNo         Policy = "no"
	PolicyNegotiable Policy = "negotiable"
	PolicyAny        Policy = "any"
)

const StatusActive = "active"

// Districts is the fixed list offered by the search form.
var Districts = []string{
	"Аджапняк",
	"Арабкир",
	"Аван",
	"Давташен",
	"Эребуни",
	"Кентрон",
	"Малатия-Себастия",
	"Нор Норк",
	"Нубарашен",
	"Шенгавит",
	"Канакер-Зейтун",
}

// Amenities is the tag vocabulary of the search form.
var Amenities = []string{
	"tv",
	"ac",
	"internet",
	"fridge",
	"stove",
	"washing_machine",
	"water_heater",
}

func (p PropertyType) Valid() bool {
	switch p {
	case Apartment, House, Commercial:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	switch t {
	case Rent, DailyRent, Sale:
		return true
	}
	return false
}

func (c Currency) Valid() bool {
	switch c {
	case AMD, USD, RUB:
		return true
	}
	return false
}

func (p Policy) Valid() bool {
	switch p {
	case PolicyYes, PolicyNo, PolicyNegotiable, PolicyAny:
		return true
	}
	return false
}

// sentinels mean "no constraint" for a filter field
var sentinels = map[string]struct{}{
	"":           {},
	"all":        {},
	"any":        {},
	"все районы": {},
}

// IsSentinel reports whether a filter value leaves its criterion inactive.
func IsSentinel(v string) bool {
	_, ok := sentinels[strings.ToLower(strings.TrimSpace(v))]
	return ok
}
