package property

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DisplayZone is the time zone open houses are shown in.
const DisplayZone = "America/New_York"

var printer = message.NewPrinter(language.AmericanEnglish)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatMoney renders an amount without cents, e.g. "$1,250,000".
func FormatMoney(m Money) string {
	amount := printer.Sprint(number.Decimal(m.Amount, number.MaxFractionDigits(0)))
	if sym, ok := currencySymbols[strings.ToUpper(m.Currency)]; ok {
		return sym + amount
	}
	return strings.ToUpper(m.Currency) + " " + amount
}

// AddressLine renders "street, city, state zip".
func AddressLine(a Address) string {
	return fmt.Sprintf("%s, %s, %s %s", a.Street, a.City, a.State, a.Zip)
}

// FormatOpenHouse renders "Sat, May 04, 2024 · 1:00 PM–3:00 PM" in DisplayZone.
func FormatOpenHouse(oh OpenHouse) (string, error) {
	loc, err := time.LoadLocation(DisplayZone)
	if err != nil {
		return "", err
	}
	start, err := time.Parse(time.RFC3339, oh.StartISO)
	if err != nil {
		return "", fmt.Errorf("invalid open house start %q: %w", oh.StartISO, err)
	}
	start = start.In(loc)

	line := start.Format("Mon, Jan 02, 2006") + " · " + start.Format("3:04 PM")
	if oh.EndISO == "" {
		return line, nil
	}
	end, err := time.Parse(time.RFC3339, oh.EndISO)
	if err != nil {
		return "", fmt.Errorf("invalid open house end %q: %w", oh.EndISO, err)
	}
	return line + "–" + end.In(loc).Format("3:04 PM"), nil
}
