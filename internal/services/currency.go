package services

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// currencyFormatter renders integer amounts with locale-aware digit grouping.
// When the locale is unknown, or the printer fails, it falls back to grouping
// thousands with '.'.
type currencyFormatter struct {
	printer *message.Printer
}

func newCurrencyFormatter(locale string) *currencyFormatter {
	if locale == "" {
		return &currencyFormatter{}
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return &currencyFormatter{}
	}
	return &currencyFormatter{printer: message.NewPrinter(tag)}
}

func (f *currencyFormatter) format(amount int64) (out string) {
	if f == nil || f.printer == nil {
		return groupThousands(amount, '.')
	}
	defer func() {
		if r := recover(); r != nil {
			out = groupThousands(amount, '.')
		}
	}()
	return f.printer.Sprintf("%d", amount)
}

func groupThousands(amount int64, sep byte) string {
	digits := strconv.FormatInt(amount, 10)
	sign := ""
	if digits[0] == '-' {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}

	out := make([]byte, 0, len(digits)+len(digits)/3)
	lead := len(digits) % 3
	if lead > 0 {
		out = append(out, digits[:lead]...)
	}
	for i := lead; i < len(digits); i += 3 {
		if len(out) > 0 {
			out = append(out, sep)
		}
		out = append(out, digits[i:i+3]...)
	}
	return sign + string(out)
}
