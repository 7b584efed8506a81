package diff

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var labels = map[Field]string{
	FieldHours:         "Hours",
	FieldHourlyRate:    "Hourly rate",
	FieldQuantity:      "Quantity",
	FieldUnitPrice:     "Unit price",
	FieldTotal:         "Total",
	FieldName:          "Name",
	FieldDescription:   "Description",
	FieldNotes:         "Notes",
	FieldCategory:      "Category",
	FieldScheduleStart: "Start date",
	FieldScheduleEnd:   "End date",
}

func (v Value) format(p *message.Printer) string {
	switch {
	case v.Number != nil:
		return p.Sprint(number.Decimal(*v.Number, number.MaxFractionDigits(2)))
	case v.Text != nil:
		return p.Sprintf("%q", *v.Text)
	case v.Time != nil:
		return v.Time.Format("2006-01-02")
	default:
		return ""
	}
}

// String renders the line in English, e.g. `Hours: 10 → 12`.
func (l Line) String() string {
	printer := message.NewPrinter(language.English)
	label, ok := labels[l.Field]
	if !ok {
		label = string(l.Field)
	}
	if l.Old.IsZero() {
		return printer.Sprintf("%s: set to %s", label, l.New.format(printer))
	}
	return printer.Sprintf("%s: %s → %s", label, l.Old.format(printer), l.New.format(printer))
}
