package render

import "strings"

const divider = "───────────────"

// Text renders the payload as Slack mrkdwn. It is used as the notification
// fallback and by clients that do not render blocks.
func (p Payload) Text() string {
	var b strings.Builder
	b.WriteString("*" + p.Header + "*\n")
	switch p.Kind {
	case KindScalar:
		b.WriteString("*" + p.Value + "*\n")
		for _, field := range p.Fields {
			b.WriteString(FieldLine(field) + "\n")
		}
	default:
		for i, row := range p.Rows {
			if i > 0 {
				b.WriteString(divider + "\n")
			}
			b.WriteString(RowText(row) + "\n")
		}
	}
	if p.Footer != "" {
		b.WriteString("_" + p.Footer + "_\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func FieldLine(field Field) string {
	return "*" + field.Name + ":* " + field.Value
}

func RowText(row []Field) string {
	lines := make([]string, 0, len(row))
	for _, field := range row {
		lines = append(lines, FieldLine(field))
	}
	return strings.Join(lines, "\n")
}
