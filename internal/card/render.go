package card

import (
	"bytes"
	"html/template"
	"io"
)

const cardStyle = `
.cheapest-period-info {
	font-size: 1.1em;
	line-height: 1.5;
}
.highlight {
	font-weight: bold;
}
.price-low { color: green; }
.price-medium { color: orange; }
.price-high { color: red; }
.price-negative { color: blue; }
.no-period { color: orange; }
.period-details {
	margin-top: 8px;
}
`

var cardTemplate = template.Must(template.New("card").Parse(`<div class="cheapest-period-card" data-card="{{.Name}}">
<style>{{.Style}}</style>
<h1 class="card-header">{{.Title}}</h1>
<div class="card-content" style="padding: 0 16px 16px">
{{- with .Result}}
{{- if eq .Outcome "best"}}
<div class="cheapest-period-info {{.Tier}}">
	<p><span class="highlight">Cheapest {{$.Duration}} hour period:</span></p>
	<div class="period-details">
		<span>Start: {{.Display.StartDate}}, {{.Display.StartTime}}</span><br>
		<span>End: {{with .Display.EndDate}}{{.}}, {{end}}{{.Display.EndTime}}</span><br>
		<span>Starts in: {{.Display.TimeUntil}}</span><br>
		<span>Average Price: {{.Display.Price}}{{.Display.Unit}}</span>
	</div>
</div>
{{- else if eq .Outcome "invalid_duration"}}
<div style="color: red;">{{.Message}}</div>
{{- else}}
<p class="no-period">{{.Message}}</p>
{{- end}}
{{- else}}
<p class="no-period">Waiting for rate data.</p>
{{- end}}
</div>
</div>
`))

type cardView struct {
	Name     string
	Title    string
	Style    template.CSS
	Duration string
	Result   *Result
}

// Render writes the card fragment for the latest result
func (c *Card) Render(w io.Writer) error {
	view := cardView{
		Name:  c.cfg.Name,
		Title: c.cfg.Title,
		Style: template.CSS(cardStyle),
	}
	if r, ok := c.Last(); ok {
		view.Result = &r
		view.Duration = formatNumber(r.DurationHours)
	}
	return cardTemplate.Execute(w, view)
}

// HTML returns the rendered card fragment
func (c *Card) HTML() (template.HTML, error) {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
