package notify

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/stepweaver/silent-auction/internal/auction"
	"github.com/stepweaver/silent-auction/internal/store"
)

var funcs = template.FuncMap{
	"money": func(cents int64) string {
		return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
	},
}

var winnerDigestTmpl = template.Must(template.New("winner_digest").Funcs(funcs).Parse(
	`Congratulations! You won the following item{{if gt (len .Wins) 1}}s{{end}}:

{{range .Wins}}  - {{.Item.Title}} for {{money .Bid.Amount}}
{{end}}
{{- if .Settings.PaymentInstructions}}
Payment: {{.Settings.PaymentInstructions}}
{{end}}
{{- if .Settings.PickupInstructions}}
Pickup: {{.Settings.PickupInstructions}}
{{end}}
{{- if .Settings.ContactEmail}}
Questions? Contact {{.Settings.ContactEmail}}.
{{end}}`))

var adminListTmpl = template.Must(template.New("admin_winners_list").Funcs(funcs).Parse(
	`Auction results:

{{range .Winners}}{{if .Bid}}  - {{.Item.Title}}: {{.Bid.BidderAlias}} <{{.Bid.BidderEmail}}> at {{money .Bid.Amount}}{{if .Item.CreatedBy}} (donated by {{.Item.CreatedBy}}){{end}}
{{else}}  - {{.Item.Title}}: no bids (unsold){{if .Item.CreatedBy}} (donated by {{.Item.CreatedBy}}){{end}}
{{end}}{{end}}`))

type digestData struct {
	Wins     []auction.Winner
	Settings *store.Settings
}

// renderWinnerDigest builds the consolidated email body for one bidder.
func renderWinnerDigest(wins []auction.Winner, settings *store.Settings) (string, error) {
	var b strings.Builder
	if err := winnerDigestTmpl.Execute(&b, digestData{Wins: wins, Settings: settings}); err != nil {
		return "", fmt.Errorf("rendering winner digest: %w", err)
	}
	return b.String(), nil
}

// renderAdminList builds the admin summary covering every item, sold
// or not.
func renderAdminList(winners []auction.Winner) (string, error) {
	var b strings.Builder
	if err := adminListTmpl.Execute(&b, struct{ Winners []auction.Winner }{winners}); err != nil {
		return "", fmt.Errorf("rendering admin winners list: %w", err)
	}
	return b.String(), nil
}
