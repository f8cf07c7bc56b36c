package confidence

import "strings"

// freemailDomains are public consumer mail providers. Votes concentrated on
// one of these do not indicate a single organization.
var freemailDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"yahoo.co.uk":    {},
	"ymail.com":      {},
	"outlook.com":    {},
	"hotmail.com":    {},
	"hotmail.co.uk":  {},
	"live.com":       {},
	"msn.com":        {},
	"icloud.com":     {},
	"me.com":         {},
	"mac.com":        {},
	"aol.com":        {},
	"proton.me":      {},
	"protonmail.com": {},
	"gmx.com":        {},
	"gmx.de":         {},
	"gmx.net":        {},
	"web.de":         {},
	"yandex.ru":      {},
	"yandex.com":     {},
	"mail.ru":        {},
	"zoho.com":       {},
	"fastmail.com":   {},
	"qq.com":         {},
	"163.com":        {},
	"126.com":        {},
	"hey.com":        {},
	"tutanota.com":   {},
}

// IsFreemail reports whether domain is a known consumer mail provider.
func IsFreemail(domain string) bool {
	_, ok := freemailDomains[strings.ToLower(strings.TrimSpace(domain))]
	return ok
}
