package comparative

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var actionTypes = map[string]string{
	"reboisement":                     "Reboisement",
	"cmd":                             "CMD",
	"compensation mise en defens":     "CMD",
	"compensation":                    "CMD",
	"mise en defens":                  "CMD",
	"pfnl":                            "PFNL",
	"produits forestiers non ligneux": "PFNL",
	"sensibilisation":                 "Sensibilisation",
	"sylvopastoralisme":               "Sylvopastoralisme",
	"sylvo":                           "Sylvopastoralisme",
	"points d'eau":                    "Points_Eau",
	"points_eau":                      "Points_Eau",
	"points deau":                     "Points_Eau",
	"point d'eau":                     "Points_Eau",
	"pistes":                          "Pistes",
	"piste":                           "Pistes",
	"regeneration":                    "Regeneration",
	"apiculture":                      "Apiculture",
	"arboriculture":                   "Arboriculture",
	"equipement":                      "Equipement",
	"activites complementaires":       "Equipement",
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// NormalizeActionType maps a free-text action type onto the catalogue, ignoring case and accents.
// Unknown types are returned lower-cased with an upper-case first letter.
func NormalizeActionType(actionType string) string {
	trimmed := strings.TrimSpace(actionType)
	if trimmed == "" {
		return ""
	}
	key := strings.ToLower(foldAccents(trimmed))
	if mapped, ok := actionTypes[key]; ok {
		return mapped
	}
	lower := strings.ToLower(trimmed)
	r, size := utf8.DecodeRuneInString(lower)
	return string(unicode.ToUpper(r)) + lower[size:]
}

// IsKnownActionType reports whether the type maps onto the catalogue.
func IsKnownActionType(actionType string) bool {
	_, ok := actionTypes[strings.ToLower(foldAccents(strings.TrimSpace(actionType)))]
	return ok
}
