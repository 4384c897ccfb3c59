// Package city normalizes city names so dispatch eligibility survives the
// spelling variants that arrive from different client builds.
package city

import "strings"

// aliases maps lowercased variants to the canonical Arabic city name used
// in stored requests and driver records.
var aliases = map[string]string{
	"baghdad":  "بغداد",
	"bagdad":   "بغداد",
	"بقداد":    "بغداد",
	"babil":    "بابل",
	"babylon":  "بابل",
	"hilla":    "بابل",
	"الحلة":    "بابل",
	"basra":    "البصرة",
	"basrah":   "البصرة",
	"بصرة":     "البصرة",
	"najaf":    "النجف",
	"نجف":      "النجف",
	"karbala":  "كربلاء",
	"kerbala":  "كربلاء",
	"mosul":    "الموصل",
	"موصل":     "الموصل",
	"erbil":    "أربيل",
	"arbil":    "أربيل",
	"اربيل":    "أربيل",
	"kirkuk":   "كركوك",
	"anbar":    "الأنبار",
	"الانبار":  "الأنبار",
	"ramadi":   "الأنبار",
	"diyala":   "ديالى",
	"ديالا":    "ديالى",
	"nasiriya": "ذي قار",
	"الناصرية": "ذي قار",
}

// Canonical trims v and maps known variants to one canonical form.
// Unknown names pass through trimmed so two clients sending the same
// unknown spelling still match each other.
func Canonical(v string) string {
	t := strings.TrimSpace(v)
	if c, ok := aliases[strings.ToLower(t)]; ok {
		return c
	}
	return t
}

// Match reports whether two city names refer to the same city.
func Match(a, b string) bool {
	return Canonical(a) != "" && Canonical(a) == Canonical(b)
}
