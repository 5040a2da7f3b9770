package services

import (
	"regexp"
	"strconv"
)

// versionRegexp captures, in one pass, engine displacement ("1.6", "2.0d"),
// power in kW ("120kW") and power in CV ("163 CV"). The three alternatives
// are mutually exclusive per match.
var versionRegexp = regexp.MustCompile(`(?i)\b(\d\.\d)[a-z]?\b|(\d+)\s*kW|(\d+)\s*CV`)

// VersionInfo is what can be recovered from the free-text version field.
type VersionInfo struct {
	CylindersCapacity float64
	KW                float64
	CV                float64
}

// ExtractVersionInfo scans a free-text version such as "1.6 TDI 120kW 163CV".
// Values not found stay 0; when a class matches more than once the last
// match wins.
func ExtractVersionInfo(version string) VersionInfo {
	var info VersionInfo
	if version == "" {
		return info
	}

	for _, m := range versionRegexp.FindAllStringSubmatch(version, -1) {
		if m[1] != "" {
			info.CylindersCapacity = parseOrZero(m[1])
		}
		if m[2] != "" {
			info.KW = parseOrZero(m[2])
		}
		if m[3] != "" {
			info.CV = parseOrZero(m[3])
		}
	}
	return info
}

func parseOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
