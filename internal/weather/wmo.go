package weather

// wmoDescriptions covers the WMO 4677 subset used by forecast APIs.
var wmoDescriptions = map[int]string{
	0:  "clear sky",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "fog",
	48: "depositing rime fog",
	51: "light drizzle",
	53: "moderate drizzle",
	55: "dense drizzle",
	56: "light freezing drizzle",
	57: "dense freezing drizzle",
	61: "slight rain",
	63: "moderate rain",
	65: "heavy rain",
	66: "light freezing rain",
	67: "heavy freezing rain",
	71: "slight snow fall",
	73: "moderate snow fall",
	75: "heavy snow fall",
	77: "snow grains",
	80: "slight rain showers",
	81: "moderate rain showers",
	82: "violent rain showers",
	85: "slight snow showers",
	86: "heavy snow showers",
	95: "thunderstorm",
	96: "thunderstorm with slight hail",
	99: "thunderstorm with heavy hail",
}

// ConditionFromWMO maps a WMO weather interpretation code to the canonical
// condition and a human-readable description.
func ConditionFromWMO(code int) (Condition, string) {
	desc, ok := wmoDescriptions[code]
	if !ok {
		return ConditionUnknown, "unknown"
	}

	switch {
	case code == 0:
		return ConditionClear, desc
	case code == 1 || code == 2:
		return ConditionPartlyCloudy, desc
	case code == 3:
		return ConditionCloudy, desc
	case code == 45 || code == 48:
		return ConditionFog, desc
	case code >= 51 && code <= 57:
		return ConditionDrizzle, desc
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return ConditionRain, desc
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return ConditionSnow, desc
	case code >= 95:
		return ConditionThunderstorm, desc
	default:
		return ConditionUnknown, desc
	}
}
