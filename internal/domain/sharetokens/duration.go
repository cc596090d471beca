package sharetokens

import (
	"strconv"
	"strings"
	"time"
)

// DefaultShareDuration aplica cuando el especificador es inválido o falta.
const DefaultShareDuration = 7 * 24 * time.Hour

// parseDurationSpec interpreta el especificador de vigencia de un token:
// "7d", "24h", "7 days", "24 hours", "1 day", "1 hour" o un número pelado
// (horas, admite fracciones). Un valor inválido o vacío cae al default de
// 7 días, igual que el sistema original; nunca es error.
func parseDurationSpec(spec string) time.Duration {
	spec = strings.ToLower(strings.TrimSpace(spec))
	if spec == "" {
		return DefaultShareDuration
	}

	// "N days" / "N hours" (y singular)
	if fields := strings.Fields(spec); len(fields) == 2 {
		value, err := strconv.ParseFloat(fields[0], 64)
		if err == nil && value > 0 {
			switch strings.TrimSuffix(fields[1], "s") {
			case "day":
				return time.Duration(value * 24 * float64(time.Hour))
			case "hour":
				return time.Duration(value * float64(time.Hour))
			}
		}
		return DefaultShareDuration
	}

	// "Nd" / "Nh"
	if len(spec) > 1 {
		unit := spec[len(spec)-1]
		if unit == 'd' || unit == 'h' {
			value, err := strconv.ParseFloat(spec[:len(spec)-1], 64)
			if err == nil && value > 0 {
				if unit == 'd' {
					return time.Duration(value * 24 * float64(time.Hour))
				}
				return time.Duration(value * float64(time.Hour))
			}
			return DefaultShareDuration
		}
	}

	// Número pelado: horas.
	if value, err := strconv.ParseFloat(spec, 64); err == nil && value > 0 {
		return time.Duration(value * float64(time.Hour))
	}

	return DefaultShareDuration
}
