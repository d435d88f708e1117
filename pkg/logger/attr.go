package logger

import (
	"log/slog"
	"time"
)

// Error records err under the key "error". A nil error yields an empty Attr
// so callers can pass it unconditionally.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func UserID(id int64) slog.Attr {
	return slog.Int64("user_id", id)
}

// Tier records a plan tier. Accepts plans.Tier or any string-like value.
func Tier[T ~string](tier T) slog.Attr {
	return slog.String("tier", string(tier))
}

func Dimension[T ~string](d T) slog.Attr {
	return slog.String("dimension", string(d))
}

func Kind[T ~string](k T) slog.Attr {
	return slog.String("kind", string(k))
}

func Backend[T ~string](b T) slog.Attr {
	return slog.String("backend", string(b))
}

// JobID records the remote job identifier. Empty ids are dropped.
func JobID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("job_id", id)
}

func ReservationID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("reservation_id", id)
}

func CostUSD(v float64) slog.Attr {
	return slog.Float64("cost_usd", v)
}

// State records a dispatcher state name.
func State[T ~string](s T) slog.Attr {
	return slog.String("state", string(s))
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}
