package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyComponent  = "component"
	KeyProfileID  = "profile_id"
	KeyPivotID    = "pivot_id"
	KeyCycleID    = "cycle_id"
	KeyPath       = "path"
	KeyReason     = "reason"
	KeyOutcome    = "outcome"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Component(name string) slog.Attr  { return slog.String(KeyComponent, name) }
func ProfileID(id uint64) slog.Attr    { return slog.Uint64(KeyProfileID, id) }
func PivotID(id uint64) slog.Attr      { return slog.Uint64(KeyPivotID, id) }
func CycleID(id string) slog.Attr      { return slog.String(KeyCycleID, id) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Reason(r string) slog.Attr        { return slog.String(KeyReason, r) }
func Outcome(o string) slog.Attr       { return slog.String(KeyOutcome, o) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
