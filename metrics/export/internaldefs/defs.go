// Package internaldefs holds the metric name table shared by the exporters.
// It exists so the Prometheus and OpenTelemetry exporters agree on names
// without importing each other.
package internaldefs

import (
	authcore "github.com/calyptra/authcore"
)

type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authcore.MetricAuthSuccess, Name: "authcore_auth_success_total", Help: "Tokens that authenticated successfully."},
	{ID: authcore.MetricAuthFailure, Name: "authcore_auth_failure_total", Help: "Tokens rejected for decode or type reasons."},
	{ID: authcore.MetricAuthRevoked, Name: "authcore_auth_revoked_total", Help: "Tokens rejected by the revocation denylist."},
	{ID: authcore.MetricRevocationFailOpen, Name: "authcore_revocation_fail_open_total", Help: "Revocation reads that failed open."},
	{ID: authcore.MetricOriginMismatch, Name: "authcore_origin_mismatch_total", Help: "Tokens rejected by origin binding."},
	{ID: authcore.MetricTokensIssued, Name: "authcore_tokens_issued_total", Help: "Token triples minted."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Rejected logins."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Logout operations."},
	{ID: authcore.MetricLogoutPartial, Name: "authcore_logout_partial_total", Help: "Logouts that left revocation writes incomplete."},
	{ID: authcore.MetricOTPIssued, Name: "authcore_otp_issued_total", Help: "One-time passcodes generated."},
	{ID: authcore.MetricOTPVerified, Name: "authcore_otp_verified_total", Help: "Successful passcode verifications."},
	{ID: authcore.MetricOTPFailure, Name: "authcore_otp_failure_total", Help: "Failed passcode verifications."},
	{ID: authcore.MetricOTPRateLimited, Name: "authcore_otp_rate_limited_total", Help: "Rate-limited passcode operations."},
	{ID: authcore.MetricOTPMasterUsed, Name: "authcore_otp_master_used_total", Help: "Verifications satisfied by the master passcode."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricAuthLatency, Name: "authcore_auth_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, +Inf last.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket for backends that cannot carry an
// le label, index-aligned with the buckets including +Inf.
var HistogramBoundSuffix = []string{
	"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed bucket
// count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to cumulative counts, the
// form both exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
