package internaldefs

import (
	"strconv"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
)

const (
	// LatencyName is the authenticate latency histogram.
	LatencyName = "gsa_authenticate_duration_seconds"
	LatencyHelp = "Time spent validating access tokens against their session."

	AuditDroppedName = "gsa_audit_events_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// Series binds one engine counter to a label value of its family.
type Series struct {
	ID    goSessionAuth.MetricID
	Value string
}

// Family is an exported counter. Families with an empty Label have exactly
// one series and render without labels.
type Family struct {
	Name   string
	Help   string
	Label  string
	Series []Series
}

// Families covers every engine counter exactly once.
var Families = []Family{
	{
		Name: "gsa_login_total", Help: "Login attempts by outcome.", Label: "outcome",
		Series: []Series{
			{goSessionAuth.MetricLoginSuccess, "success"},
			{goSessionAuth.MetricLoginFailure, "failure"},
			{goSessionAuth.MetricLoginTwoFactorRequired, "two_factor_required"},
			{goSessionAuth.MetricLoginRateLimited, "rate_limited"},
		},
	},
	{
		Name: "gsa_refresh_total", Help: "Refresh attempts by outcome.", Label: "outcome",
		Series: []Series{
			{goSessionAuth.MetricRefreshSuccess, "success"},
			{goSessionAuth.MetricRefreshInvalidToken, "invalid_token"},
			{goSessionAuth.MetricRefreshSessionNotFound, "session_not_found"},
			{goSessionAuth.MetricRefreshFingerprintMismatch, "fingerprint_mismatch"},
			{goSessionAuth.MetricRefreshSessionExpired, "session_expired"},
			{goSessionAuth.MetricRefreshRecovered, "recovered"},
			{goSessionAuth.MetricRefreshReuseDetected, "reuse_detected"},
		},
	},
	{
		Name: "gsa_session_events_total", Help: "Session lifecycle events.", Label: "event",
		Series: []Series{
			{goSessionAuth.MetricSessionCreated, "created"},
			{goSessionAuth.MetricSessionReused, "reused"},
			{goSessionAuth.MetricSessionDeleted, "deleted"},
		},
	},
	{
		Name: "gsa_logout_total", Help: "Logout requests by scope.", Label: "scope",
		Series: []Series{
			{goSessionAuth.MetricLogout, "session"},
			{goSessionAuth.MetricLogoutAll, "all"},
		},
	},
	{
		Name: "gsa_two_factor_total", Help: "Two-factor code and toggle events.", Label: "event",
		Series: []Series{
			{goSessionAuth.MetricTwoFactorCodeSent, "code_sent"},
			{goSessionAuth.MetricTwoFactorCodeVerified, "code_verified"},
			{goSessionAuth.MetricTwoFactorCodeFailed, "code_failed"},
			{goSessionAuth.MetricTwoFactorEnabled, "enabled"},
			{goSessionAuth.MetricTwoFactorDisabled, "disabled"},
		},
	},
	{
		Name: "gsa_registration_total", Help: "Registrations by outcome.", Label: "outcome",
		Series: []Series{
			{goSessionAuth.MetricRegistrationSuccess, "success"},
			{goSessionAuth.MetricRegistrationDuplicate, "duplicate"},
		},
	},
	{
		Name: "gsa_email_verification_total", Help: "Email verification events.", Label: "event",
		Series: []Series{
			{goSessionAuth.MetricEmailVerificationSent, "sent"},
			{goSessionAuth.MetricEmailVerificationSuccess, "success"},
			{goSessionAuth.MetricEmailVerificationFailure, "failure"},
		},
	},
	{
		Name: "gsa_password_change_total", Help: "Password changes by outcome.", Label: "outcome",
		Series: []Series{
			{goSessionAuth.MetricPasswordChangeSuccess, "success"},
			{goSessionAuth.MetricPasswordChangeReuseRejected, "reuse_rejected"},
		},
	},
	{
		Name: "gsa_password_reset_total", Help: "Password reset events.", Label: "event",
		Series: []Series{
			{goSessionAuth.MetricPasswordResetRequest, "requested"},
			{goSessionAuth.MetricPasswordResetSuccess, "success"},
			{goSessionAuth.MetricPasswordResetFailure, "failure"},
		},
	},
	{
		Name: "gsa_google_auth_total", Help: "Google sign-ins by outcome.", Label: "outcome",
		Series: []Series{
			{goSessionAuth.MetricGoogleAuthSuccess, "success"},
			{goSessionAuth.MetricGoogleAuthFailure, "failure"},
		},
	},
	{
		Name: "gsa_rate_limit_hits_total", Help: "Requests denied by a rate limiter.",
		Series: []Series{{ID: goSessionAuth.MetricRateLimitHit}},
	},
	{
		Name: "gsa_email_delivery_failures_total", Help: "Emails the sender failed to deliver.",
		Series: []Series{{ID: goSessionAuth.MetricEmailDeliveryFailure}},
	},
}

// Bucket is one cumulative histogram bucket. Le is the upper bound in
// seconds formatted for exposition, "+Inf" for the overflow bucket.
type Bucket struct {
	Le    string
	Count uint64
}

// LatencyBuckets turns the per-bucket counts of a snapshot into cumulative
// buckets. Missing counts read as zero.
func LatencyBuckets(counts []uint64) []Bucket {
	out := make([]Bucket, 0, len(goSessionAuth.LatencyBuckets)+1)
	var running uint64
	for i := 0; i <= len(goSessionAuth.LatencyBuckets); i++ {
		if i < len(counts) {
			running += counts[i]
		}
		le := "+Inf"
		if i < len(goSessionAuth.LatencyBuckets) {
			le = strconv.FormatFloat(goSessionAuth.LatencyBuckets[i].Seconds(), 'g', -1, 64)
		}
		out = append(out, Bucket{Le: le, Count: running})
	}
	return out
}
