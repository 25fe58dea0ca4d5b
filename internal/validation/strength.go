// Package validation checks candidate secrets against a strength policy
// before they enter the vault. Weak secrets are reported, never blocked
// silently: every failed check lands in the audit stream as a
// compliance event so the monitoring rules can see repeated weak-secret
// attempts.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/vaultwatch/vaultwatch/internal/audit"
	"github.com/vaultwatch/vaultwatch/internal/logging"
	"github.com/vaultwatch/vaultwatch/internal/secure"
)

// Policy constrains what the vault accepts as a secret value.
type Policy struct {
	// MinLength is the minimum number of bytes. Zero means 12.
	MinLength int `yaml:"min_length,omitempty"`

	// MinClasses is how many character classes (lower, upper, digit,
	// symbol) must appear. Zero means 3.
	MinClasses int `yaml:"min_classes,omitempty"`

	// Format, when set, is a regular expression the value must match.
	// Used for structured secrets such as API tokens.
	Format string `yaml:"format,omitempty"`

	// DenyList holds exact values that are always rejected, typically
	// the top entries of a breached-password list.
	DenyList []string `yaml:"deny_list,omitempty"`
}

// DefaultPolicy is applied when the configuration carries none.
func DefaultPolicy() Policy {
	return Policy{MinLength: 12, MinClasses: 3}
}

// Result reports the outcome of one validation.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// SecretValidator applies a Policy to candidate secrets. The audit
// logger may be nil in contexts without a pipeline.
type SecretValidator struct {
	policy   Policy
	format   *regexp.Regexp
	diag     *logging.Logger
	auditLog *audit.Logger
}

// NewSecretValidator compiles the policy. An invalid Format pattern is
// a construction error, not a per-check warning.
func NewSecretValidator(policy Policy, auditLog *audit.Logger, diag *logging.Logger) (*SecretValidator, error) {
	if policy.MinLength <= 0 {
		policy.MinLength = 12
	}
	if policy.MinClasses <= 0 {
		policy.MinClasses = 3
	}
	if policy.MinClasses > 4 {
		policy.MinClasses = 4
	}
	if diag == nil {
		diag = logging.New(false, false)
	}

	v := &SecretValidator{policy: policy, diag: diag, auditLog: auditLog}
	if policy.Format != "" {
		re, err := regexp.Compile(policy.Format)
		if err != nil {
			return nil, fmt.Errorf("invalid format pattern %q: %w", policy.Format, err)
		}
		v.format = re
	}
	return v, nil
}

// ValidateSecret checks the value held by a secure string against the
// policy. The plaintext is zeroed before this returns; messages carry
// only a masked rendering.
func (v *SecretValidator) ValidateSecret(name string, value *secure.SecureString) (*Result, error) {
	raw, err := value.Bytes()
	if err != nil {
		return nil, err
	}
	defer zero(raw)

	result := v.check(string(raw))
	v.report(name, result)
	return result, nil
}

// ValidateReplacement checks a candidate that replaces an existing
// secret. On top of the policy it requires the value to change.
func (v *SecretValidator) ValidateReplacement(name string, candidate, current *secure.SecureString) (*Result, error) {
	rawNew, err := candidate.Bytes()
	if err != nil {
		return nil, err
	}
	defer zero(rawNew)

	rawOld, err := current.Bytes()
	if err != nil {
		return nil, err
	}
	defer zero(rawOld)

	result := v.check(string(rawNew))
	if string(rawNew) == string(rawOld) {
		result.Valid = false
		result.Errors = append(result.Errors, "new value must differ from the current value")
	}
	v.report(name, result)
	return result, nil
}

func (v *SecretValidator) check(value string) *Result {
	result := &Result{Valid: true}

	if len(value) < v.policy.MinLength {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("value is %d bytes, policy requires at least %d", len(value), v.policy.MinLength))
	}

	if classes := characterClasses(value); classes < v.policy.MinClasses {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("value uses %d character classes, policy requires %d", classes, v.policy.MinClasses))
	}

	for _, denied := range v.policy.DenyList {
		if strings.EqualFold(value, denied) {
			result.Valid = false
			result.Errors = append(result.Errors, "value appears on the deny list")
			break
		}
	}

	if v.format != nil && !v.format.MatchString(value) {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("value %s does not match required format %q", maskValue(value), v.policy.Format))
	}

	if len(value) >= v.policy.MinLength && len(value) < v.policy.MinLength+4 {
		result.Warnings = append(result.Warnings, "value barely clears the minimum length")
	}

	return result
}

// report writes the compliance outcome to the audit stream. The secret
// name is a label, never material.
func (v *SecretValidator) report(name string, result *Result) {
	if v.auditLog == nil {
		return
	}
	if !result.Valid {
		// Entry names can reveal what the vault holds; redact them in
		// stderr diagnostics. The audit trail records them as resources.
		v.diag.Warn("secret %s rejected by strength policy: %s",
			logging.Secret(name), strings.Join(result.Errors, "; "))
	}
	v.auditLog.LogComplianceEvent("secret_policy", name, result.Valid,
		audit.WithResource(name))
}

// characterClasses counts which of lower, upper, digit and symbol occur.
func characterClasses(value string) int {
	var lower, upper, digit, symbol bool
	for _, r := range value {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	count := 0
	for _, present := range []bool{lower, upper, digit, symbol} {
		if present {
			count++
		}
	}
	return count
}

// maskValue renders a value safely for log messages.
func maskValue(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:3] + "***" + value[len(value)-3:]
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
