// Package contact builds the call and SMS links offered next to a due summary.
package contact

import (
	"net/url"
	"strconv"
	"strings"

	"tuition/internal/core"
	"tuition/internal/ledger"
)

// Template placeholders.
const (
	PlaceholderInstitute = "{INSTITUTE_NAME}"
	PlaceholderStudent   = "{STUDENT_NAME}"
	PlaceholderBatch     = "{BATCH_NAME}"
	PlaceholderPaid      = "{PAID_MONTHS}"
	PlaceholderDue       = "{DUE_MONTHS}"
	PlaceholderTotalDue  = "{TOTAL_DUE_AMOUNT}"
)

const (
	DefaultTemplate      = core.DefaultSMSTemplate
	DefaultInstituteName = core.DefaultInstituteName
)

// Vars are the values substituted into a template.
type Vars struct {
	InstituteName string
	StudentName   string
	BatchName     string
	PaidMonths    []string
	DueMonths     []string
	TotalDue      int64
}

// Actions are the links shown for one student.
type Actions struct {
	Tel     string `json:"tel"`
	SMS     string `json:"sms"`
	Message string `json:"message"`
}

// Render replaces every occurrence of each placeholder. Month lists are
// joined with ", ".
func Render(template string, v Vars) string {
	if template == "" {
		template = DefaultTemplate
	}
	r := strings.NewReplacer(
		PlaceholderInstitute, v.InstituteName,
		PlaceholderStudent, v.StudentName,
		PlaceholderBatch, v.BatchName,
		PlaceholderPaid, strings.Join(v.PaidMonths, ", "),
		PlaceholderDue, strings.Join(v.DueMonths, ", "),
		PlaceholderTotalDue, strconv.FormatInt(v.TotalDue, 10),
	)
	return r.Replace(template)
}

// TelURI returns a tel: link for mobile.
func TelURI(mobile string) string {
	return "tel:" + normalize(mobile)
}

// SMSURI returns an sms: link with body percent-encoded.
func SMSURI(mobile, body string) string {
	enc := strings.ReplaceAll(url.QueryEscape(body), "+", "%20")
	return "sms:" + normalize(mobile) + "?body=" + enc
}

// ForSummary renders the reminder for one student's due summary.
func ForSummary(settings core.Settings, s core.Student, batchName string, sum ledger.StudentSummary) Actions {
	settings = settings.WithDefaults()
	msg := Render(settings.SMSTemplate, Vars{
		InstituteName: settings.InstituteName,
		StudentName:   s.Name,
		BatchName:     batchName,
		PaidMonths:    sum.PaidMonths,
		DueMonths:     sum.DueMonths,
		TotalDue:      sum.DueTotal,
	})
	return Actions{
		Tel:     TelURI(s.Mobile),
		SMS:     SMSURI(s.Mobile, msg),
		Message: msg,
	}
}

// normalize drops spaces and dashes people type into phone numbers.
func normalize(mobile string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(mobile))
}
