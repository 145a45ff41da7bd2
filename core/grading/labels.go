package grading

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/submission"
)

// Verdict is a parsed grade label.
type Verdict struct {
	Label      string            // as entered by the teacher, trimmed
	Status     submission.Status // resulting submission status
	Approved   bool              // the ledger records 100
	PurgeFiles bool              // uploaded files are deleted, a fresh submit is required
}

type labelRule struct {
	status submission.Status
	purge  bool
}

// keys are normalized with normalizeLabel
var labelRules = map[string]labelRule{
	"зачет":                  {status: submission.StatusApproved},
	"сдано":                  {status: submission.StatusApproved},
	"не зачтено":             {status: submission.StatusRejected, purge: true},
	"не допущен":             {status: submission.StatusRejected},
	"не сдано":               {status: submission.StatusRejected},
	"принят на рассмотрение": {status: submission.StatusInReview},
}

var errUnknownLabel = errors.New("unknown grade label")

func normalizeLabel(label string) string {
	label = strings.ToLower(strings.Join(strings.Fields(label), " "))
	return strings.ReplaceAll(label, "ё", "е")
}

// ParseLabel maps a teacher's grade label to a Verdict.
// Unknown labels become StatusSubmitted, or a ValidationError when strict.
func ParseLabel(label string, strict bool) (Verdict, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Verdict{}, core.NewFieldError("status", "this field is required")
	}

	v := Verdict{Label: label, Status: submission.StatusSubmitted}
	rule, ok := labelRules[normalizeLabel(label)]
	if !ok {
		if strict {
			return Verdict{}, core.NewValidationError(errUnknownLabel, core.FieldError{Field: "status", Error: errUnknownLabel.Error()})
		}
		return v, nil
	}
	v.Status = rule.status
	v.Approved = rule.status == submission.StatusApproved
	v.PurgeFiles = rule.purge
	return v, nil
}
