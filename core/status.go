package core

import "strings"

// Status is the canonical approval status of reviewable requests.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

var (
	ErrInvalidStatus = NewError(KindBadData, "invalid status")

	statusAliases = map[string]Status{
		"pending":   StatusPending,
		"pendiente": StatusPending,
		"approved":  StatusApproved,
		"aprobada":  StatusApproved,
		"aprobado":  StatusApproved,
		"rejected":  StatusRejected,
		"rechazada": StatusRejected,
		"rechazado": StatusRejected,
	}

	statusSpanish = map[Status]string{
		StatusPending:  "Pendiente",
		StatusApproved: "Aprobada",
		StatusRejected: "Rechazada",
	}
)

// ParseStatus maps any known spelling of a status (english or spanish, any case) to its canonical value.
func ParseStatus(s string) (Status, error) {
	if st, ok := statusAliases[CleanString(s, true /* lower */)]; ok {
		return st, nil
	}
	return "", ErrInvalidStatus
}

// ParseStatuses parses a list of statuses, ignoring blank entries.
func ParseStatuses(ss []string) ([]Status, error) {
	var sts []Status
	for _, s := range ss {
		if strings.TrimSpace(s) == "" {
			continue
		}
		st, err := ParseStatus(s)
		if err != nil {
			return nil, err
		}
		sts = append(sts, st)
	}
	return sts, nil
}

func (s Status) Valid() bool {
	_, ok := statusSpanish[s]
	return ok
}

// Spanish returns the label used in notifications and spreadsheets.
func (s Status) Spanish() string {
	return statusSpanish[s]
}

func (s Status) IsFinal() bool {
	return s == StatusApproved || s == StatusRejected
}

func StatusIn(s Status, sts []Status) bool {
	if len(sts) == 0 {
		return true
	}
	for _, st := range sts {
		if st == s {
			return true
		}
	}
	return false
}
