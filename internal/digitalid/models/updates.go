package models

import (
	"sort"
	"strings"
)

// UpdateField names a field that POST /update may change.
type UpdateField string

const (
	UpdateFieldNationality UpdateField = "nationality"
	UpdateFieldEntryDate   UpdateField = "entryDate"
	UpdateFieldExitDate    UpdateField = "exitDate"
	UpdateFieldStatus      UpdateField = "status"
)

// FieldUpdates is the closed set of record changes an update may carry.
// A nil pointer leaves the field untouched.
type FieldUpdates struct {
	Nationality *string
	EntryDate   *string
	ExitDate    *string
	Status      *RecordStatus
}

// IsEmpty reports whether no field is set.
func (u FieldUpdates) IsEmpty() bool {
	return u.Nationality == nil && u.EntryDate == nil && u.ExitDate == nil && u.Status == nil
}

// Fields lists the set fields in a stable order.
func (u FieldUpdates) Fields() []UpdateField {
	var fields []UpdateField
	if u.Nationality != nil {
		fields = append(fields, UpdateFieldNationality)
	}
	if u.EntryDate != nil {
		fields = append(fields, UpdateFieldEntryDate)
	}
	if u.ExitDate != nil {
		fields = append(fields, UpdateFieldExitDate)
	}
	if u.Status != nil {
		fields = append(fields, UpdateFieldStatus)
	}
	return fields
}

// ApplyTo copies the set fields onto r.
func (u FieldUpdates) ApplyTo(r *Record) {
	if u.Nationality != nil {
		r.Nationality = *u.Nationality
	}
	if u.EntryDate != nil {
		r.EntryDate = *u.EntryDate
	}
	if u.ExitDate != nil {
		r.ExitDate = *u.ExitDate
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
}

// ParseUpdates narrows the wire map to FieldUpdates. Keys that are unknown or carry a
// value of the wrong type are returned, sorted, in rejected. Null values are skipped.
func ParseUpdates(raw map[string]any) (updates FieldUpdates, rejected []string) {
	for key, value := range raw {
		if value == nil {
			continue
		}
		s, isString := value.(string)
		switch UpdateField(key) {
		case UpdateFieldNationality:
			if !isString {
				rejected = append(rejected, key)
				continue
			}
			updates.Nationality = &s
		case UpdateFieldEntryDate:
			if !isString {
				rejected = append(rejected, key)
				continue
			}
			updates.EntryDate = &s
		case UpdateFieldExitDate:
			if !isString {
				rejected = append(rejected, key)
				continue
			}
			updates.ExitDate = &s
		case UpdateFieldStatus:
			status := RecordStatus(strings.ToUpper(s))
			if !isString || !status.IsValid() {
				rejected = append(rejected, key)
				continue
			}
			updates.Status = &status
		default:
			rejected = append(rejected, key)
		}
	}
	sort.Strings(rejected)
	return updates, rejected
}
