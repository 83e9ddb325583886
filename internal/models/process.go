package models

import (
	"strings"
	"time"
)

// ProcessType classifies a process.
type ProcessType string

const (
	ProcessValoracion    ProcessType = "VALORACION"
	ProcessProcedimiento ProcessType = "PROCEDIMIENTO"
)

// ParseProcessType accepts accented and lowercase spellings.
func ParseProcessType(raw string) (ProcessType, bool) {
	normalised := strings.ToUpper(strings.TrimSpace(raw))
	normalised = strings.NewReplacer("Ó", "O", "ó", "O").Replace(normalised)
	switch ProcessType(normalised) {
	case ProcessValoracion:
		return ProcessValoracion, true
	case ProcessProcedimiento:
		return ProcessProcedimiento, true
	}
	return "", false
}

// Process groups surveys and groups under a sequentially coded workflow.
type Process struct {
	ID            string      `db:"id" json:"id"`
	Code          int64       `db:"code" json:"code"`
	Name          string      `db:"name" json:"name"`
	Type          ProcessType `db:"type" json:"type"`
	InstitutionID *string     `db:"institution_id" json:"institutionId,omitempty"`
	CreatedBy     string      `db:"created_by" json:"createdBy"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updatedAt"`
	GroupIDs      []string    `db:"-" json:"groupIds"`
	SurveyIDs     []string    `db:"-" json:"surveyIds"`
}
