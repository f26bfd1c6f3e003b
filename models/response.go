package models

import "time"

// Response is an answer to one question under an assignment.
type Response struct {
	ResponseID     int       `gorm:"primaryKey;column:response_id" json:"response_id"`
	AssignmentID   int       `gorm:"column:assignment_id;uniqueIndex:idx_response_question,priority:1" json:"assignment_id"`
	QuestionID     int       `gorm:"column:question_id;uniqueIndex:idx_response_question,priority:2" json:"question_id"`
	ResponseText   *string   `gorm:"column:response_text;type:text" json:"response_text,omitempty"`
	ResponseNumber *float64  `gorm:"column:response_number" json:"response_number,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Response) TableName() string {
	return "responses"
}

// HasText reports whether the response carries free-text feedback.
func (r Response) HasText() bool {
	return r.ResponseText != nil && *r.ResponseText != ""
}
