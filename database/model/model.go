// Package model contains the gorm models persisted by medreport.
package model

import (
	"time"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// ParseRole returns the role named by s and whether it is one of the known roles.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return r, true
	}
	return "", false
}

// DashboardPath is the landing page of a role.
func (r Role) DashboardPath() string {
	return "/" + string(r) + "/dashboard"
}

type User struct {
	Id               int        `json:"id" gorm:"primaryKey;autoIncrement"`
	Name             string     `json:"name" gorm:"not null"`
	Email            string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PhoneNumber      string     `json:"phone_number" gorm:"column:phone_number"`
	Password         string     `json:"-" gorm:"not null"`
	Role             Role       `json:"role" gorm:"size:16;index;not null"`
	Specialty        *string    `json:"specialty"`
	Designation      *string    `json:"designation"`
	City             *string    `json:"city"`
	Gender           *string    `json:"gender"`
	DateOfBirth      *string    `json:"date_of_birth" gorm:"column:date_of_birth;size:10"`
	ResetToken       *string    `json:"-" gorm:"column:reset_token;index"`
	ResetTokenExpiry *time.Time `json:"-" gorm:"column:reset_token_expiry"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Report approval states.
const (
	ReportPending  = 0
	ReportApproved = 1
)

// TestInfo is a patient's symptom submission together with the tests the
// model suggested and, once reviewed, the tests a doctor confirmed.
type TestInfo struct {
	Id           int       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId       int       `json:"user_id" gorm:"column:user_id;index;not null"`
	Symptoms     string    `json:"symptoms" gorm:"type:text;not null"`
	TestByModel  string    `json:"test_by_model" gorm:"column:test_by_model;type:text"`
	TestByDoctor *string   `json:"test_by_doctor" gorm:"column:test_by_doctor;type:text"`
	IsApprove    int       `json:"isApprove" gorm:"column:is_approve;index;not null;default:0"`
	ApprovedBy   *int      `json:"approvedBy" gorm:"column:approved_by;index"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at;index"`
}

func (TestInfo) TableName() string {
	return "test_info"
}

// AuditLog records a security relevant action taken by a user.
type AuditLog struct {
	ID         int       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID     int       `json:"user_id" gorm:"index"`
	Email      string    `json:"email"`
	Action     string    `json:"action" gorm:"size:32;index"`
	Resource   string    `json:"resource" gorm:"size:32"`
	ResourceID int       `json:"resource_id"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	Details    string    `json:"details" gorm:"type:text"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
}
