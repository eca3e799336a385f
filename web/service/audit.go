package service

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/gorm"

	"github.com/medreport/medreport/database/model"
	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/web/entity"
)

// Audited actions.
const (
	ActionRegister      = "REGISTER"
	ActionLogin         = "LOGIN"
	ActionLogout        = "LOGOUT"
	ActionApprove       = "APPROVE"
	ActionCreateDoctor  = "CREATE_DOCTOR"
	ActionResetPassword = "RESET_PASSWORD"
)

// AuditLogService handles audit logging
type AuditLogService struct {
	DB *gorm.DB
}

func NewAuditLogService(db *gorm.DB) *AuditLogService {
	return &AuditLogService{DB: db}
}

// AuditEntry is one action to record.
type AuditEntry struct {
	UserID     int
	Email      string
	Action     string
	Resource   string
	ResourceID int
	IP         string
	UserAgent  string
	Details    map[string]any
}

// LogAction logs an audit action with error handling
func (s *AuditLogService) LogAction(e AuditEntry) error {
	detailsJSON := ""
	if e.Details != nil {
		jsonData, err := json.Marshal(e.Details)
		if err != nil {
			logger.Warning("Failed to marshal audit log details:", err)
		} else {
			detailsJSON = string(jsonData)
		}
	}

	auditLog := model.AuditLog{
		UserID:     e.UserID,
		Email:      e.Email,
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		IP:         e.IP,
		UserAgent:  e.UserAgent,
		Details:    detailsJSON,
		Timestamp:  time.Now().UTC(),
	}

	if err := s.DB.Create(&auditLog).Error; err != nil {
		logger.Warningf("Failed to create audit log: user=%d, action=%s, resource=%s, error=%v", e.UserID, e.Action, e.Resource, err)
		return err
	}
	return nil
}

// GetAuditLogs returns one page of audit logs, newest first, and the total count.
func (s *AuditLogService) GetAuditLogs(q entity.PageQuery) ([]model.AuditLog, int64, error) {
	var total int64
	if err := s.DB.Model(&model.AuditLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	logs := make([]model.AuditLog, 0, q.Limit)
	err := s.DB.Order("timestamp DESC").Order("id DESC").
		Limit(q.Limit).Offset(q.Offset()).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// CleanOldLogs removes audit logs older than the given number of days.
func (s *AuditLogService) CleanOldLogs(days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("days must be greater than 0")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	result := s.DB.Where("timestamp < ?", cutoff).Delete(&model.AuditLog{})
	if result.Error != nil {
		return 0, result.Error
	}

	logger.Infof("Cleaned %d old audit logs (older than %d days)", result.RowsAffected, days)
	return result.RowsAffected, nil
}
