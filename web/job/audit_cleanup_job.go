package job

import (
	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/util/common"
	"github.com/medreport/medreport/web/service"
)

const defaultAuditRetentionDays = 90

// AuditCleanupJob cleans up old audit logs
type AuditCleanupJob struct {
	auditService  *service.AuditLogService
	retentionDays int
}

// NewAuditCleanupJob creates a new audit cleanup job. A non-positive
// retention falls back to 90 days.
func NewAuditCleanupJob(auditService *service.AuditLogService, retentionDays int) *AuditCleanupJob {
	if retentionDays <= 0 {
		retentionDays = defaultAuditRetentionDays
	}
	return &AuditCleanupJob{
		auditService:  auditService,
		retentionDays: retentionDays,
	}
}

// Run cleans up old audit logs
func (j *AuditCleanupJob) Run() {
	defer common.Recover("audit cleanup job")
	logger.Debug("Audit cleanup job started")

	if _, err := j.auditService.CleanOldLogs(j.retentionDays); err != nil {
		logger.Warning("Failed to clean old audit logs:", err)
	} else {
		logger.Debugf("Audit cleanup completed (retention: %d days)", j.retentionDays)
	}
}
