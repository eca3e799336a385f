package job

import (
	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/util/common"
	"github.com/medreport/medreport/web/service"
)

// ResetTokenCleanupJob clears password reset tokens that expired unused.
type ResetTokenCleanupJob struct {
	userService *service.UserService
}

func NewResetTokenCleanupJob(userService *service.UserService) *ResetTokenCleanupJob {
	return &ResetTokenCleanupJob{userService: userService}
}

// Here Run is an interface method of the Job interface
func (j *ResetTokenCleanupJob) Run() {
	defer common.Recover("reset token cleanup job")
	n, err := j.userService.ClearExpiredResetTokens()
	if err != nil {
		logger.Warning("reset token cleanup job err:", err)
		return
	}
	if n > 0 {
		logger.Infof("Cleared %d expired password reset tokens", n)
	}
}
