package service

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/medreport/medreport/database"
	"github.com/medreport/medreport/database/model"
	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/util/metrics"
	"github.com/medreport/medreport/web/entity"
)

const listSeparator = ", "

// ReportService owns the TestInfo lifecycle: creation from a patient's
// symptoms, the role scoped listings and the doctor's approval.
type ReportService struct {
	DB *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{DB: db}
}

// HistoryRow is a patient's report joined with its owner and approver.
type HistoryRow struct {
	Id             int       `json:"id"`
	UserId         int       `json:"user_id"`
	Symptoms       string    `json:"symptoms"`
	TestByModel    string    `json:"test_by_model"`
	TestByDoctor   *string   `json:"test_by_doctor"`
	IsApprove      int       `json:"isApprove"`
	ApprovedBy     *int      `json:"approvedBy"`
	CreatedAt      time.Time `json:"created_at"`
	UserName       string    `json:"user_name"`
	UserGender     string    `json:"user_gender"`
	UserDob        *string   `json:"user_dob"`
	City           *string   `json:"city"`
	ApprovedByName *string   `json:"approved_by_name"`
	Specialty      string    `json:"specialty"`
	Designation    string    `json:"designation"`
}

// PendingRow is a report awaiting review, with the patient's details.
type PendingRow struct {
	Id          int       `json:"id"`
	UserId      int       `json:"user_id"`
	Symptoms    string    `json:"symptoms"`
	TestByModel string    `json:"test_by_model"`
	IsApprove   int       `json:"isApprove"`
	CreatedAt   time.Time `json:"created_at"`
	UserName    string    `json:"user_name"`
	UserGender  string    `json:"user_gender"`
	UserDob     *string   `json:"user_dob"`
}

// ReviewedRow is a report a doctor has approved.
type ReviewedRow struct {
	Id           int       `json:"id"`
	UserId       int       `json:"user_id"`
	Symptoms     string    `json:"symptoms"`
	TestByModel  string    `json:"test_by_model"`
	TestByDoctor *string   `json:"test_by_doctor"`
	IsApprove    int       `json:"isApprove"`
	ApprovedBy   *int      `json:"approvedBy"`
	CreatedAt    time.Time `json:"created_at"`
	UserName     string    `json:"user_name"`
	UserGender   string    `json:"user_gender"`
	UserDob      *string   `json:"user_dob"`
}

// ApprovedRow is one line of the admin report overview.
type ApprovedRow struct {
	Id           int       `json:"id"`
	Symptoms     string    `json:"symptoms"`
	TestByDoctor *string   `json:"test_by_doctor"`
	CreatedAt    time.Time `json:"created_at"`
}

// Create stores a pending report for userID.
func (s *ReportService) Create(userID int, symptoms, tests []string) (*model.TestInfo, error) {
	if len(symptoms) == 0 {
		return nil, ErrNoSymptoms
	}
	report := &model.TestInfo{
		UserId:      userID,
		Symptoms:    strings.Join(symptoms, listSeparator),
		TestByModel: strings.Join(tests, listSeparator),
		IsApprove:   model.ReportPending,
	}
	if err := s.DB.Create(report).Error; err != nil {
		return nil, err
	}
	logger.Infof("Report %d created for user %d", report.Id, userID)
	return report, nil
}

func (s *ReportService) Get(id int) (*model.TestInfo, error) {
	report := &model.TestInfo{}
	if err := s.DB.First(report, id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return report, nil
}

// History lists the reports owned by userID, newest first.
func (s *ReportService) History(userID int, q entity.PageQuery) ([]HistoryRow, int64, error) {
	var total int64
	if err := s.DB.Model(&model.TestInfo{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	rows := make([]HistoryRow, 0, q.Limit)
	err := s.DB.Table("test_info AS t").
		Select(`t.id, t.user_id, t.symptoms, t.test_by_model, t.test_by_doctor, t.is_approve, t.approved_by, t.created_at,
			u.name AS user_name, COALESCE(u.gender, 'Not Provided') AS user_gender, u.date_of_birth AS user_dob, u.city AS city,
			a.name AS approved_by_name, COALESCE(a.specialty, 'N/A') AS specialty, COALESCE(a.designation, 'N/A') AS designation`).
		Joins("LEFT JOIN users u ON u.id = t.user_id").
		Joins("LEFT JOIN users a ON a.id = t.approved_by").
		Where("t.user_id = ?", userID).
		Order("t.created_at DESC").Order("t.id DESC").
		Limit(q.Limit).Offset(q.Offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Pending lists every report still awaiting review.
func (s *ReportService) Pending(q entity.PageQuery) ([]PendingRow, int64, error) {
	var total int64
	err := s.DB.Model(&model.TestInfo{}).Where("is_approve = ?", model.ReportPending).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	rows := make([]PendingRow, 0, q.Limit)
	err = s.DB.Table("test_info AS t").
		Select(`t.id, t.user_id, t.symptoms, t.test_by_model, t.is_approve, t.created_at,
			u.name AS user_name, COALESCE(u.gender, 'Not Provided') AS user_gender, u.date_of_birth AS user_dob`).
		Joins("LEFT JOIN users u ON u.id = t.user_id").
		Where("t.is_approve = ?", model.ReportPending).
		Order("t.created_at DESC").Order("t.id DESC").
		Limit(q.Limit).Offset(q.Offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Reviewed lists the reports approved by doctorID.
func (s *ReportService) Reviewed(doctorID int, q entity.PageQuery) ([]ReviewedRow, int64, error) {
	var total int64
	err := s.DB.Model(&model.TestInfo{}).Where("approved_by = ?", doctorID).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	rows := make([]ReviewedRow, 0, q.Limit)
	err = s.DB.Table("test_info AS t").
		Select(`t.id, t.user_id, t.symptoms, t.test_by_model, t.test_by_doctor, t.is_approve, t.approved_by, t.created_at,
			u.name AS user_name, COALESCE(u.gender, 'Not Provided') AS user_gender, u.date_of_birth AS user_dob`).
		Joins("LEFT JOIN users u ON u.id = t.user_id").
		Where("t.approved_by = ?", doctorID).
		Order("t.created_at DESC").Order("t.id DESC").
		Limit(q.Limit).Offset(q.Offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Approved lists approved reports created within r.
func (s *ReportService) Approved(r DateRange, q entity.PageQuery) ([]ApprovedRow, int64, error) {
	inRange := r.scope("created_at")
	approved := func(db *gorm.DB) *gorm.DB {
		return inRange(db.Where("is_approve = ?", model.ReportApproved))
	}

	var total int64
	if err := s.DB.Model(&model.TestInfo{}).Scopes(approved).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	rows := make([]ApprovedRow, 0, q.Limit)
	err := s.DB.Model(&model.TestInfo{}).Scopes(approved).
		Select("id, symptoms, test_by_doctor, created_at").
		Order("created_at DESC").Order("id DESC").
		Limit(q.Limit).Offset(q.Offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Approve records doctorID's confirmed tests on a pending report. A report
// is approved at most once; later attempts get ErrReportAlreadyApproved.
func (s *ReportService) Approve(reportID, doctorID int, tests string) error {
	result := s.DB.Model(&model.TestInfo{}).
		Where("id = ? AND is_approve = ?", reportID, model.ReportPending).
		Updates(map[string]any{
			"test_by_doctor": tests,
			"is_approve":     model.ReportApproved,
			"approved_by":    doctorID,
		})
	if result.Error != nil {
		metrics.ReportApprovals.WithLabelValues("error").Inc()
		return result.Error
	}
	if result.RowsAffected == 1 {
		metrics.ReportApprovals.WithLabelValues("approved").Inc()
		logger.Infof("Report %d approved by doctor %d", reportID, doctorID)
		return nil
	}

	var count int64
	if err := s.DB.Model(&model.TestInfo{}).Where("id = ?", reportID).Count(&count).Error; err != nil {
		metrics.ReportApprovals.WithLabelValues("error").Inc()
		return err
	}
	if count == 0 {
		metrics.ReportApprovals.WithLabelValues("not_found").Inc()
		return ErrReportNotFound
	}
	metrics.ReportApprovals.WithLabelValues("conflict").Inc()
	return ErrReportAlreadyApproved
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"2006-01-02T15:04",
}

// DateRange bounds a created_at filter. A nil bound is open.
type DateRange struct {
	Start        *time.Time
	End          *time.Time
	EndExclusive bool
}

// ParseDateRange reads optional start and end dates in UTC. An end given as
// a plain date covers that whole day.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange
	if start != "" {
		t, _, err := parseDate(start)
		if err != nil {
			return r, err
		}
		r.Start = &t
	}
	if end != "" {
		t, dateOnly, err := parseDate(end)
		if err != nil {
			return r, err
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
			r.EndExclusive = true
		}
		r.End = &t
	}

	if r.Start != nil && r.End != nil {
		if r.EndExclusive && !r.Start.Before(*r.End) || !r.EndExclusive && r.Start.After(*r.End) {
			return r, ErrInvalidDateRange
		}
	}
	return r, nil
}

func parseDate(s string) (time.Time, bool, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), layout == time.DateOnly, nil
		}
	}
	return time.Time{}, false, ErrInvalidDate
}

func (r DateRange) scope(column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if r.Start != nil {
			db = db.Where(column+" >= ?", *r.Start)
		}
		if r.End != nil {
			if r.EndExclusive {
				db = db.Where(column+" < ?", *r.End)
			} else {
				db = db.Where(column+" <= ?", *r.End)
			}
		}
		return db
	}
}
