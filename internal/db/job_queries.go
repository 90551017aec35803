package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"
)

// FailureReason is the persisted cause of a failed job.
type FailureReason struct {
	EntityID int64  `json:"entityId"`
	Message  string `json:"message"`
}

// JobFilter narrows FindJobs. Empty fields match everything.
type JobFilter struct {
	ContentType  string
	SourceLocale string
	TargetLocale string
	Statuses     []string
	NewestFirst  bool
	Limit        int
}

// JobUpdate is a partial update; nil fields are left untouched.
type JobUpdate struct {
	Status        *string
	Progress      *float64
	FailureReason *FailureReason
}

// EntityIDList decodes the explicit entity scope, nil when the job auto-discovers.
func (j BatchTranslateJob) EntityIDList() ([]int64, error) {
	if len(j.EntityIDs) == 0 || strings.TrimSpace(string(j.EntityIDs)) == "null" {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal(j.EntityIDs, &ids); err != nil {
		return nil, fmt.Errorf("decode entity_ids for job %s: %w", j.JobUUID, err)
	}
	return ids, nil
}

func (j BatchTranslateJob) Failure() (*FailureReason, error) {
	if len(j.FailureReason) == 0 || strings.TrimSpace(string(j.FailureReason)) == "null" {
		return nil, nil
	}
	var reason FailureReason
	if err := json.Unmarshal(j.FailureReason, &reason); err != nil {
		return nil, fmt.Errorf("decode failure_reason for job %s: %w", j.JobUUID, err)
	}
	return &reason, nil
}

// EncodeEntityIDs builds the entity_ids column value; an empty list is stored as NULL.
func EncodeEntityIDs(ids []int64) (datatypes.JSON, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode entity ids: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func (p *Pool) CreateJob(ctx context.Context, job *BatchTranslateJob) (*BatchTranslateJob, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if job == nil {
		return nil, fmt.Errorf("job is nil")
	}
	if strings.TrimSpace(job.Status) == "" {
		job.Status = "created"
	}
	if err := p.gdb.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("insert batch translate job: %w", err)
	}
	return job, nil
}

func (p *Pool) FindJobs(ctx context.Context, filter JobFilter) ([]BatchTranslateJob, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	query := p.gdb.WithContext(ctx).Model(&BatchTranslateJob{})
	if ct := strings.TrimSpace(filter.ContentType); ct != "" {
		query = query.Where("content_type = ?", ct)
	}
	if source := strings.TrimSpace(filter.SourceLocale); source != "" {
		query = query.Where("source_locale = ?", source)
	}
	if target := strings.TrimSpace(filter.TargetLocale); target != "" {
		query = query.Where("target_locale = ?", target)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.NewestFirst {
		query = query.Order("id DESC")
	} else {
		query = query.Order("id ASC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var jobs []BatchTranslateJob
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("query batch translate jobs: %w", err)
	}
	return jobs, nil
}

// FindJob returns ErrNoRows when no job has the uuid.
func (p *Pool) FindJob(ctx context.Context, jobUUID string) (*BatchTranslateJob, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	var jobs []BatchTranslateJob
	err := p.gdb.WithContext(ctx).
		Where("job_uuid = ?", strings.TrimSpace(jobUUID)).
		Limit(1).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("query batch translate job %s: %w", jobUUID, err)
	}
	if len(jobs) == 0 {
		return nil, ErrNoRows
	}
	return &jobs[0], nil
}

func (p *Pool) UpdateJob(ctx context.Context, jobUUID string, update JobUpdate) (*BatchTranslateJob, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	values := map[string]any{}
	if update.Status != nil {
		values["status"] = *update.Status
	}
	if update.Progress != nil {
		values["progress"] = *update.Progress
	}
	if update.FailureReason != nil {
		raw, err := json.Marshal(update.FailureReason)
		if err != nil {
			return nil, fmt.Errorf("encode failure reason: %w", err)
		}
		values["failure_reason"] = datatypes.JSON(raw)
	}
	if len(values) == 0 {
		return p.FindJob(ctx, jobUUID)
	}

	res := p.gdb.WithContext(ctx).
		Model(&BatchTranslateJob{}).
		Where("job_uuid = ?", strings.TrimSpace(jobUUID)).
		Updates(values)
	if res.Error != nil {
		return nil, fmt.Errorf("update batch translate job %s: %w", jobUUID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNoRows
	}
	return p.FindJob(ctx, jobUUID)
}
