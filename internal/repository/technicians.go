// Package repository loads technician rosters from Postgres.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/models"

	"github.com/lib/pq"
)

// TechnicianRepository resolves technician ids carried in process variables.
type TechnicianRepository interface {
	LoadByIDs(ctx context.Context, ids []string) ([]models.Technician, error)
}

type PostgresTechnicians struct {
	db *sql.DB
}

func NewPostgresTechnicians(db *sql.DB) *PostgresTechnicians {
	return &PostgresTechnicians{db: db}
}

const loadTechniciansQuery = `
		SELECT id, name, phone, email,
		       base_latitude, base_longitude, base_address,
		       skills, availability_start, availability_end,
		       is_available, current_workload, sla_success_rate,
		       coverage, status, interruptible, current_assignment
		FROM technicians
		WHERE id = ANY($1)`

// LoadByIDs returns the technicians in the order the ids were given. Unknown ids
// are skipped.
func (r *PostgresTechnicians) LoadByIDs(ctx context.Context, ids []string) ([]models.Technician, error) {
	if len(ids) == 0 {
		return []models.Technician{}, nil
	}

	rows, err := r.db.QueryContext(ctx, loadTechniciansQuery, pq.Array(ids))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewQueryTimeoutError("load_technicians")
		}
		return nil, errors.NewQueryExecutionFailedError("load_technicians", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Technician, len(ids))
	for rows.Next() {
		tech, err := scanTechnician(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("load_technicians", err)
		}
		byID[tech.ID] = tech
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("load_technicians", err)
	}

	techs := make([]models.Technician, 0, len(byID))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if tech, ok := byID[id]; ok && !seen[id] {
			techs = append(techs, tech)
			seen[id] = true
		}
	}
	return techs, nil
}

func scanTechnician(rows *sql.Rows) (models.Technician, error) {
	var (
		tech                 models.Technician
		phone, email, addr   sql.NullString
		status               sql.NullString
		skills, coverage     []byte
		assignment           []byte
		availStart, availEnd sql.NullTime
		sla                  sql.NullFloat64
	)

	err := rows.Scan(
		&tech.ID, &tech.Name, &phone, &email,
		&tech.BaseLocation.Latitude, &tech.BaseLocation.Longitude, &addr,
		&skills, &availStart, &availEnd,
		&tech.IsAvailable, &tech.CurrentWorkload, &sla,
		&coverage, &status, &tech.Interruptible, &assignment,
	)
	if err != nil {
		return tech, err
	}

	tech.Phone = phone.String
	tech.Email = email.String
	tech.BaseLocation.Address = addr.String
	tech.Status = models.ParseStatus(status.String)
	if availStart.Valid {
		tech.Availability.Start = availStart.Time
	}
	if availEnd.Valid {
		tech.Availability.End = availEnd.Time
	}
	if sla.Valid {
		rate := sla.Float64
		tech.SLASuccessRate = &rate
	}

	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &tech.Skills); err != nil {
			return tech, fmt.Errorf("technician %s skills: %w", tech.ID, err)
		}
	}
	if len(coverage) > 0 {
		if err := json.Unmarshal(coverage, &tech.Coverage); err != nil {
			return tech, fmt.Errorf("technician %s coverage: %w", tech.ID, err)
		}
	}
	if len(assignment) > 0 && string(assignment) != "null" {
		tech.CurrentAssignment = &models.Assignment{}
		if err := json.Unmarshal(assignment, tech.CurrentAssignment); err != nil {
			return tech, fmt.Errorf("technician %s assignment: %w", tech.ID, err)
		}
	}

	return tech, nil
}
