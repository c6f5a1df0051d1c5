package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/campaign-launch-api/internal/db"
	"github.com/unclebandit/campaign-launch-api/internal/model"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var (
		c           model.Campaign
		description sql.NullString
		status      string
		createdAt   int64
		launchedAt  sql.NullInt64
		isActive    int
	)
	if err := row.Scan(&c.ID, &c.Name, &description, &status, &createdAt, &launchedAt, &isActive); err != nil {
		return nil, err
	}

	if description.Valid {
		d := description.String
		c.Description = &d
	}
	c.Status = model.Status(status)
	c.CreatedAt = db.FromMillis(createdAt)
	if launchedAt.Valid {
		t := db.FromMillis(launchedAt.Int64)
		c.LaunchedAt = &t
	}
	c.IsActive = isActive != 0
	return &c, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: db.ToMillis(*t), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
