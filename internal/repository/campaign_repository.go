package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/unclebandit/campaign-launch-api/internal/db"
	appErrors "github.com/unclebandit/campaign-launch-api/internal/errors"
	"github.com/unclebandit/campaign-launch-api/internal/model"
)

// CampaignTx is the set of campaign operations available inside one
// transactional session.
type CampaignTx interface {
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	Create(ctx context.Context, c *model.Campaign) error
	CreateWithID(ctx context.Context, c *model.Campaign) error
	Update(ctx context.Context, c *model.Campaign) error
	RecordSetup(ctx context.Context, d *model.SetupDetails) error
	RecordLaunch(ctx context.Context, campaignID int, at time.Time) error
}

type CampaignRepositoryInterface interface {
	// InTx runs fn in a transaction. It commits when fn returns nil and
	// rolls back on any error or panic.
	InTx(ctx context.Context, fn func(tx CampaignTx) error) error

	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	ListCampaigns(ctx context.Context) ([]*model.Campaign, error)
	GetSetup(ctx context.Context, campaignID int) (*model.SetupDetails, error)

	// ProbeMissingTable queries a table the schema never creates.
	ProbeMissingTable(ctx context.Context) error
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type CampaignRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

func NewCampaignRepository(conn *sql.DB, dialect db.Dialect) *CampaignRepository {
	return &CampaignRepository{DB: conn, Dialect: dialect}
}

func (r *CampaignRepository) store(q queryer) *campaignStore {
	return &campaignStore{q: q, dialect: r.Dialect}
}

func (r *CampaignRepository) InTx(ctx context.Context, fn func(tx CampaignTx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(r.store(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify("commit transaction", err)
	}
	committed = true
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	return r.store(r.DB).GetByID(ctx, id)
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	return r.store(r.DB).list(ctx)
}

func (r *CampaignRepository) GetSetup(ctx context.Context, campaignID int) (*model.SetupDetails, error) {
	return r.store(r.DB).getSetup(ctx, campaignID)
}

func (r *CampaignRepository) ProbeMissingTable(ctx context.Context) error {
	var id int
	err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(`SELECT id FROM non_existent_campaigns_table WHERE id = ?`), 1).Scan(&id)
	if err != nil {
		return classify("probe missing table", err)
	}
	return nil
}

// ====================== Store ======================

type campaignStore struct {
	q       queryer
	dialect db.Dialect
}

const campaignColumns = `id, name, description, status, created_at, launched_at, is_active`

func (s *campaignStore) Create(ctx context.Context, c *model.Campaign) error {
	query := s.dialect.Rebind(`
		INSERT INTO campaigns (name, description, status, created_at, launched_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := s.q.QueryRowContext(ctx, query, createArgs(c)...).Scan(&c.ID)
	if err != nil {
		return classify("create campaign", err)
	}
	return nil
}

func (s *campaignStore) CreateWithID(ctx context.Context, c *model.Campaign) error {
	query := s.dialect.Rebind(`
		INSERT INTO campaigns (id, name, description, status, created_at, launched_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	args := append([]any{c.ID}, createArgs(c)...)
	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return classify("create campaign with id", err)
	}

	// SERIAL does not advance on explicit ids; keep it ahead of them.
	if sync := idSequenceSync(s.dialect); sync != "" {
		var next int64
		if err := s.q.QueryRowContext(ctx, sync).Scan(&next); err != nil {
			return classify("sync campaign id sequence", err)
		}
	}
	return nil
}

// idSequenceSync returns the statement that moves the id sequence past the
// largest stored id, or "" when the dialect tracks that itself.
func idSequenceSync(dialect db.Dialect) string {
	if dialect != db.Postgres {
		return ""
	}
	return `SELECT setval(pg_get_serial_sequence('campaigns', 'id'), (SELECT MAX(id) FROM campaigns))`
}

func createArgs(c *model.Campaign) []any {
	return []any{
		c.Name,
		nullString(c.Description),
		string(c.Status),
		db.ToMillis(c.CreatedAt),
		nullMillis(c.LaunchedAt),
		boolInt(c.IsActive),
	}
}

func (s *campaignStore) Update(ctx context.Context, c *model.Campaign) error {
	query := s.dialect.Rebind(`
		UPDATE campaigns
		SET name=?, description=?, status=?, launched_at=?, is_active=?
		WHERE id=?
	`)
	res, err := s.q.ExecContext(ctx, query,
		c.Name, nullString(c.Description), string(c.Status), nullMillis(c.LaunchedAt), boolInt(c.IsActive), c.ID)
	if err != nil {
		return classify("update campaign", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	return nil
}

func (s *campaignStore) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	query := s.dialect.Rebind(`SELECT ` + campaignColumns + ` FROM campaigns WHERE id=?`)
	c, err := scanCampaign(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, classify("get campaign", err)
	}
	return c, nil
}

func (s *campaignStore) list(ctx context.Context) ([]*model.Campaign, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+campaignColumns+` FROM campaigns ORDER BY id ASC`)
	if err != nil {
		return nil, classify("list campaigns", err)
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, classify("scan campaign", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list campaigns", err)
	}
	return campaigns, nil
}

func (s *campaignStore) RecordSetup(ctx context.Context, d *model.SetupDetails) error {
	query := s.dialect.Rebind(`
		INSERT INTO campaign_setups (campaign_id, resources_allocated, configuration_applied, external_services_connected, setup_timestamp)
		VALUES (?, ?, ?, ?, ?)
	`)
	_, err := s.q.ExecContext(ctx, query,
		d.CampaignID,
		boolInt(d.ResourcesAllocated),
		boolInt(d.ConfigurationApplied),
		boolInt(d.ExternalServicesConnected),
		db.ToMillis(d.SetupTimestamp),
	)
	if err != nil {
		return classify("record setup", err)
	}
	return nil
}

func (s *campaignStore) getSetup(ctx context.Context, campaignID int) (*model.SetupDetails, error) {
	query := s.dialect.Rebind(`
		SELECT campaign_id, resources_allocated, configuration_applied, external_services_connected, setup_timestamp
		FROM campaign_setups WHERE campaign_id=?
	`)
	var (
		d                           model.SetupDetails
		resources, config, services int
		ts                          int64
	)
	err := s.q.QueryRowContext(ctx, query, campaignID).Scan(&d.CampaignID, &resources, &config, &services, &ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get setup", err)
	}
	d.ResourcesAllocated = resources != 0
	d.ConfigurationApplied = config != 0
	d.ExternalServicesConnected = services != 0
	d.SetupTimestamp = db.FromMillis(ts)
	return &d, nil
}

// RecordLaunch writes to campaign_launch_ledger. The schema does not create
// that table, so every launch fails here until it exists.
func (s *campaignStore) RecordLaunch(ctx context.Context, campaignID int, at time.Time) error {
	query := s.dialect.Rebind(`INSERT INTO campaign_launch_ledger (campaign_id, launched_at) VALUES (?, ?)`)
	if _, err := s.q.ExecContext(ctx, query, campaignID, db.ToMillis(at)); err != nil {
		return classify(fmt.Sprintf("record launch of campaign %d", campaignID), err)
	}
	return nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
var _ CampaignTx = (*campaignStore)(nil)
