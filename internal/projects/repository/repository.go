package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"interior_portal_backend/internal/projects/domain"
	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	projectNotFoundMsg = "project not found"
	taskNotFoundMsg    = "task not found"
	teamNotFoundMsg    = "team not found"
	memberNotFoundMsg  = "team member not found"
)

type Project struct {
	ID            uuid.UUID              `json:"id"`
	Name          string                 `json:"name"`
	ClientID      *uuid.UUID             `json:"clientId,omitempty"`
	Description   *string                `json:"description,omitempty"`
	TeamID        *uuid.UUID             `json:"teamId,omitempty"`
	EstimatedCost *float64               `json:"estimatedCost,omitempty"`
	Progress      int                    `json:"progress"`
	Status        workflow.ProjectStatus `json:"status"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
	Tasks         []Task                 `json:"tasks,omitempty"`
}

type Task struct {
	ID                 uuid.UUID           `json:"id"`
	ProjectID          uuid.UUID           `json:"projectId"`
	Title              string              `json:"title"`
	Description        *string             `json:"description,omitempty"`
	AssigneeID         *uuid.UUID          `json:"assigneeId,omitempty"`
	AssigneeUserID     *uuid.UUID          `json:"assigneeUserId,omitempty"`
	Status             workflow.TaskStatus `json:"status"`
	Weight             float64             `json:"weight"`
	ProgressPercentage int                 `json:"progressPercentage"`
	DueDate            *time.Time          `json:"dueDate,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

type Team struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	LeadID    *uuid.UUID `json:"leadId,omitempty"`
	Members   []Member   `json:"members"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type Member struct {
	ID           uuid.UUID                   `json:"id"`
	TeamID       uuid.UUID                   `json:"teamId"`
	UserID       uuid.UUID                   `json:"userId"`
	Role         string                      `json:"role"`
	Availability workflow.MemberAvailability `json:"availability"`
	Workload     int                         `json:"workload"`
	UpdatedAt    time.Time                   `json:"updatedAt"`
}

type NewProject struct {
	Name          string
	ClientID      *uuid.UUID
	Description   *string
	TeamID        *uuid.UUID
	EstimatedCost *float64
}

type ListParams struct {
	ClientID *uuid.UUID
	TeamID   *uuid.UUID
	Status   *workflow.ProjectStatus
	Page     int
	PageSize int
}

type NewTask struct {
	ProjectID   uuid.UUID
	Title       string
	Description *string
	AssigneeID  *uuid.UUID
	Weight      float64
	DueDate     *time.Time
}

// TaskUpdate changes a task's status and/or percentage; nil means keep.
type TaskUpdate struct {
	ID                 uuid.UUID
	Status             *workflow.TaskStatus
	ProgressPercentage *int
}

// Recomputed is a project after progress aggregation, with the values it
// had before.
type Recomputed struct {
	Project          Project
	PreviousStatus   workflow.ProjectStatus
	PreviousProgress int
}

// Changed reports whether aggregation moved progress or status.
func (r Recomputed) Changed() bool {
	return r.PreviousStatus != r.Project.Status || r.PreviousProgress != r.Project.Progress
}

// TaskOutcome is a task write and the project recomputation it triggered.
type TaskOutcome struct {
	Task           Task
	PreviousStatus workflow.TaskStatus
	Project        Recomputed
}

type NewTeam struct {
	Name   string
	LeadID *uuid.UUID
}

type NewMember struct {
	TeamID uuid.UUID
	UserID uuid.UUID
	Role   string
}

type AvailabilityUpdate struct {
	TeamID       uuid.UUID
	MemberID     uuid.UUID
	Availability workflow.MemberAvailability
	Workload     *int
}

type ProjectReader interface {
	GetProject(ctx context.Context, id uuid.UUID) (Project, error)
	ListProjects(ctx context.Context, params ListParams) ([]Project, int, error)
	GetTask(ctx context.Context, id uuid.UUID) (Task, error)
	ListTasks(ctx context.Context, projectID uuid.UUID) ([]Task, error)
}

type ProjectWriter interface {
	CreateProject(ctx context.Context, in NewProject) (Project, error)
	// AssignTeam sets the project's team. An On Hold project becomes Active
	// and is then re-aggregated.
	AssignTeam(ctx context.Context, projectID, teamID uuid.UUID) (Recomputed, error)
	CreateTask(ctx context.Context, in NewTask) (TaskOutcome, error)
	// UpdateTask writes the task and re-aggregates its project in one transaction.
	UpdateTask(ctx context.Context, in TaskUpdate) (TaskOutcome, error)
}

type TeamReader interface {
	GetTeam(ctx context.Context, id uuid.UUID) (Team, error)
	ListTeams(ctx context.Context) ([]Team, error)
	GetMember(ctx context.Context, teamID, memberID uuid.UUID) (Member, error)
}

type TeamWriter interface {
	CreateTeam(ctx context.Context, in NewTeam) (Team, error)
	AddMember(ctx context.Context, in NewMember) (Member, error)
	SetMemberAvailability(ctx context.Context, in AvailabilityUpdate) (Member, error)
}

type Repository interface {
	ProjectReader
	ProjectWriter
	TeamReader
	TeamWriter
}

type Repo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

const projectColumns = `id, name, client_id, description, team_id, estimated_cost::float8,
	progress, status, created_at, updated_at`

const taskSelect = `
	SELECT t.id, t.project_id, t.title, t.description, t.assignee_id, m.user_id,
		t.status, t.weight::float8, t.progress_percentage, t.due_date, t.created_at, t.updated_at
	FROM tasks t
	LEFT JOIN team_members m ON m.id = t.assignee_id`

const memberColumns = `id, team_id, user_id, role, availability, workload, updated_at`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.ClientID, &p.Description, &p.TeamID, &p.EstimatedCost,
		&p.Progress, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, apperr.NotFound(projectNotFoundMsg)
	}
	return p, err
}

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.AssigneeID, &t.AssigneeUserID,
		&t.Status, &t.Weight, &t.ProgressPercentage, &t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, apperr.NotFound(taskNotFoundMsg)
	}
	return t, err
}

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.Availability, &m.Workload, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, apperr.NotFound(memberNotFoundMsg)
	}
	return m, err
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repo) GetProject(ctx context.Context, id uuid.UUID) (Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return Project{}, err
		}
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	tasks, err := listTasks(ctx, r.pool, id)
	if err != nil {
		return Project{}, err
	}
	p.Tasks = tasks
	return p, nil
}

func (r *Repo) ListProjects(ctx context.Context, params ListParams) ([]Project, int, error) {
	page, pageSize := normalizePage(params.Page, params.PageSize)
	const filter = `
		WHERE ($1::uuid IS NULL OR client_id = $1)
		  AND ($2::uuid IS NULL OR team_id = $2)
		  AND ($3::text IS NULL OR status = $3)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM projects`+filter,
		params.ClientID, params.TeamID, params.Status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects`+filter+`
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		params.ClientID, params.TeamID, params.Status, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0, pageSize)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate projects: %w", err)
	}
	return items, total, nil
}

func (r *Repo) GetTask(ctx context.Context, id uuid.UUID) (Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, taskSelect+` WHERE t.id = $1`, id))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, err
}

func (r *Repo) ListTasks(ctx context.Context, projectID uuid.UUID) ([]Task, error) {
	if _, err := scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, projectID)); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return listTasks(ctx, r.pool, projectID)
}

func listTasks(ctx context.Context, q querier, projectID uuid.UUID) ([]Task, error) {
	rows, err := q.Query(ctx, taskSelect+` WHERE t.project_id = $1 ORDER BY t.created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (r *Repo) CreateProject(ctx context.Context, in NewProject) (Project, error) {
	status := workflow.ProjectOnHold
	if in.TeamID != nil {
		status = workflow.ProjectActive
		if err := teamExists(ctx, r.pool, *in.TeamID); err != nil {
			return Project{}, err
		}
	}
	p, err := scanProject(r.pool.QueryRow(ctx, `
		INSERT INTO projects (name, client_id, description, team_id, estimated_cost, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+projectColumns,
		in.Name, in.ClientID, in.Description, in.TeamID, in.EstimatedCost, status))
	if err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	p.Tasks = []Task{}
	return p, nil
}

func (r *Repo) AssignTeam(ctx context.Context, projectID, teamID uuid.UUID) (Recomputed, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Recomputed{}, fmt.Errorf("begin assign team: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := lockProject(ctx, tx, projectID)
	if err != nil {
		return Recomputed{}, err
	}
	if err := teamExists(ctx, tx, teamID); err != nil {
		return Recomputed{}, err
	}

	status := current.Status
	if status == workflow.ProjectOnHold {
		status = workflow.ProjectActive
	}
	if _, err := tx.Exec(ctx, `UPDATE projects SET team_id = $2, status = $3, updated_at = now() WHERE id = $1`,
		projectID, teamID, status); err != nil {
		return Recomputed{}, fmt.Errorf("assign project team: %w", err)
	}
	current.TeamID = &teamID

	out, err := recompute(ctx, tx, current, status)
	if err != nil {
		return Recomputed{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Recomputed{}, fmt.Errorf("commit assign team: %w", err)
	}
	return out, nil
}

func (r *Repo) CreateTask(ctx context.Context, in NewTask) (TaskOutcome, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TaskOutcome{}, fmt.Errorf("begin create task: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	project, err := lockProject(ctx, tx, in.ProjectID)
	if err != nil {
		return TaskOutcome{}, err
	}
	if in.AssigneeID != nil {
		if err := memberOfProjectTeam(ctx, tx, project, *in.AssigneeID); err != nil {
			return TaskOutcome{}, err
		}
	}

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO tasks (project_id, title, description, assignee_id, status, weight, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		in.ProjectID, in.Title, in.Description, in.AssigneeID, workflow.TaskPending, in.Weight, in.DueDate).Scan(&id)
	if err != nil {
		return TaskOutcome{}, fmt.Errorf("insert task: %w", err)
	}
	task, err := scanTask(tx.QueryRow(ctx, taskSelect+` WHERE t.id = $1`, id))
	if err != nil {
		return TaskOutcome{}, fmt.Errorf("reload task: %w", err)
	}

	recomputed, err := recompute(ctx, tx, project, project.Status)
	if err != nil {
		return TaskOutcome{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return TaskOutcome{}, fmt.Errorf("commit create task: %w", err)
	}
	return TaskOutcome{Task: task, PreviousStatus: task.Status, Project: recomputed}, nil
}

func (r *Repo) UpdateTask(ctx context.Context, in TaskUpdate) (TaskOutcome, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TaskOutcome{}, fmt.Errorf("begin update task: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		projectID uuid.UUID
		current   workflow.TaskStatus
		percent   int
	)
	err = tx.QueryRow(ctx, `SELECT project_id, status, progress_percentage FROM tasks WHERE id = $1 FOR UPDATE`, in.ID).
		Scan(&projectID, &current, &percent)
	if errors.Is(err, pgx.ErrNoRows) {
		return TaskOutcome{}, apperr.NotFound(taskNotFoundMsg)
	}
	if err != nil {
		return TaskOutcome{}, fmt.Errorf("lock task: %w", err)
	}

	next := current
	if in.Status != nil && *in.Status != current {
		if err := workflow.Tasks.Transition(current, *in.Status); err != nil {
			return TaskOutcome{}, err
		}
		next = *in.Status
	}
	switch {
	case in.ProgressPercentage != nil:
		percent = *in.ProgressPercentage
	case in.Status != nil && next.Finished():
		percent = 100
	}

	if _, err := tx.Exec(ctx, `
		UPDATE tasks SET status = $2, progress_percentage = $3, updated_at = now()
		WHERE id = $1`, in.ID, next, percent); err != nil {
		return TaskOutcome{}, fmt.Errorf("update task: %w", err)
	}
	task, err := scanTask(tx.QueryRow(ctx, taskSelect+` WHERE t.id = $1`, in.ID))
	if err != nil {
		return TaskOutcome{}, fmt.Errorf("reload task: %w", err)
	}

	project, err := lockProject(ctx, tx, projectID)
	if err != nil {
		return TaskOutcome{}, err
	}
	recomputed, err := recompute(ctx, tx, project, project.Status)
	if err != nil {
		return TaskOutcome{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return TaskOutcome{}, fmt.Errorf("commit update task: %w", err)
	}
	return TaskOutcome{Task: task, PreviousStatus: current, Project: recomputed}, nil
}

func lockProject(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Project, error) {
	p, err := scanProject(tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return Project{}, fmt.Errorf("lock project: %w", err)
	}
	return p, err
}

// recompute aggregates the project's tasks and writes progress and status.
// before is the locked row as read; status is the status to aggregate from.
func recompute(ctx context.Context, tx pgx.Tx, before Project, status workflow.ProjectStatus) (Recomputed, error) {
	rows, err := tx.Query(ctx, `SELECT weight::float8, status FROM tasks WHERE project_id = $1`, before.ID)
	if err != nil {
		return Recomputed{}, fmt.Errorf("load task weights: %w", err)
	}
	weights, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.WeightedTask, error) {
		var w domain.WeightedTask
		err := row.Scan(&w.Weight, &w.Status)
		return w, err
	})
	if err != nil {
		return Recomputed{}, fmt.Errorf("scan task weights: %w", err)
	}

	progress := domain.ComputeProgress(weights, status)
	after, err := scanProject(tx.QueryRow(ctx, `
		UPDATE projects SET progress = $2, status = $3,
			updated_at = CASE WHEN progress = $2 AND status = $3 THEN updated_at ELSE now() END
		WHERE id = $1
		RETURNING `+projectColumns, before.ID, progress.Percent, progress.Status))
	if err != nil {
		return Recomputed{}, fmt.Errorf("write project progress: %w", err)
	}
	return Recomputed{Project: after, PreviousStatus: before.Status, PreviousProgress: before.Progress}, nil
}

func teamExists(ctx context.Context, q querier, teamID uuid.UUID) error {
	var ok bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM teams WHERE id = $1)`, teamID).Scan(&ok); err != nil {
		return fmt.Errorf("check team: %w", err)
	}
	if !ok {
		return apperr.NotFound(teamNotFoundMsg)
	}
	return nil
}

func memberOfProjectTeam(ctx context.Context, q querier, p Project, memberID uuid.UUID) error {
	var teamID uuid.UUID
	err := q.QueryRow(ctx, `SELECT team_id FROM team_members WHERE id = $1`, memberID).Scan(&teamID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(memberNotFoundMsg)
	}
	if err != nil {
		return fmt.Errorf("get team member: %w", err)
	}
	if p.TeamID == nil || *p.TeamID != teamID {
		return apperr.Validation("assignee is not a member of the project's team")
	}
	return nil
}

func (r *Repo) GetTeam(ctx context.Context, id uuid.UUID) (Team, error) {
	var t Team
	err := r.pool.QueryRow(ctx, `SELECT id, name, lead_id, created_at, updated_at FROM teams WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.LeadID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Team{}, apperr.NotFound(teamNotFoundMsg)
	}
	if err != nil {
		return Team{}, fmt.Errorf("get team: %w", err)
	}
	members, err := r.listMembers(ctx, &id)
	if err != nil {
		return Team{}, err
	}
	t.Members = members
	return t, nil
}

func (r *Repo) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, lead_id, created_at, updated_at FROM teams ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	teams, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Team, error) {
		var t Team
		err := row.Scan(&t.ID, &t.Name, &t.LeadID, &t.CreatedAt, &t.UpdatedAt)
		t.Members = []Member{}
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan teams: %w", err)
	}

	members, err := r.listMembers(ctx, nil)
	if err != nil {
		return nil, err
	}
	index := make(map[uuid.UUID]int, len(teams))
	for i, t := range teams {
		index[t.ID] = i
	}
	for _, m := range members {
		if i, ok := index[m.TeamID]; ok {
			teams[i].Members = append(teams[i].Members, m)
		}
	}
	return teams, nil
}

func (r *Repo) listMembers(ctx context.Context, teamID *uuid.UUID) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+memberColumns+` FROM team_members
		WHERE ($1::uuid IS NULL OR team_id = $1)
		ORDER BY created_at`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()

	members := make([]Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team members: %w", err)
	}
	return members, nil
}

func (r *Repo) GetMember(ctx context.Context, teamID, memberID uuid.UUID) (Member, error) {
	m, err := scanMember(r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM team_members WHERE id = $1 AND team_id = $2`, memberID, teamID))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return Member{}, fmt.Errorf("get team member: %w", err)
	}
	return m, err
}

func (r *Repo) CreateTeam(ctx context.Context, in NewTeam) (Team, error) {
	t := Team{Name: in.Name, LeadID: in.LeadID, Members: []Member{}}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO teams (name, lead_id) VALUES ($1, $2)
		RETURNING id, created_at, updated_at`, in.Name, in.LeadID).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Team{}, fmt.Errorf("insert team: %w", err)
	}
	return t, nil
}

func (r *Repo) AddMember(ctx context.Context, in NewMember) (Member, error) {
	if err := teamExists(ctx, r.pool, in.TeamID); err != nil {
		return Member{}, err
	}
	m, err := scanMember(r.pool.QueryRow(ctx, `
		INSERT INTO team_members (team_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id, user_id) DO NOTHING
		RETURNING `+memberColumns, in.TeamID, in.UserID, in.Role))
	if apperr.Is(err, apperr.KindNotFound) {
		return Member{}, apperr.Conflict("user is already a member of this team")
	}
	if err != nil {
		return Member{}, fmt.Errorf("insert team member: %w", err)
	}
	return m, nil
}

func (r *Repo) SetMemberAvailability(ctx context.Context, in AvailabilityUpdate) (Member, error) {
	m, err := scanMember(r.pool.QueryRow(ctx, `
		UPDATE team_members
		SET availability = $3, workload = COALESCE($4, workload), updated_at = now()
		WHERE id = $1 AND team_id = $2
		RETURNING `+memberColumns, in.MemberID, in.TeamID, in.Availability, in.Workload))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return Member{}, fmt.Errorf("update member availability: %w", err)
	}
	return m, err
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
