package repository

import (
	"context"
	"testing"
	"time"

	"interior_portal_backend/internal/workflow"
	"interior_portal_backend/platform/apperr"
	"interior_portal_backend/platform/db/dbtest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inspectorAvailability(t *testing.T, repo *Repo, id uuid.UUID) workflow.InspectorAvailability {
	t.Helper()
	insp, err := repo.GetInspector(context.Background(), id)
	require.NoError(t, err)
	return insp.Availability
}

func requestStatus(t *testing.T, repo *Repo, id uuid.UUID) string {
	t.Helper()
	return dbtest.Scalar[string](t, repo.pool, `SELECT status FROM inspection_requests WHERE id = $1`, id)
}

func TestAssignmentLifecycleAgainstPostgres(t *testing.T) {
	pool := dbtest.Start(t)
	repo := New(pool)
	ctx := context.Background()

	csr := dbtest.InsertUser(t, pool, "csr@example.com", "csr")
	client := dbtest.InsertUser(t, pool, "client@example.com", "client")
	inspector := dbtest.InsertInspector(t, pool, "inspector@example.com")
	request := dbtest.InsertRequest(t, pool, client, string(workflow.InspectionVerified), nil)

	created, err := repo.Create(ctx, NewAssignment{InspectionRequestID: request, InspectorID: inspector, AssignedBy: csr})
	require.NoError(t, err)
	assert.Equal(t, workflow.AssignmentAssigned, created.Assignment.Status)
	assert.Equal(t, workflow.InspectionVerified, created.RequestFrom)
	assert.Equal(t, "assigned", requestStatus(t, repo, request))

	// Decline hands the request back and leaves the inspector free.
	reason := "double booked"
	declined, err := repo.Apply(ctx, Change{ID: created.Assignment.ID, To: workflow.AssignmentDeclined, DeclineReason: &reason, At: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, workflow.AssignmentDeclined, declined.Assignment.Status)
	assert.Equal(t, "verified", requestStatus(t, repo, request))
	assert.Equal(t, workflow.InspectorAvailable, inspectorAvailability(t, repo, inspector))

	again, err := repo.Create(ctx, NewAssignment{InspectionRequestID: request, InspectorID: inspector, AssignedBy: csr})
	require.NoError(t, err)

	accepted, err := repo.Apply(ctx, Change{ID: again.Assignment.ID, To: workflow.AssignmentInProgress, At: time.Now()})
	require.NoError(t, err)
	require.NotNil(t, accepted.Assignment.InspectionStartTime)
	assert.Equal(t, "in-progress", requestStatus(t, repo, request))
	insp, err := repo.GetInspector(ctx, inspector)
	require.NoError(t, err)
	assert.Equal(t, workflow.InspectorBusy, insp.Availability)
	require.NotNil(t, insp.CurrentLocation)
	assert.Equal(t, "12 Acacia St", *insp.CurrentLocation)
	assert.Equal(t, 1, insp.OpenAssignments)

	_, err = repo.SetInspectorAvailability(ctx, inspector, workflow.InspectorAvailable)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "override with open assignment: %v", err)

	completed, err := repo.Apply(ctx, Change{ID: again.Assignment.ID, To: workflow.AssignmentCompleted, At: time.Now()})
	require.NoError(t, err)
	require.NotNil(t, completed.Assignment.InspectionEndTime)
	assert.Equal(t, "completed", requestStatus(t, repo, request))
	assert.Equal(t, workflow.InspectorAvailable, inspectorAvailability(t, repo, inspector))

	_, err = repo.Apply(ctx, Change{ID: again.Assignment.ID, To: workflow.AssignmentPaused, At: time.Now()})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "completed is terminal: %v", err)
}

func TestInspectorHoldsOneOpenAssignment(t *testing.T) {
	pool := dbtest.Start(t)
	repo := New(pool)
	ctx := context.Background()

	csr := dbtest.InsertUser(t, pool, "csr@example.com", "csr")
	client := dbtest.InsertUser(t, pool, "client@example.com", "client")
	inspector := dbtest.InsertInspector(t, pool, "inspector@example.com")
	first := dbtest.InsertRequest(t, pool, client, string(workflow.InspectionVerified), nil)
	second := dbtest.InsertRequest(t, pool, client, string(workflow.InspectionVerified), nil)

	a, err := repo.Create(ctx, NewAssignment{InspectionRequestID: first, InspectorID: inspector, AssignedBy: csr})
	require.NoError(t, err)

	_, err = repo.Create(ctx, NewAssignment{InspectionRequestID: second, InspectorID: inspector, AssignedBy: csr})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "second open assignment: %v", err)
	assert.Equal(t, "verified", requestStatus(t, repo, second), "failed create must roll back the request move")

	// A stale open assignment left over from before the rule still blocks
	// accepting a second one, and completing one keeps the inspector busy.
	var stale uuid.UUID
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO assignments (inspection_request_id, inspector_id, assigned_by, status)
		VALUES ($1, $2, $3, 'in-progress') RETURNING id`, second, inspector, csr).Scan(&stale))
	_, err = pool.Exec(ctx, `UPDATE inspection_requests SET status = 'in-progress' WHERE id = $1`, second)
	require.NoError(t, err)

	_, err = repo.Apply(ctx, Change{ID: a.Assignment.ID, To: workflow.AssignmentInProgress, At: time.Now()})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "accept while busy elsewhere: %v", err)

	_, err = pool.Exec(ctx, `UPDATE inspectors SET availability = 'busy' WHERE user_id = $1`, inspector)
	require.NoError(t, err)
	_, err = repo.Apply(ctx, Change{ID: stale, To: workflow.AssignmentCompleted, At: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, workflow.InspectorBusy, inspectorAvailability(t, repo, inspector), "first assignment is still open")
}
